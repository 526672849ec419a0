package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/repo"
	"github.com/shaiso/Pagebind/internal/runtime"
	"github.com/shaiso/Pagebind/internal/telemetry"
)

const counterDSL = `{
  "id": "counter",
  "items": [
    {"id": "page", "type": "page", "items": [
      {"id": "label", "type": "text", "props": {"text": "Count: {{ .DS.counter.value }}"}},
      {"id": "reset", "type": "button", "condition": "ds.counter.value > 0.0"}
    ]}
  ],
  "dataSources": [
    {"id": "counter", "type": "base", "fields": [{"name": "value", "type": "number"}]}
  ],
  "dataSourceDeps": {"counter": {"label": {"keys": ["text"]}}},
  "dataSourceCondDeps": {"counter": {"reset": {}}}
}`

// memStore — AppStore и runtime.AppLoader в памяти.
type memStore struct {
	mu   sync.Mutex
	apps map[uuid.UUID]domain.AppRecord
}

func newMemStore() *memStore {
	return &memStore{apps: make(map[uuid.UUID]domain.AppRecord)}
}

func (s *memStore) Create(_ context.Context, rec *domain.AppRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.apps {
		if existing.Name == rec.Name {
			return repo.ErrAlreadyExists
		}
	}
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	s.apps[rec.ID] = *rec
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.AppRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.apps[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &rec, nil
}

func (s *memStore) List(_ context.Context) ([]domain.AppRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AppRecord, 0, len(s.apps))
	for _, rec := range s.apps {
		rec.DSL = nil
		out = append(out, rec)
	}
	return out, nil
}

func (s *memStore) UpdateDSL(_ context.Context, id uuid.UUID, dsl json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.apps[id]
	if !ok {
		return repo.ErrNotFound
	}
	rec.DSL = dsl
	rec.UpdatedAt = time.Now().UTC()
	s.apps[id] = rec
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.apps, id)
	return nil
}

func (s *memStore) LoadApp(ctx context.Context, id uuid.UUID) (*domain.App, error) {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return repo.DecodeApp(rec)
}

type testServer struct {
	*httptest.Server
	store    *memStore
	sessions *runtime.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := newMemStore()
	logger := telemetry.Discard()
	sessions := runtime.NewRegistry(runtime.RegistryConfig{Loader: store, Logger: logger})

	mux := http.NewServeMux()
	NewHandler(Config{Apps: store, Sessions: sessions, Logger: logger}).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		sessions.Close(context.Background())
	})
	return &testServer{Server: srv, store: store, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, decoded
}

func (s *testServer) createApp(t *testing.T, name, dsl string) string {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/v1/apps", map[string]any{
		"name": name,
		"dsl":  json.RawMessage(dsl),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", resp.StatusCode, body)
	}
	return body["data"].(map[string]any)["id"].(string)
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestApps_CRUD(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createApp(t, "counter", counterDSL)

	resp, body := srv.do(t, http.MethodGet, "/api/v1/apps/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["data"].(map[string]any)["name"] != "counter" {
		t.Errorf("unexpected app: %v", body)
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Error("response should carry a request id")
	}

	_, body = srv.do(t, http.MethodGet, "/api/v1/apps", nil)
	if body["total"] != float64(1) {
		t.Errorf("expected 1 app, got %v", body["total"])
	}

	resp, body = srv.do(t, http.MethodPost, "/api/v1/apps", map[string]any{
		"name": "counter", "dsl": json.RawMessage(counterDSL),
	})
	if resp.StatusCode != http.StatusConflict || errorCode(body) != string(ErrCodeConflict) {
		t.Errorf("expected conflict, got %d %v", resp.StatusCode, body)
	}

	resp, _ = srv.do(t, http.MethodDelete, "/api/v1/apps/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	resp, _ = srv.do(t, http.MethodGet, "/api/v1/apps/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestApps_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing name", http.MethodPost, "/api/v1/apps", map[string]any{"dsl": json.RawMessage(counterDSL)}, http.StatusBadRequest},
		{"missing dsl", http.MethodPost, "/api/v1/apps", map[string]any{"name": "x"}, http.StatusBadRequest},
		{"invalid dsl", http.MethodPost, "/api/v1/apps", map[string]any{"name": "x", "dsl": json.RawMessage(`{"items": [{}]}`)}, http.StatusBadRequest},
		{"invalid id", http.MethodGet, "/api/v1/apps/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown app", http.MethodGet, "/api/v1/apps/" + uuid.NewString() + "/tree", nil, http.StatusNotFound},
		{"update unknown app", http.MethodPut, "/api/v1/apps/" + uuid.NewString(), map[string]any{"dsl": json.RawMessage(counterDSL)}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := srv.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d: %v", tt.status, resp.StatusCode, body)
			}
		})
	}
}

func TestTree(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createApp(t, "counter", counterDSL)

	resp, body := srv.do(t, http.MethodGet, "/api/v1/apps/"+id+"/tree", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data := body["data"].(map[string]any)
	if data["platform"] != domain.PlatformRuntime {
		t.Errorf("unexpected platform: %v", data["platform"])
	}
	page := data["items"].([]any)[0].(map[string]any)
	if len(page["items"].([]any)) != 2 {
		t.Errorf("full tree should keep hidden nodes: %v", page["items"])
	}

	_, body = srv.do(t, http.MethodGet, "/api/v1/apps/"+id+"/tree?active=true", nil)
	page = body["data"].(map[string]any)["items"].([]any)[0].(map[string]any)
	children := page["items"].([]any)
	if len(children) != 1 || children[0].(map[string]any)["id"] != "label" {
		t.Errorf("active tree should hide reset button: %v", children)
	}

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/apps/"+id+"/tree?active=maybe", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateDataSource(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createApp(t, "counter", counterDSL)
	base := "/api/v1/apps/" + id + "/datasources"

	resp, body := srv.do(t, http.MethodPut, base+"/counter", map[string]any{"data": map[string]any{"value": 3}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}

	events := body["data"].(map[string]any)["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	first, second := events[0].(map[string]any), events[1].(map[string]any)
	if first["kind"] != "condition" || second["kind"] != "value" {
		t.Errorf("unexpected event kinds: %v, %v", first["kind"], second["kind"])
	}
	reset := first["nodes"].([]any)[0].(map[string]any)
	if reset["condResult"] != true {
		t.Errorf("reset copy should be visible: %v", reset)
	}
	label := second["nodes"].([]any)[0].(map[string]any)
	if label["props"].(map[string]any)["text"] != "Count: 3" {
		t.Errorf("unexpected label: %v", label["props"])
	}

	resp, body = srv.do(t, http.MethodPut, base+"/counter", map[string]any{"path": []string{"value"}, "value": 7})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}

	_, body = srv.do(t, http.MethodGet, base, nil)
	sources := body["data"].([]any)
	state := sources[0].(map[string]any)
	if state["id"] != "counter" || state["data"].(map[string]any)["value"] != float64(7) {
		t.Errorf("unexpected source state: %v", state)
	}
}

func TestUpdateDataSource_Errors(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createApp(t, "counter", counterDSL)
	staticID := srv.createApp(t, "static", `{"items": [{"id": "page"}]}`)
	base := "/api/v1/apps/" + id + "/datasources"

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   ErrorCode
	}{
		{"unknown source", http.MethodPut, base + "/missing", map[string]any{"data": 1}, http.StatusNotFound, ErrCodeNotFound},
		{"invalid path", http.MethodPut, base + "/counter", map[string]any{"path": []string{"value", "deep"}, "value": 1}, http.StatusBadRequest, ErrCodeBadRequest},
		{"not fetchable", http.MethodPost, base + "/counter/fetch", nil, http.StatusUnprocessableEntity, ErrCodeInvalidState},
		{"no data sources", http.MethodPut, "/api/v1/apps/" + staticID + "/datasources/x", map[string]any{"data": 1}, http.StatusUnprocessableEntity, ErrCodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := srv.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.status || errorCode(body) != string(tt.code) {
				t.Errorf("expected %d %s, got %d %v", tt.status, tt.code, resp.StatusCode, body)
			}
		})
	}
}

func TestFetchDataSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"name": "Ann"}}`))
	}))
	defer upstream.Close()

	dsl := `{
	  "items": [{"id": "hello", "type": "text", "props": {"text": "Hello, {{ .DS.user.name }}"}}],
	  "dataSources": [{"id": "user", "type": "http", "dataPath": "data",
	    "options": {"url": "` + upstream.URL + `"}}],
	  "dataSourceDeps": {"user": {"hello": {"keys": ["text"]}}}
	}`

	srv := newTestServer(t)
	id := srv.createApp(t, "fetch", dsl)

	resp, body := srv.do(t, http.MethodPost, "/api/v1/apps/"+id+"/datasources/user/fetch", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	events := body["data"].(map[string]any)["events"].([]any)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	node := events[0].(map[string]any)["nodes"].([]any)[0].(map[string]any)
	if node["props"].(map[string]any)["text"] != "Hello, Ann" {
		t.Errorf("unexpected node: %v", node)
	}
}

func TestUpdateApp_ReloadsSession(t *testing.T) {
	srv := newTestServer(t)
	id := srv.createApp(t, "counter", counterDSL)
	appUUID := uuid.MustParse(id)

	srv.do(t, http.MethodPut, "/api/v1/apps/"+id+"/datasources/counter", map[string]any{"data": map[string]any{"value": 5}})
	before, _ := srv.sessions.Get(appUUID)

	updated := `{"items": [{"id": "only", "type": "text"}]}`
	resp, body := srv.do(t, http.MethodPut, "/api/v1/apps/"+id, map[string]any{"dsl": json.RawMessage(updated)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}

	after, ok := srv.sessions.Get(appUUID)
	if !ok || after == before {
		t.Fatal("session should be reopened")
	}
	if after.HasDataSources() {
		t.Error("reloaded session should follow the new dsl")
	}
	if node, ok := after.Node("only"); !ok || node.Type != "text" {
		t.Errorf("unexpected reloaded tree: %v", node)
	}
}

func TestRecovery(t *testing.T) {
	logger := telemetry.Discard()
	h := Chain(RequestID(), Recovery(logger), Logging(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Error("request id should be set before the handler runs")
	}
}
