package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/Pagebind/internal/domain"
)

func TestHTTPSource_Fetch(t *testing.T) {
	var gotMethod, gotQuery, gotAuth, gotTrace string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.Query().Get("id")
		gotAuth = r.Header.Get("Authorization")
		gotTrace = r.Header.Get("X-Trace")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"user": {"name": "Ann"}}}`))
	}))
	defer server.Close()

	src := NewHTTPSource(domain.DataSourceConfig{
		ID:       "user",
		Type:     domain.DataSourceTypeHTTP,
		DataPath: "data.user",
		Options: &domain.HTTPRequest{
			URL:     server.URL,
			Method:  "post",
			Params:  map[string]any{"id": 7},
			Data:    map[string]any{"fields": []any{"name"}},
			Headers: map[string]string{"Authorization": "Bearer token"},
		},
	}, HTTPOptions{Headers: map[string]string{"X-Trace": "1", "Authorization": "ignored"}})

	data, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if data.(map[string]any)["name"] != "Ann" {
		t.Errorf("unexpected data: %v", data)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotQuery != "7" {
		t.Errorf("expected id=7, got %q", gotQuery)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("source headers should win, got %q", gotAuth)
	}
	if gotTrace != "1" {
		t.Errorf("shared headers should be sent, got %q", gotTrace)
	}
	if gotBody["fields"] == nil {
		t.Errorf("body not sent: %v", gotBody)
	}

	// Fetch не меняет данные источника
	if _, ok := src.Data().(map[string]any)["name"]; ok {
		t.Error("fetch should not write source data")
	}
}

func TestHTTPSource_Fetch_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fail":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/broken":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":`))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"items": []}`))
		}
	}))
	defer server.Close()

	newSource := func(path, dataPath string) *HTTPSource {
		return NewHTTPSource(domain.DataSourceConfig{
			ID:       "s",
			Type:     domain.DataSourceTypeHTTP,
			DataPath: dataPath,
			Options:  &domain.HTTPRequest{URL: server.URL + path},
		}, HTTPOptions{})
	}

	_, err := newSource("/fail", "").Fetch(context.Background())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected HTTPError 500, got %v", err)
	}
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("HTTPError should match ErrFetchFailed")
	}

	if _, err := newSource("/broken", "").Fetch(context.Background()); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed for broken json, got %v", err)
	}

	if _, err := newSource("/ok", "data.user").Fetch(context.Background()); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed for missing path, got %v", err)
	}
}

func TestHTTPSource_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	src := NewHTTPSource(domain.DataSourceConfig{
		ID:      "s",
		Type:    domain.DataSourceTypeHTTP,
		Options: &domain.HTTPRequest{URL: server.URL},
	}, HTTPOptions{RequestsPerSecond: 0.001, Burst: 1})

	data, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data != "ok" {
		t.Errorf("expected plain text body, got %v", data)
	}

	// второй запрос упирается в лимит и отменяется контекстом
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := src.Fetch(ctx); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("expected rate limited fetch to fail, got %v", err)
	}
}
