package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shaiso/Pagebind/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// AppResponse — приложение из API.
type AppResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	DSL       json.RawMessage `json:"dsl,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// TreeResponse — дерево живой сессии из API.
type TreeResponse struct {
	AppID    string         `json:"app_id"`
	Platform string         `json:"platform"`
	Active   bool           `json:"active"`
	Items    []*domain.Node `json:"items"`
}

// DataSourceResponse — состояние источника данных из API.
type DataSourceResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Data        any    `json:"data"`
	NextRefresh string `json:"next_refresh,omitempty"`
}

// UpdateEventResponse — событие "update-data" из API.
type UpdateEventResponse struct {
	SourceID string         `json:"source_id"`
	Kind     string         `json:"kind"`
	Nodes    []*domain.Node `json:"nodes"`
}

// ChangeResponse — события изменения источника из API.
type ChangeResponse struct {
	SourceID string                `json:"source_id"`
	Events   []UpdateEventResponse `json:"events"`
}

// --- Request types ---

// UpdateDataSourceRequest — изменение данных источника.
type UpdateDataSourceRequest struct {
	Data  any      `json:"data,omitempty"`
	Path  []string `json:"path,omitempty"`
	Value any      `json:"value,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API pagebind-runtime.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Apps ---

// ListApps возвращает все приложения.
func (c *Client) ListApps() ([]AppResponse, error) {
	var apps []AppResponse
	err := c.list("/api/v1/apps", nil, &apps)
	return apps, err
}

// CreateApp создаёт приложение из DSL.
func (c *Client) CreateApp(name string, dsl json.RawMessage) (*AppResponse, error) {
	body := map[string]any{"name": name, "dsl": dsl}
	var app AppResponse
	err := c.post("/api/v1/apps", body, &app)
	return &app, err
}

// GetApp возвращает приложение по ID.
func (c *Client) GetApp(id string) (*AppResponse, error) {
	var app AppResponse
	err := c.get("/api/v1/apps/"+id, &app)
	return &app, err
}

// UpdateApp заменяет DSL приложения.
func (c *Client) UpdateApp(id string, dsl json.RawMessage) (*AppResponse, error) {
	body := map[string]json.RawMessage{"dsl": dsl}
	var app AppResponse
	err := c.put("/api/v1/apps/"+id, body, &app)
	return &app, err
}

// DeleteApp удаляет приложение.
func (c *Client) DeleteApp(id string) error {
	return c.delete("/api/v1/apps/" + id)
}

// --- Sessions ---

// GetTree возвращает дерево узлов живой сессии.
func (c *Client) GetTree(id string, active bool) (*TreeResponse, error) {
	path := "/api/v1/apps/" + id + "/tree"
	if active {
		path += "?" + url.Values{"active": {"true"}}.Encode()
	}
	var tree TreeResponse
	err := c.get(path, &tree)
	return &tree, err
}

// ListDataSources возвращает источники данных сессии.
func (c *Client) ListDataSources(id string) ([]DataSourceResponse, error) {
	var sources []DataSourceResponse
	err := c.list("/api/v1/apps/"+id+"/datasources", nil, &sources)
	return sources, err
}

// UpdateDataSource изменяет данные источника.
func (c *Client) UpdateDataSource(id, sourceID string, req UpdateDataSourceRequest) (*ChangeResponse, error) {
	var change ChangeResponse
	err := c.put("/api/v1/apps/"+id+"/datasources/"+sourceID, req, &change)
	return &change, err
}

// FetchDataSource перезагружает HTTP источник.
func (c *Client) FetchDataSource(id, sourceID string) (*ChangeResponse, error) {
	var change ChangeResponse
	err := c.post("/api/v1/apps/"+id+"/datasources/"+sourceID+"/fetch", nil, &change)
	return &change, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
