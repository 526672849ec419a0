package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/engine"
)

const (
	// Значения по умолчанию.
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTPOptions — общие настройки http источников приложения.
type HTTPOptions struct {
	// Client — HTTP клиент. nil — клиент с Timeout.
	Client *http.Client

	// Timeout — таймаут запроса (default: 30s).
	Timeout time.Duration

	// Headers — заголовки, добавляемые к каждому запросу.
	// Заголовки из конфигурации источника имеют приоритет.
	Headers map[string]string

	// RequestsPerSecond — ограничение частоты запросов одного источника.
	// 0 — без ограничения.
	RequestsPerSecond float64

	// Burst — допустимый всплеск запросов (default: 1).
	Burst int
}

// client возвращает HTTP клиент с учётом настроек.
func (o HTTPOptions) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// limiter создаёт ограничитель частоты запросов.
func (o HTTPOptions) limiter() *rate.Limiter {
	if o.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := o.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(o.RequestsPerSecond), burst)
}

// HTTPSource — источник, данные которого загружаются HTTP запросом.
//
// До первой загрузки данные строятся из описания полей, как у BaseSource.
// Запрос:
//
//	{
//	    "url": "https://api.example.com/user",
//	    "method": "POST",
//	    "params": {"id": 1},
//	    "data": {"fields": ["name"]},
//	    "headers": {"Authorization": "Bearer ..."}
//	}
//
// Ответ в JSON декодируется, затем из него извлекается DataPath
// ("data.user" → body["data"]["user"]).
type HTTPSource struct {
	*BaseSource

	client  *http.Client
	headers map[string]string
	limiter *rate.Limiter
}

// NewHTTPSource создаёт http источник.
func NewHTTPSource(cfg domain.DataSourceConfig, opts HTTPOptions) *HTTPSource {
	return &HTTPSource{
		BaseSource: NewBaseSource(cfg),
		client:     opts.client(),
		headers:    opts.Headers,
		limiter:    opts.limiter(),
	}
}

// Fetch выполняет запрос и возвращает извлечённые данные.
// Данные источника не изменяются: их записывает Manager.
func (s *HTTPSource) Fetch(ctx context.Context) (any, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, s.ID(), err)
	}

	req, err := s.buildRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, s.ID(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return s.extract(resp.Header.Get("Content-Type"), body)
}

// buildRequest создаёт HTTP запрос из конфигурации источника.
func (s *HTTPSource) buildRequest(ctx context.Context) (*http.Request, error) {
	opts := s.cfg.Options
	if opts == nil || opts.URL == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrFetchFailed, s.ID())
	}

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(opts.Params) > 0 {
		query := target.Query()
		for key, value := range opts.Params {
			query.Set(key, fmt.Sprint(value))
		}
		target.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if opts.Data != nil && method != http.MethodGet {
		bodyBytes, err := serializeBody(opts.Data)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// extract декодирует тело ответа и выбирает данные по DataPath.
func (s *HTTPSource) extract(contentType string, body []byte) (any, error) {
	var data any
	if strings.Contains(contentType, "json") {
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("%w: %s: decode response: %v", ErrFetchFailed, s.ID(), err)
		}
	} else {
		data = string(body)
	}

	if s.cfg.DataPath == "" {
		return data, nil
	}

	value, ok := engine.LookupPath(data, strings.Split(s.cfg.DataPath, "."))
	if !ok {
		return nil, fmt.Errorf("%w: %s: path %q not found in response", ErrFetchFailed, s.ID(), s.cfg.DataPath)
	}
	return value, nil
}

// serializeBody сериализует тело запроса.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
