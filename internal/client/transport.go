// Package client provides the query façade the services are written
// against: a chainable builder that compiles to declarative statement
// requests, executed through a Transport. The in-process compiler and
// the HTTP transport are interchangeable behind the same interface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solidqa/partboard/internal/debug"
	"github.com/solidqa/partboard/internal/sqlapi"
)

// Transport executes compiled statement requests. Satisfied by the
// in-process compiler.Runner and by HTTPTransport.
type Transport interface {
	Select(ctx context.Context, req *sqlapi.SelectRequest) (*sqlapi.QueryResult, error)
	Insert(ctx context.Context, req *sqlapi.InsertRequest) ([]map[string]interface{}, error)
	Update(ctx context.Context, req *sqlapi.UpdateRequest) (*sqlapi.ExecResult, error)
	Delete(ctx context.Context, req *sqlapi.DeleteRequest) (*sqlapi.ExecResult, error)
}

// HTTPTransport talks to a remote statement-compiler server over its
// JSON endpoints.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPTransport returns a transport against the given base URL
// (e.g. http://localhost:3001).
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithTimeout overrides the per-request timeout and returns the
// transport. Non-positive values keep the default.
func (t *HTTPTransport) WithTimeout(d time.Duration) *HTTPTransport {
	if d > 0 {
		t.httpClient.Timeout = d
	}
	return t
}

// Health checks the server's health endpoint.
func (t *HTTPTransport) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

// envelope is the server's uniform response body.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Count int             `json:"count"`
	Error string          `json:"error"`
}

func (t *HTTPTransport) post(ctx context.Context, path string, body interface{}) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	debug.Logf("client: POST %s %s", path, payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", path, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", path, err)
	}
	if resp.StatusCode == http.StatusBadRequest {
		return nil, &sqlapi.ValidationError{Msg: env.Error}
	}
	if resp.StatusCode != http.StatusOK {
		if env.Error != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, env.Error)
		}
		return nil, fmt.Errorf("server error (%d)", resp.StatusCode)
	}
	return &env, nil
}

// Select posts a query request. Single-row shaping done by the server
// (object or null instead of an array) is folded back into rows so the
// transport stays symmetric with the in-process runner.
func (t *HTTPTransport) Select(ctx context.Context, req *sqlapi.SelectRequest) (*sqlapi.QueryResult, error) {
	env, err := t.post(ctx, "/query", req)
	if err != nil {
		return nil, err
	}
	res := &sqlapi.QueryResult{Count: env.Count, Rows: []map[string]interface{}{}}
	trimmed := bytes.TrimSpace(env.Data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &res.Rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
	default:
		var row map[string]interface{}
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func (t *HTTPTransport) Insert(ctx context.Context, req *sqlapi.InsertRequest) ([]map[string]interface{}, error) {
	env, err := t.post(ctx, "/insert", req)
	if err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	if len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			return nil, fmt.Errorf("decode inserted rows: %w", err)
		}
	}
	return rows, nil
}

func (t *HTTPTransport) Update(ctx context.Context, req *sqlapi.UpdateRequest) (*sqlapi.ExecResult, error) {
	env, err := t.post(ctx, "/update", req)
	if err != nil {
		return nil, err
	}
	var res sqlapi.ExecResult
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &res); err != nil {
			return nil, fmt.Errorf("decode update result: %w", err)
		}
	}
	return &res, nil
}

func (t *HTTPTransport) Delete(ctx context.Context, req *sqlapi.DeleteRequest) (*sqlapi.ExecResult, error) {
	env, err := t.post(ctx, "/delete", req)
	if err != nil {
		return nil, err
	}
	var res sqlapi.ExecResult
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &res); err != nil {
			return nil, fmt.Errorf("decode delete result: %w", err)
		}
	}
	return &res, nil
}
