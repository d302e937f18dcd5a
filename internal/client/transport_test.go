package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solidqa/partboard/internal/sqlapi"
)

func TestHTTPTransportSelect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req sqlapi.SelectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Table != "issues" {
			t.Errorf("table = %q", req.Table)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data":  []map[string]interface{}{{"id": "i1"}, {"id": "i2"}},
			"count": 7,
		})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	res, err := tr.Select(context.Background(), &sqlapi.SelectRequest{Table: "issues"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(res.Rows) != 2 || res.Count != 7 {
		t.Errorf("rows=%d count=%d", len(res.Rows), res.Count)
	}
}

func TestHTTPTransportSingleShaping(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// Matched single: the server sends a bare object.
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"id": "r1"}, "count": 1,
			})
			return
		}
		// No match: null, not an empty array.
		json.NewEncoder(w).Encode(map[string]interface{}{"data": nil, "count": 0})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	res, err := tr.Select(context.Background(), &sqlapi.SelectRequest{Table: "reports", Single: true})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0]["id"] != "r1" {
		t.Errorf("object not folded into rows: %v", res.Rows)
	}

	res, err = tr.Select(context.Background(), &sqlapi.SelectRequest{Table: "reports", Single: true})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("null should fold to zero rows, got %v", res.Rows)
	}
}

func TestHTTPTransportValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "WHERE clause is required for UPDATE operations"})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	_, err := tr.Update(context.Background(), &sqlapi.UpdateRequest{Table: "issues"})
	var verr *sqlapi.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Msg != "WHERE clause is required for UPDATE operations" {
		t.Errorf("message = %q", verr.Msg)
	}
}

func TestHTTPTransportServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	_, err := tr.Select(context.Background(), &sqlapi.SelectRequest{Table: "issues"})
	if err == nil {
		t.Fatal("expected error")
	}
	var verr *sqlapi.ValidationError
	if errors.As(err, &verr) {
		t.Error("500 must not map to ValidationError")
	}
}

func TestHTTPTransportHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
	}))
	defer srv.Close()

	if err := NewHTTPTransport(srv.URL).Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
