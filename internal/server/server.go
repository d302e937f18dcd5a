// Package server exposes the statement compiler over HTTP. Endpoints
// mirror the dashboard protocol: POST /query, /insert, /update, /delete
// with {data, count} response bodies, also reachable under /api/.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/solidqa/partboard/internal/client"
	"github.com/solidqa/partboard/internal/debug"
	"github.com/solidqa/partboard/internal/sqlapi"
)

// Request bodies are capped at 50MB; ingestion batches for large
// spreadsheets fit comfortably under that.
const maxBodyBytes = 50 << 20

// Server serves the statement endpoints over a transport, normally the
// in-process compiler runner.
type Server struct {
	transport  client.Transport
	httpServer *http.Server
	listener   net.Listener
	addr       string
	timeout    time.Duration
	mu         sync.RWMutex
}

// New creates a server bound to addr (e.g. ":3001"). A non-positive
// timeout falls back to 30s for the read/write deadlines.
func New(t client.Transport, addr string, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{transport: t, addr: addr, timeout: timeout}
}

// Handler builds the route table. Exposed separately so tests can drive
// it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/insert", s.handleInsert)
	mux.HandleFunc("/update", s.handleUpdate)
	mux.HandleFunc("/delete", s.handleDelete)

	// The dashboard reaches the same endpoints under /api/.
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/insert", s.handleInsert)
	mux.HandleFunc("/api/update", s.handleUpdate)
	mux.HandleFunc("/api/delete", s.handleDelete)

	return mux
}

// Start listens and serves until ctx is canceled, then shuts down
// gracefully with a 5s drain window.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	debug.Logf("server: listening on %s", listener.Addr())
	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// decodeBody reads a size-capped JSON request body.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req sqlapi.SelectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.transport.Select(r.Context(), &req)
	if err != nil {
		writeStatementError(w, err)
		return
	}

	// Single queries answer with the row itself, or null when nothing
	// matched; everything else gets the page as an array.
	var data interface{} = res.Rows
	if req.Single {
		if len(res.Rows) > 0 {
			data = res.Rows[0]
		} else {
			data = nil
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data, "count": res.Count})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req sqlapi.InsertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rows, err := s.transport.Insert(r.Context(), &req)
	if err != nil {
		writeStatementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": rows, "count": len(rows)})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req sqlapi.UpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.transport.Update(r.Context(), &req)
	if err != nil {
		writeStatementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": res, "count": res.AffectedRows})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req sqlapi.DeleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.transport.Delete(r.Context(), &req)
	if err != nil {
		writeStatementError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": res, "count": res.AffectedRows})
}

// writeStatementError maps rejected requests to 400 and everything else
// to 500. Error bodies are {"error": message} at both statuses.
func writeStatementError(w http.ResponseWriter, err error) {
	var verr *sqlapi.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Msg)
		return
	}
	debug.Logf("server: statement failed: %v", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
