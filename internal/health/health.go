// Package health serves the operational HTTP surface of the booking
// assistant. The assistant's real work happens over an outbound websocket to
// the voice agent, so this listener is the only inbound HTTP the process
// opens. It exposes:
//
//   - /healthz  liveness probe; always returns 200 OK.
//   - /readyz   readiness probe; returns 200 only when every registered
//     [Checker] passes (Google credentials usable, booking ledger reachable).
//   - /metrics  Prometheus metrics in text exposition format.
//
// Probe responses are JSON objects with a top-level "status" field ("ok" or
// "fail") and a "checks" map containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxcal/pkg/calendar"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "calendar",
	// "ledger"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// CalendarCheck builds the "calendar" readiness checker from the credential
// source backing the event writer. Readiness fails until a usable Google
// token is present, the same condition under which a booking would be
// refused.
func CalendarCheck(src calendar.CredentialSource) Checker {
	return Checker{
		Name: "calendar",
		Check: func(_ context.Context) error {
			return src.Check()
		},
	}
}

// Pinger is the probe surface of connection-backed dependencies such as the
// PostgreSQL booking ledger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LedgerCheck builds the "ledger" readiness checker. Only connection-backed
// ledgers register one; a process running without a ledger DSN has no such
// check and stays ready.
func LedgerCheck(p Pinger) Checker {
	return Checker{Name: "ledger", Check: p.Ping}
}

// result is the JSON response body for the probe endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the /healthz and /readyz probes. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request. The checkers are evaluated sequentially in the order provided.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context. A 503 here means the next
// booking attempt would be refused.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Server owns the operational HTTP listener.
type Server struct {
	srv  *http.Server
	addr string
}

// NewServer assembles the probe and metrics endpoints into a server that will
// listen on addr. Every request passes through mw when non-nil; the session
// manager installs the request-duration middleware there.
func NewServer(addr string, mw func(http.Handler) http.Handler, checkers ...Checker) *Server {
	mux := http.NewServeMux()
	New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	if mw != nil {
		handler = mw(handler)
	}

	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start binds the listen address and begins serving in the background. Bind
// failures are returned immediately; the returned channel yields the terminal
// serve error, with a clean [Server.Shutdown] yielding nil.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("health: listen on %s: %w", s.srv.Addr, err)
	}
	s.addr = ln.Addr().String()

	errc := make(chan error, 1)
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()
	return errc, nil
}

// Addr returns the bound listen address. It is only valid after a successful
// [Server.Start], which matters when the configured address uses port 0.
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown gracefully stops the listener, waiting for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
