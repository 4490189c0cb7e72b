// Package server exposes a tiny operational HTTP surface: a liveness check
// and a status endpoint listing the loaded plugins and the active run
// state, per spec.md §4.8's state machine.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mii-cds/cdstoolbox/internal/plugin"
)

// State names a point in pipeline A's run state machine:
// Init -> LoadConfig -> (LoadTables -> Join -> Map -> Sink)* -> Done/Fatal.
type State string

const (
	StateInit       State = "Init"
	StateLoadConfig State = "LoadConfig"
	StateLoadTables State = "LoadTables"
	StateJoin       State = "Join"
	StateMap        State = "Map"
	StateSink       State = "Sink"
	StateDone       State = "Done"
	StateFatal      State = "Fatal"
)

// RunStatus reports the active run's current state, read by /status.
type RunStatus struct {
	mu    sync.RWMutex
	state State
}

// NewRunStatus returns a RunStatus initialized to StateInit.
func NewRunStatus() *RunStatus {
	return &RunStatus{state: StateInit}
}

// Set updates the current state. Safe for concurrent use.
func (s *RunStatus) Set(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Get reads the current state. Safe for concurrent use.
func (s *RunStatus) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Router builds the status server's chi router: GET /healthz and
// GET /status, grounded on the teacher's chi.NewRouter + StripSlashes
// idiom.
func Router(status *RunStatus) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"state":   string(status.Get()),
			"plugins": plugin.Names(),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
