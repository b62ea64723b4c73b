// Package server implements the run monitor: an HTTP API that starts
// routines on background workers, controls them, streams their progress and
// exposes plugins, stored routines, run history and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/michaellans/Badger/internal/plugin"
	"github.com/michaellans/Badger/internal/routine"
	"github.com/michaellans/Badger/internal/store"
)

// Options wires the server to its collaborators. Registry is required;
// without Routines runs must carry an inline routine, and without Runs no
// run files or traces are written.
type Options struct {
	Registry *plugin.Registry
	Routines store.RoutineStore
	Runs     *store.FSRunStore
}

// Server represents the HTTP server
type Server struct {
	runManager *RunManager
	registry   *plugin.Registry
	routines   store.RoutineStore
	runs       *store.FSRunStore
	metrics    *Metrics

	// ctx bounds every worker; cancelled on Shutdown
	ctx    context.Context
	cancel context.CancelFunc

	addr   string
	server *http.Server
}

// NewServer creates a new HTTP server
func NewServer(addr string, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		runManager: NewRunManager(),
		registry:   opts.Registry,
		routines:   opts.Routines,
		runs:       opts.Runs,
		metrics:    NewMetrics(),
		ctx:        ctx,
		cancel:     cancel,
		addr:       addr,
	}
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunsWithID)
	mux.HandleFunc("/api/v1/routines", s.handleListRoutines)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/plugins/", s.handlePlugins)
	mux.HandleFunc("/api/v1/docs/", s.handleDocs)
	mux.Handle("/metrics", s.metrics.Handler())

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown stops every run, waiting for the workers to write their run
// files, then gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	s.runManager.StopAll(timeout)
	s.cancel()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// CreateRunRequest is the body of POST /api/v1/runs. Exactly one of
// RoutineID, Routine and Resume must be set.
type CreateRunRequest struct {
	// RoutineID names a stored routine
	RoutineID string `json:"routineId,omitempty"`
	// Routine is an inline routine definition
	Routine *routine.Spec `json:"routine,omitempty"`
	// Resume is a run filename whose data the new run continues from
	Resume string `json:"resume,omitempty"`
	// Paused starts the run paused; use step or resume to advance it
	Paused bool `json:"paused,omitempty"`
}

// handleRuns handles /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.runManager.ListRuns())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunsWithID handles /api/v1/runs/:id/*
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	runID := parts[0]

	// Route based on subpath
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetRun(w, r, runID)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleDeleteRun(w, r, runID)
	case len(parts) == 2 && parts[1] == "stream":
		s.handleRunStream(w, r, runID)
	case len(parts) == 2 && r.Method == http.MethodPost:
		s.handleControlRun(w, r, runID, parts[1])
	case len(parts) <= 2:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateRun handles POST /api/v1/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	set := 0
	for _, ok := range []bool{req.RoutineID != "", req.Routine != nil, req.Resume != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		http.Error(w, "exactly one of routineId, routine and resume is required", http.StatusBadRequest)
		return
	}

	rt, filename, err := s.prepareRun(req)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if filename != "" && s.runManager.FilenameInUse(filename) {
		http.Error(w, fmt.Sprintf("run file %s is in use", filename), http.StatusConflict)
		return
	}

	run := s.startRun(rt, filename, req.Paused)
	writeJSON(w, http.StatusCreated, run)
}

// prepareRun composes the routine of a request and picks its run file.
func (s *Server) prepareRun(req CreateRunRequest) (*routine.Routine, string, error) {
	switch {
	case req.Resume != "":
		if s.runs == nil {
			return nil, "", errors.New("no run store configured")
		}
		cp, err := s.runs.Load(req.Resume)
		if err != nil {
			return nil, "", err
		}
		rt, err := routine.Restore(s.registry, cp)
		if err != nil {
			return nil, "", err
		}
		return rt, req.Resume, nil

	case req.RoutineID != "":
		if s.routines == nil {
			return nil, "", errors.New("no routine store configured")
		}
		spec, _, err := s.routines.Load(req.RoutineID)
		if err != nil {
			return nil, "", err
		}
		req.Routine = spec
	}

	rt, err := routine.Compose(s.registry, req.Routine)
	if err != nil {
		return nil, "", err
	}
	return rt, s.newFilename(), nil
}

// newFilename returns an unused run filename for a run starting now.
func (s *Server) newFilename() string {
	if s.runs == nil {
		return ""
	}
	return s.runs.NewFilename(time.Now(), s.runManager.FilenameInUse)
}

// startRun registers a run and starts its worker.
func (s *Server) startRun(rt *routine.Routine, filename string, paused bool) Run {
	run := s.runManager.CreateRun(rt, filename)
	if paused {
		s.runManager.Control(run.ID, "pause", 0)
	}
	go runRoutine(s.ctx, s.runManager, s.runs, s.metrics, run.ID)
	return run
}

// handleGetRun handles GET /api/v1/runs/:id
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, exists := s.runManager.GetRun(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if run.EndTime != nil {
		elapsed = run.EndTime.Sub(run.StartTime)
	} else {
		elapsed = time.Since(run.StartTime)
	}

	writeJSON(w, http.StatusOK, struct {
		Run
		Elapsed float64 `json:"elapsed"`
	}{run, elapsed.Seconds()})
}

// handleDeleteRun handles DELETE /api/v1/runs/:id. The run file is kept.
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request, runID string) {
	if _, exists := s.runManager.GetRun(runID); !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err := s.runManager.RemoveRun(runID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleControlRun handles POST /api/v1/runs/:id/{pause,resume,stop,step}
func (s *Server) handleControlRun(w http.ResponseWriter, r *http.Request, runID, action string) {
	switch action {
	case "pause", "resume", "stop", "step":
	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if _, exists := s.runManager.GetRun(runID); !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	n := 1
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid n: %v", err), http.StatusBadRequest)
			return
		}
		n = parsed
	}

	if err := s.runManager.Control(runID, action, n); err != nil {
		var finished *RunFinishedError
		if errors.As(err, &finished) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slog.Info("Run control", "run_id", runID, "action", action, "n", n)
	run, _ := s.runManager.GetRun(runID)
	writeJSON(w, http.StatusAccepted, run)
}

// handleListRoutines handles GET /api/v1/routines?q=keyword&tag=a&tag=b
func (s *Server) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.routines == nil {
		writeJSON(w, http.StatusOK, []store.RoutineInfo{})
		return
	}

	q := r.URL.Query()
	infos, err := s.routines.List(q.Get("q"), q["tag"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleHistory handles GET /api/v1/history?routine=id
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.runs == nil {
		writeJSON(w, http.StatusOK, []store.RunInfo{})
		return
	}

	var infos []store.RunInfo
	var err error
	if id := r.URL.Query().Get("routine"); id != "" {
		infos, err = s.runs.ListForRoutine(id)
	} else {
		infos, err = s.runs.ListAll()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handlePlugins handles GET /api/v1/plugins/:kind
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kind, err := plugin.ParseKind(strings.TrimPrefix(r.URL.Path, "/api/v1/plugins/"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	summaries, err := s.registry.Summaries(kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleDocs handles GET /api/v1/docs/:kind/:name
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/docs/"), "/")
	if len(parts) != 2 || parts[1] == "" {
		http.Error(w, "expected /api/v1/docs/:kind/:name", http.StatusBadRequest)
		return
	}
	kind, err := plugin.ParseKind(parts[0])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	docs, err := s.registry.Docs(kind, parts[1])
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(docs))
}

// statusFor maps lookup failures to 404 and everything else to 400.
func statusFor(err error) int {
	var missing *plugin.PluginNotFoundError
	if errors.Is(err, store.ErrNotFound) || errors.As(err, &missing) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
