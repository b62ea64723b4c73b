package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/michaellans/Badger/internal/table"
)

// Event types sent on a run stream.
const (
	EventState      = "state"
	EventEvaluation = "evaluation"
)

// ProgressEvent is one message on a run stream. Evaluation events carry the
// rows recorded by the last evaluation; state events only the run summary.
type ProgressEvent struct {
	Type        string         `json:"type"`
	RunID       string         `json:"runId"`
	State       RunState       `json:"state"`
	Exit        string         `json:"exit,omitempty"`
	Evaluations int            `json:"evaluations"`
	Best        *float64       `json:"best,omitempty"`
	Points      []table.Record `json:"points,omitempty"`
	Error       string         `json:"error,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

func newProgressEvent(run Run, evaluated *table.Table) ProgressEvent {
	event := ProgressEvent{
		Type:        EventState,
		RunID:       run.ID,
		State:       run.State,
		Exit:        string(run.Exit),
		Evaluations: run.Evaluations,
		Best:        run.Best,
		Error:       run.Error,
		Timestamp:   time.Now(),
	}
	if evaluated.Len() > 0 {
		event.Type = EventEvaluation
		event.Points = evaluated.Records()
	}
	return event
}

// EventBroadcaster fans run events out to stream subscribers. Slow
// subscribers miss events rather than stall the worker.
type EventBroadcaster struct {
	mu      sync.Mutex
	clients map[string]map[chan ProgressEvent]bool // runID -> subscribers

	// lastState is replayed to new subscribers
	lastState map[string]ProgressEvent
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan ProgressEvent]bool),
		lastState: make(map[string]ProgressEvent),
	}
}

// Subscribe adds a client to receive events for a run
func (eb *EventBroadcaster) Subscribe(runID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, 10) // Buffered to prevent blocking

	if eb.clients[runID] == nil {
		eb.clients[runID] = make(map[chan ProgressEvent]bool)
	}
	eb.clients[runID][ch] = true

	if last, ok := eb.lastState[runID]; ok {
		ch <- last
	}

	return ch
}

// Unsubscribe removes a client from receiving events
func (eb *EventBroadcaster) Unsubscribe(runID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[runID]; ok {
		delete(clients, ch)
		close(ch)

		if len(clients) == 0 {
			delete(eb.clients, runID)
		}
	}
}

// Broadcast sends an event to all subscribed clients for a run
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	last := event
	last.Type, last.Points = EventState, nil
	eb.lastState[event.RunID] = last

	clients, ok := eb.clients[event.RunID]
	if !ok || len(clients) == 0 {
		return
	}

	for ch := range clients {
		select {
		case ch <- event:
		default:
			slog.Warn("Run stream subscriber is behind, dropping event", "run_id", event.RunID, "type", event.Type)
		}
	}
}

// CleanupRun closes every subscriber of a run and forgets its state
func (eb *EventBroadcaster) CleanupRun(runID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[runID]; ok {
		for ch := range clients {
			close(ch)
		}
		delete(eb.clients, runID)
	}

	delete(eb.lastState, runID)
}

// handleRunStream handles GET /api/v1/runs/:id/stream. The stream opens with
// the current state and ends once the run finishes.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request, runID string) {
	run, exists := s.runManager.GetRun(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	eventChan := s.runManager.broadcaster.Subscribe(runID)
	defer s.runManager.broadcaster.Unsubscribe(runID, eventChan)

	if err := writeSSEEvent(w, newProgressEvent(run, nil)); err != nil {
		slog.Error("Failed to write initial SSE event", "error", err)
		return
	}
	flusher.Flush()
	if run.State.Finished() {
		return
	}

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-eventChan:
			if !ok {
				// run removed
				return
			}

			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()
			if event.State.Finished() {
				return
			}

		case <-pingTicker.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}
