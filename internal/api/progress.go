package api

import (
	"sync"

	"github.com/nordlys/bugsight/internal/pipeline"
)

// ProgressEvent is one stage transition streamed to progress watchers.
type ProgressEvent struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage,omitempty"`
	Done  bool   `json:"done"`

	// Final marks the last event of a run; Error is set when it failed.
	Final bool   `json:"final,omitempty"`
	Error string `json:"error,omitempty"`
}

// progressHub fans analysis stage events out to websocket subscribers.
// A run's final event is retained so late subscribers still learn how
// the run ended.
type progressHub struct {
	mu    sync.Mutex
	subs  map[string]map[chan ProgressEvent]struct{}
	final map[string]ProgressEvent
}

func newProgressHub() *progressHub {
	return &progressHub{
		subs:  make(map[string]map[chan ProgressEvent]struct{}),
		final: make(map[string]ProgressEvent),
	}
}

// publisher adapts the hub to the pipeline's progress callback for one run.
func (h *progressHub) publisher(runID string) pipeline.ProgressFunc {
	return func(stage pipeline.Stage, done bool) {
		h.publish(ProgressEvent{RunID: runID, Stage: string(stage), Done: done})
	}
}

func (h *progressHub) publish(ev ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ev.Final {
		h.final[ev.RunID] = ev
	}
	for ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than stall the pipeline
		}
	}
}

// finish publishes the terminal event for a run.
func (h *progressHub) finish(runID string, err error) {
	ev := ProgressEvent{RunID: runID, Final: true, Done: true}
	if err != nil {
		ev.Error = err.Error()
	}
	h.publish(ev)
}

// subscribe registers a watcher. If the run already finished, its final
// event is delivered immediately.
func (h *progressHub) subscribe(runID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 16)

	h.mu.Lock()
	if fin, ok := h.final[runID]; ok {
		ch <- fin
	}
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan ProgressEvent]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs[runID], ch)
		if len(h.subs[runID]) == 0 {
			delete(h.subs, runID)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}
