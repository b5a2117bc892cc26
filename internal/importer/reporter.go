package importer

import (
	"sync"
	"time"

	"github.com/yashwanth-3000/find.ai/internal/logger"
)

// Level classifies a progress event.
type Level string

const (
	LevelInfo    Level = "info"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Event is one structured progress message emitted by the import pipeline.
type Event struct {
	Time    time.Time `json:"timestamp"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// Reporter receives progress events for a user's import. Implementations
// must be fire-and-forget: they may drop events but must never block the
// poll loop, and event loss never affects pipeline state.
type Reporter interface {
	Report(userID string, event Event)
}

// logReporter forwards events to the structured logger.
type logReporter struct {
	log *logger.Logger
}

// NewLogReporter returns a Reporter that writes events to log.
func NewLogReporter(log *logger.Logger) Reporter {
	return &logReporter{log: log}
}

func (r *logReporter) Report(userID string, event Event) {
	entry := r.log.WithFields(logger.Fields{
		logger.FieldUserID:    userID,
		logger.FieldComponent: "importer",
	})
	switch event.Level {
	case LevelError:
		entry.Error(event.Message)
	default:
		entry.Info(event.Message)
	}
}

// RingReporter keeps a bounded ring of recent events per user, so the HTTP
// status endpoint can show an import log without any push channel. Oldest
// events are dropped first.
type RingReporter struct {
	mu    sync.Mutex
	size  int
	rings map[string][]Event
}

// NewRingReporter creates a RingReporter retaining up to size events per user.
func NewRingReporter(size int) *RingReporter {
	if size <= 0 {
		size = 64
	}
	return &RingReporter{
		size:  size,
		rings: make(map[string][]Event),
	}
}

func (r *RingReporter) Report(userID string, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ring := append(r.rings[userID], event)
	if len(ring) > r.size {
		ring = ring[len(ring)-r.size:]
	}
	r.rings[userID] = ring
}

// Events returns a copy of the retained events for a user, oldest first.
func (r *RingReporter) Events(userID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	ring := r.rings[userID]
	out := make([]Event, len(ring))
	copy(out, ring)
	return out
}

// Clear drops the retained events for a user.
func (r *RingReporter) Clear(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rings, userID)
}

// MultiReporter fans events out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(userID string, event Event) {
	for _, r := range m {
		r.Report(userID, event)
	}
}
