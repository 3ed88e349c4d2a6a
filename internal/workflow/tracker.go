package workflow

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"licensebridge/internal/infrastructure"
)

// Snapshot is the visible state of a Tracker.
type Snapshot struct {
	Message         string    `json:"message"`
	IsError         bool      `json:"is_error"`
	ProgressVisible bool      `json:"progress_visible"`
	Progress        int       `json:"progress"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Tracker holds the current status line and progress value. It cannot fail.
type Tracker struct {
	mu        sync.Mutex
	snap      Snapshot
	observers []func(Snapshot)
	logger    *slog.Logger
}

// NewTracker creates a Tracker mirroring status changes to logger.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{logger: infrastructure.WithComponent(logger, "tracker")}
}

// OnChange registers fn to receive every new snapshot.
func (t *Tracker) OnChange(fn func(Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// SetStatus replaces the status line.
func (t *Tracker) SetStatus(message string, isError bool) {
	if isError {
		t.logger.Error(message)
	} else {
		t.logger.Info(message)
	}
	t.update(func(s *Snapshot) {
		s.Message = message
		s.IsError = isError
	})
}

// ShowProgress resets progress to zero and makes it visible.
func (t *Tracker) ShowProgress() {
	t.update(func(s *Snapshot) {
		s.ProgressVisible = true
		s.Progress = 0
	})
}

// UpdateProgress sets the progress value, clamped to [0, 100].
func (t *Tracker) UpdateProgress(percent int) {
	t.update(func(s *Snapshot) {
		s.Progress = min(max(percent, 0), 100)
	})
}

// HideProgress hides the progress indicator.
func (t *Tracker) HideProgress() {
	t.update(func(s *Snapshot) {
		s.ProgressVisible = false
	})
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

func (t *Tracker) update(fn func(*Snapshot)) {
	t.mu.Lock()
	fn(&t.snap)
	t.snap.UpdatedAt = time.Now()
	snap := t.snap
	observers := slices.Clone(t.observers)
	t.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
}
