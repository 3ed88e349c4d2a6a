package workflow

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"licensebridge/internal/shared/testutil"
)

func TestTrackerProgressClamping(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: -20, want: 0},
		{in: 0, want: 0},
		{in: 42, want: 42},
		{in: 100, want: 100},
		{in: 250, want: 100},
	}

	tr := NewTracker(nil)
	for _, tt := range tests {
		tr.UpdateProgress(tt.in)
		assert.Equal(t, tt.want, tr.Snapshot().Progress, "input %d", tt.in)
	}
}

func TestTrackerShowAndHide(t *testing.T) {
	tr := NewTracker(nil)
	tr.UpdateProgress(70)

	tr.ShowProgress()
	snap := tr.Snapshot()
	assert.True(t, snap.ProgressVisible)
	assert.Equal(t, 0, snap.Progress, "showing progress resets it")

	tr.HideProgress()
	assert.False(t, tr.Snapshot().ProgressVisible)
}

func TestTrackerMirrorsStatusToLog(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	tr := NewTracker(logger)

	tr.SetStatus("devices refreshed", false)
	tr.SetStatus("adb not found", true)

	snap := tr.Snapshot()
	assert.Equal(t, "adb not found", snap.Message)
	assert.True(t, snap.IsError)
	assert.False(t, snap.UpdatedAt.IsZero())
	testutil.AssertLogContains(t, handler, slog.LevelInfo, "devices refreshed")
	testutil.AssertLogContains(t, handler, slog.LevelError, "adb not found")
	testutil.AssertLogAttr(t, handler, "component", "tracker")
}

func TestTrackerObservers(t *testing.T) {
	tr := NewTracker(nil)
	var seen []Snapshot
	tr.OnChange(func(s Snapshot) { seen = append(seen, s) })

	tr.ShowProgress()
	tr.SetStatus("working", false)
	tr.UpdateProgress(60)
	tr.HideProgress()

	if assert.Len(t, seen, 4) {
		assert.True(t, seen[0].ProgressVisible)
		assert.Equal(t, "working", seen[1].Message)
		assert.Equal(t, 60, seen[2].Progress)
		assert.False(t, seen[3].ProgressVisible)
	}
}

func TestTrackerObserverRegisteredDuringNotify(t *testing.T) {
	tr := NewTracker(nil)
	late := 0
	registered := false
	tr.OnChange(func(Snapshot) {
		if !registered {
			registered = true
			tr.OnChange(func(Snapshot) { late++ })
		}
	})

	tr.SetStatus("first", false)
	assert.Equal(t, 0, late, "observers added while notifying wait for the next change")

	tr.SetStatus("second", false)
	assert.Equal(t, 1, late)
}
