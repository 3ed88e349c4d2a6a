package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"

	"licensebridge/internal/backend"
	"licensebridge/internal/config"
	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/events"
	"licensebridge/internal/infrastructure"
)

// OutcomeKind classifies the result of an action.
type OutcomeKind string

const (
	KindSuccess            OutcomeKind = "success"
	KindPartialSuccess     OutcomeKind = "partial_success"
	KindNegativeResult     OutcomeKind = "negative_result"
	KindPreconditionFailed OutcomeKind = "precondition_failed"
	KindRemoteFailure      OutcomeKind = "remote_failure"
	// KindLocalFailure is a host-side error after the backend succeeded.
	KindLocalFailure       OutcomeKind = "local_failure"
	KindCancelled          OutcomeKind = "cancelled"
)

// IsError reports whether the kind is shown as an error status.
func (k OutcomeKind) IsError() bool {
	return k == KindPreconditionFailed || k == KindRemoteFailure || k == KindLocalFailure
}

// Outcome is what an action reports back to the front end.
type Outcome struct {
	Action  Action      `json:"action"`
	Kind    OutcomeKind `json:"kind"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// View is a consistent copy of everything a front end renders.
type View struct {
	State       State     `json:"state"`
	Gate        ActionSet `json:"gate"`
	Tracker     Snapshot  `json:"tracker"`
	Devices     []string  `json:"devices"`
	AndroidBusy bool      `json:"android_busy"`
}

// Subscriber hands out log channel subscriptions.
type Subscriber interface {
	Subscribe(name string, buffer int) *events.Subscription
}

// Controller binds user actions to flows.
type Controller struct {
	proxy     *backend.Proxy
	tracker   *Tracker
	logger    *slog.Logger
	writeFile func(name string, data []byte, perm os.FileMode) error

	mu          sync.Mutex
	state       State
	devices     []string
	androidBusy bool
	running     map[Action]int

	sub     *events.Subscription
	subDone chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithTracker shares an existing tracker.
func WithTracker(t *Tracker) Option {
	return func(c *Controller) { c.tracker = t }
}

// WithFileWriter replaces os.WriteFile for saved device codes.
func WithFileWriter(fn func(string, []byte, os.FileMode) error) Option {
	return func(c *Controller) { c.writeFile = fn }
}

// NewController creates a Controller calling the backend through proxy.
func NewController(proxy *backend.Proxy, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		proxy:     proxy,
		logger:    infrastructure.WithComponent(logger, "workflow"),
		writeFile: os.WriteFile,
		devices:   []string{},
		running:   make(map[Action]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracker == nil {
		c.tracker = NewTracker(logger)
	}
	return c
}

// Tracker returns the controller's tracker.
func (c *Controller) Tracker() *Tracker { return c.tracker }

// Start subscribes to the backend log channel for the controller's
// lifetime and mirrors every line to the diagnostic log.
func (c *Controller) Start(s Subscriber) {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return
	}
	c.sub = s.Subscribe("workflow", 256)
	c.subDone = make(chan struct{})
	sub, done := c.sub, c.subDone
	c.mu.Unlock()

	backendLog := c.logger.With(slog.String("source", "backend"))
	go func() {
		defer close(done)
		for ev := range sub.C {
			if ev.Name == events.NameLogMessage {
				backendLog.Debug(ev.Payload)
			}
		}
	}()
}

// Close drops the log channel subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	sub, done := c.sub, c.subDone
	c.sub, c.subDone = nil, nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
}

// View returns the current state, gate decisions, tracker and device list.
func (c *Controller) View() View {
	c.mu.Lock()
	v := c.viewLocked()
	devices := append([]string{}, c.devices...)
	c.mu.Unlock()

	return View{
		State:       v.State,
		Gate:        Evaluate(v),
		Tracker:     c.tracker.Snapshot(),
		Devices:     devices,
		AndroidBusy: v.AndroidBusy,
	}
}

// State returns a copy of the workflow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) viewLocked() StateView {
	running := make(map[Action]bool, len(c.running))
	for a, n := range c.running {
		running[a] = n > 0
	}
	return StateView{State: c.state, AndroidBusy: c.androidBusy, Running: running}
}

// Initialize seeds the application directory from the backend when none is
// selected yet. A missing directory only changes the status text.
func (c *Controller) Initialize(ctx context.Context) Outcome {
	if c.State().SelectedAppDir != "" {
		return Outcome{Action: ActionSelect, Kind: KindSuccess, Message: "application directory already selected"}
	}

	dir, failure := c.proxy.ExecutableDirectory(ctx)
	if failure != nil || dir == "" || !config.DirExists(dir) {
		out := Outcome{
			Action:  ActionSelect,
			Kind:    KindCancelled,
			Message: "could not determine the application directory, select it manually",
		}
		c.tracker.SetStatus(out.Message, false)
		return out
	}

	c.mu.Lock()
	if c.state.SelectedAppDir == "" {
		c.state.SelectedAppDir = dir
	}
	c.mu.Unlock()

	out := Outcome{Action: ActionSelect, Kind: KindSuccess, Message: "application directory: " + dir, Details: dir}
	c.tracker.SetStatus(out.Message, false)
	return out
}

// run executes flow as action: gate check, progress and initial status,
// the flow itself, then terminal status and control release. The release
// happens on every exit path, including a panic inside flow.
func (c *Controller) run(ctx context.Context, action Action, d Dialogs, initial string, flow func(ctx context.Context, s State) Outcome) (out Outcome) {
	c.mu.Lock()
	if err := Check(action, c.viewLocked()); err != nil {
		c.mu.Unlock()
		c.tracker.SetStatus(err.Message, true)
		c.logger.InfoContext(ctx, "action refused", slog.String("action", string(action)), slog.String("reason", err.Message))
		return Outcome{Action: action, Kind: KindPreconditionFailed, Message: err.Message, Err: err}
	}
	c.running[action]++
	if isAndroid(action) {
		c.androidBusy = true
	}
	snapshot := c.state
	c.mu.Unlock()

	c.tracker.ShowProgress()
	c.tracker.SetStatus(initial, false)

	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "action panicked",
				slog.String("action", string(action)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			msg := fmt.Sprintf("internal error while trying to %s", action.label())
			out = Outcome{Action: action, Kind: KindRemoteFailure, Message: msg, Err: apierrors.NewAppError(apierrors.ErrTypeRemote, msg, fmt.Errorf("%v", r))}
		}

		c.mu.Lock()
		c.running[action]--
		if c.running[action] <= 0 {
			delete(c.running, action)
		}
		if isAndroid(action) {
			c.androidBusy = false
		}
		c.mu.Unlock()

		c.tracker.UpdateProgress(100)
		c.tracker.SetStatus(out.Message, out.Kind.IsError())
		c.tracker.HideProgress()

		c.logger.InfoContext(ctx, "action finished",
			slog.String("action", string(action)),
			slog.String("kind", string(out.Kind)))

		if out.Kind == KindRemoteFailure && d != nil {
			d.Acknowledge(ctx, out)
		}
	}()

	return flow(ctx, snapshot)
}

// remoteFailure turns a proxy failure into an Outcome.
func remoteFailure(action Action, f *backend.Failure) Outcome {
	return Outcome{Action: action, Kind: KindRemoteFailure, Message: f.Message, Err: f}
}
