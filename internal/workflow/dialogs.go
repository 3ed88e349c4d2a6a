package workflow

import (
	"context"
	"strings"
)

// DialogKind selects the kind of native dialog a front end should show.
type DialogKind string

const (
	DialogDirectory DialogKind = "directory"
	DialogOpenFile  DialogKind = "open_file"
	DialogSaveFile  DialogKind = "save_file"
	DialogText      DialogKind = "text"
)

// DialogRequest describes one question to the user.
type DialogRequest struct {
	Kind        DialogKind
	Field       Field
	Title       string
	DefaultName string
	Extension   string
}

// Dialogs is the file/directory selection service of a front end.
type Dialogs interface {
	// Choose returns the selected value, or false when the user cancelled.
	Choose(ctx context.Context, req DialogRequest) (string, bool)
	// Acknowledge shows a remote failure and returns once the user saw it.
	Acknowledge(ctx context.Context, out Outcome)
}

// Answer is a Dialogs that already knows the user's choice. Front ends that
// collect input before calling the controller (HTTP bodies, CLI flags) use it.
type Answer struct {
	Value     string
	Cancelled bool
}

// Choose implements Dialogs. An empty value counts as cancelled.
func (a Answer) Choose(context.Context, DialogRequest) (string, bool) {
	v := strings.TrimSpace(a.Value)
	if a.Cancelled || v == "" {
		return "", false
	}
	return v, true
}

// Acknowledge implements Dialogs; the failure is already in the Outcome.
func (Answer) Acknowledge(context.Context, Outcome) {}

// Cancelled is a Dialogs that declines every question.
var Cancelled Dialogs = Answer{Cancelled: true}
