package workflow

import (
	"fmt"
	"strings"

	apierrors "licensebridge/internal/errors"
)

// Action is a user-triggerable command.
type Action string

const (
	ActionAuthorizeWindowsApp Action = "authorize_windows_app"
	ActionGenerateLicenseFile Action = "generate_license_file"
	ActionVerifyLicense       Action = "verify_license"
	ActionAuthorizeAndroid    Action = "authorize_android"
	ActionRefreshDevices      Action = "refresh_devices"
	ActionGenerateDeviceCode  Action = "generate_device_code"
	ActionSelect              Action = "select"
)

// Actions lists every action the Gate decides on.
var Actions = []Action{
	ActionAuthorizeWindowsApp,
	ActionGenerateLicenseFile,
	ActionVerifyLicense,
	ActionAuthorizeAndroid,
	ActionRefreshDevices,
	ActionGenerateDeviceCode,
	ActionSelect,
}

// requirements are the selections each action needs.
var requirements = map[Action][]Field{
	ActionAuthorizeWindowsApp: {FieldAppDir},
	ActionGenerateLicenseFile: {FieldDeviceCodeForAuth, FieldAuthFileDir},
	ActionVerifyLicense:       {FieldLicenseFile, FieldDeviceCodeFile},
}

// supersedes reports actions where a new request replaces an in-flight
// one instead of waiting for it.
func supersedes(a Action) bool {
	return a == ActionGenerateDeviceCode
}

func isAndroid(a Action) bool {
	return a == ActionAuthorizeAndroid || a == ActionRefreshDevices
}

// StateView is everything the Gate looks at.
type StateView struct {
	State
	// AndroidBusy is set while a device listing or authorization runs.
	AndroidBusy bool
	// Running holds actions whose control is disabled while in flight.
	Running map[Action]bool
}

// ActionSet maps every action to whether it is currently enabled.
type ActionSet map[Action]bool

// Enabled reports whether a is enabled.
func (s ActionSet) Enabled(a Action) bool { return s[a] }

// Evaluate computes the enabled actions for v.
func Evaluate(v StateView) ActionSet {
	set := make(ActionSet, len(Actions))
	for _, a := range Actions {
		set[a] = Check(a, v) == nil
	}
	return set
}

// Check returns a precondition error naming what a is missing, or nil when
// a may start.
func Check(a Action, v StateView) *apierrors.AppError {
	if isAndroid(a) && v.AndroidBusy {
		return apierrors.NewPreconditionError("an Android operation is already in progress").
			WithContext("action", string(a))
	}
	if v.Running[a] && !supersedes(a) {
		return apierrors.NewPreconditionError(fmt.Sprintf("a request to %s is still running", a.label())).
			WithContext("action", string(a))
	}

	var missing []string
	for _, f := range requirements[a] {
		if !v.IsSet(f) {
			missing = append(missing, f.label())
		}
	}
	if len(missing) > 0 {
		return apierrors.NewPreconditionError(
			fmt.Sprintf("cannot %s: select the %s first", a.label(), strings.Join(missing, " and the "))).
			WithContext("action", string(a)).
			WithContext("missing", missing)
	}
	return nil
}

func (a Action) label() string {
	switch a {
	case ActionAuthorizeWindowsApp:
		return "authorize the application"
	case ActionGenerateLicenseFile:
		return "generate the license file"
	case ActionVerifyLicense:
		return "verify the license"
	case ActionAuthorizeAndroid:
		return "authorize Android devices"
	case ActionRefreshDevices:
		return "refresh the device list"
	case ActionGenerateDeviceCode:
		return "generate a device code"
	}
	return string(a)
}
