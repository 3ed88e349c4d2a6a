package workflow

import (
	"context"
	"fmt"
	"strings"

	"licensebridge/internal/backend"
	"licensebridge/internal/config"
	apierrors "licensebridge/internal/errors"
)

// Variant names one of the two shapes of the Windows licensing flow.
type Variant string

const (
	// VariantCombined issues and verifies in one backend call.
	VariantCombined Variant = "combined"
	// VariantDecomposed generates, issues and verifies in separate steps.
	VariantDecomposed Variant = "decomposed"
)

// WindowsFlow describes a variant and the actions it is made of.
type WindowsFlow struct {
	Variant Variant  `json:"variant"`
	Actions []Action `json:"actions"`
}

// WindowsFlows lists both variants.
var WindowsFlows = []WindowsFlow{
	{Variant: VariantCombined, Actions: []Action{ActionAuthorizeWindowsApp}},
	{Variant: VariantDecomposed, Actions: []Action{ActionGenerateDeviceCode, ActionGenerateLicenseFile, ActionVerifyLicense}},
}

var saveCodeDialog = DialogRequest{
	Kind:        DialogSaveFile,
	Field:       FieldDeviceCodeFile,
	Title:       "Save the device code",
	DefaultName: config.DeviceCodeFileName,
	Extension:   config.DeviceCodeExtension,
}

// AuthorizeApplication runs the combined flow on the selected application
// directory. A license that does not verify is a partial success.
func (c *Controller) AuthorizeApplication(ctx context.Context, d Dialogs) Outcome {
	return c.run(ctx, ActionAuthorizeWindowsApp, d, "authorizing the application...",
		func(ctx context.Context, s State) Outcome {
			resp, failure := c.proxy.AuthorizeApplication(ctx, s.SelectedAppDir)
			if failure != nil {
				return remoteFailure(ActionAuthorizeWindowsApp, failure)
			}

			kind := KindPartialSuccess
			if strings.Contains(resp.VerificationStatus, backend.PassedMarker) {
				kind = KindSuccess
			}
			return Outcome{
				Action:  ActionAuthorizeWindowsApp,
				Kind:    kind,
				Message: resp.AuthorizationMessage + "\n" + resp.VerificationStatus,
				Details: resp,
			}
		})
}

// GenerateDeviceCode asks the backend for this host's device code and
// stores it as the code to license. d is then offered a save dialog; a
// cancelled save keeps the code in memory. A result overtaken by a newer
// generation is discarded.
func (c *Controller) GenerateDeviceCode(ctx context.Context, d Dialogs) Outcome {
	c.mu.Lock()
	c.state.DeviceCodeGeneration++
	generation := c.state.DeviceCodeGeneration
	c.mu.Unlock()

	return c.run(ctx, ActionGenerateDeviceCode, d, "generating the device code...",
		func(ctx context.Context, _ State) Outcome {
			code, failure := c.proxy.GenerateDeviceCode(ctx)
			if failure != nil {
				return remoteFailure(ActionGenerateDeviceCode, failure)
			}

			c.mu.Lock()
			current := generation == c.state.DeviceCodeGeneration
			if current {
				c.state.SelectedDeviceCodeForAuth = code
			}
			c.mu.Unlock()
			if !current {
				msg := "device code result discarded: a newer generation was requested"
				return Outcome{
					Action:  ActionGenerateDeviceCode,
					Kind:    KindCancelled,
					Message: msg,
					Err:     apierrors.NewCancelledError(msg).WithContext("generation", generation),
				}
			}
			c.tracker.UpdateProgress(50)

			out := Outcome{Action: ActionGenerateDeviceCode, Kind: KindSuccess, Details: code}
			if d == nil {
				d = Cancelled
			}
			path, save := d.Choose(ctx, saveCodeDialog)
			switch {
			case !save:
				out.Message = fmt.Sprintf("device code generated: %s (not saved)", code)
			default:
				if err := c.writeFile(path, []byte(code), 0o644); err != nil {
					storageErr := apierrors.NewStorageError("failed to save the device code", err).WithContext("path", path)
					out.Kind = KindLocalFailure
					out.Message = fmt.Sprintf("device code generated: %s, but saving to %s failed: %v", code, path, err)
					out.Err = storageErr
					return out
				}
				out.Message = fmt.Sprintf("device code generated: %s (saved to %s)", code, path)
			}
			return out
		})
}

// IssueLicense issues a license for the selected device code into the
// selected output directory.
func (c *Controller) IssueLicense(ctx context.Context, d Dialogs) Outcome {
	return c.run(ctx, ActionGenerateLicenseFile, d, "generating the license file...",
		func(ctx context.Context, s State) Outcome {
			report, failure := c.proxy.IssueLicense(ctx, s.SelectedDeviceCodeForAuth, s.SelectedAuthFileDir)
			if failure != nil {
				return remoteFailure(ActionGenerateLicenseFile, failure)
			}
			return Outcome{Action: ActionGenerateLicenseFile, Kind: KindSuccess, Message: report, Details: report}
		})
}

// VerifyLicense checks the selected license against the selected device
// code file. A mismatch is a negative result, not a failure.
func (c *Controller) VerifyLicense(ctx context.Context, d Dialogs) Outcome {
	return c.run(ctx, ActionVerifyLicense, d, "verifying the license...",
		func(ctx context.Context, s State) Outcome {
			result, failure := c.proxy.VerifyLicense(ctx, s.SelectedLicenseFileToVerifyPath, s.SelectedDeviceCodeFileToVerifyPath)
			if failure != nil {
				return remoteFailure(ActionVerifyLicense, failure)
			}
			if !result.Passed() {
				msg := fmt.Sprintf("license verification did not pass (%s)", result.Status)
				if result.Reason != "" {
					msg += ": " + result.Reason
				}
				return Outcome{Action: ActionVerifyLicense, Kind: KindNegativeResult, Message: msg, Details: result}
			}
			return Outcome{
				Action: ActionVerifyLicense,
				Kind:   KindSuccess,
				Message: fmt.Sprintf("license verified: device code %s, serial number %s, issued at %s",
					result.DeviceCode, result.SerialNumber, result.IssuedAt),
				Details: result,
			}
		})
}
