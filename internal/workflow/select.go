package workflow

import (
	"context"
	"fmt"
	"strings"

	"licensebridge/internal/config"
	apierrors "licensebridge/internal/errors"
)

var selectDialogs = map[Field]DialogRequest{
	FieldAppDir:            {Kind: DialogDirectory, Field: FieldAppDir, Title: "Select the application directory"},
	FieldDeviceCodeForAuth: {Kind: DialogText, Field: FieldDeviceCodeForAuth, Title: "Enter the device code to license"},
	FieldAuthFileDir:       {Kind: DialogDirectory, Field: FieldAuthFileDir, Title: "Select where to write the license file"},
	FieldLicenseFile:       {Kind: DialogOpenFile, Field: FieldLicenseFile, Title: "Select the license file", Extension: config.LicenseExtension},
	FieldDeviceCodeFile:    {Kind: DialogOpenFile, Field: FieldDeviceCodeFile, Title: "Select the device code file", Extension: config.DeviceCodeExtension},
}

// Select asks d for a new value of field. Cancelling keeps the previous
// value; an invalid choice is refused and also keeps it.
func (c *Controller) Select(ctx context.Context, field Field, d Dialogs) Outcome {
	req, ok := selectDialogs[field]
	if !ok {
		err := apierrors.NewAppValidationError(fmt.Sprintf("unknown selection %q", field))
		return Outcome{Action: ActionSelect, Kind: KindPreconditionFailed, Message: err.Message, Err: err}
	}
	if d == nil {
		d = Cancelled
	}

	value, chosen := d.Choose(ctx, req)
	if !chosen {
		msg := fmt.Sprintf("%s selection cancelled", field.label())
		out := Outcome{
			Action:  ActionSelect,
			Kind:    KindCancelled,
			Message: msg,
			Details: c.State().Get(field),
			Err:     apierrors.NewCancelledError(msg).WithContext("field", string(field)),
		}
		c.tracker.SetStatus(out.Message, false)
		return out
	}

	if err := validateSelection(req, value); err != nil {
		out := Outcome{Action: ActionSelect, Kind: KindPreconditionFailed, Message: err.Message, Err: err}
		c.tracker.SetStatus(out.Message, true)
		return out
	}

	c.mu.Lock()
	c.state.Set(field, value)
	c.mu.Unlock()

	out := Outcome{
		Action:  ActionSelect,
		Kind:    KindSuccess,
		Message: fmt.Sprintf("%s: %s", field.label(), value),
		Details: value,
	}
	c.tracker.SetStatus(out.Message, false)
	return out
}

// SelectAppDir selects the directory for the combined Windows flow.
func (c *Controller) SelectAppDir(ctx context.Context, d Dialogs) Outcome {
	return c.Select(ctx, FieldAppDir, d)
}

// SetDeviceCodeForAuth sets the device code to license by hand.
func (c *Controller) SetDeviceCodeForAuth(ctx context.Context, d Dialogs) Outcome {
	return c.Select(ctx, FieldDeviceCodeForAuth, d)
}

// SelectAuthFileDir selects where issued licenses are written.
func (c *Controller) SelectAuthFileDir(ctx context.Context, d Dialogs) Outcome {
	return c.Select(ctx, FieldAuthFileDir, d)
}

// SelectLicenseFileToVerify selects the license to verify.
func (c *Controller) SelectLicenseFileToVerify(ctx context.Context, d Dialogs) Outcome {
	return c.Select(ctx, FieldLicenseFile, d)
}

// SelectDeviceCodeFileToVerify selects the device code file to verify against.
func (c *Controller) SelectDeviceCodeFileToVerify(ctx context.Context, d Dialogs) Outcome {
	return c.Select(ctx, FieldDeviceCodeFile, d)
}

func validateSelection(req DialogRequest, value string) *apierrors.AppError {
	switch req.Kind {
	case DialogDirectory:
		if !config.DirExists(value) {
			return apierrors.NewAppValidationError(fmt.Sprintf("not a directory: %s", value))
		}
	case DialogOpenFile:
		if !config.FileExists(value) || config.DirExists(value) {
			return apierrors.NewAppValidationError(fmt.Sprintf("file not found: %s", value))
		}
	case DialogText:
		if strings.ContainsAny(value, "\r\n") {
			return apierrors.NewAppValidationError("the device code must be a single line")
		}
	}
	return nil
}
