package workflow

import (
	"context"
	"fmt"
	"strings"
)

// RefreshDevices lists the connected Android devices. On failure the device
// list is cleared rather than left stale.
func (c *Controller) RefreshDevices(ctx context.Context, d Dialogs) Outcome {
	return c.run(ctx, ActionRefreshDevices, d, "refreshing Android devices...",
		func(ctx context.Context, _ State) Outcome {
			devices, failure := c.proxy.ListDevices(ctx)
			if failure != nil {
				c.setDevices(nil)
				return remoteFailure(ActionRefreshDevices, failure)
			}
			c.setDevices(devices)

			msg := "no devices"
			if len(devices) > 0 {
				msg = fmt.Sprintf("%d device(s) connected: %s", len(devices), strings.Join(devices, ", "))
			}
			return Outcome{Action: ActionRefreshDevices, Kind: KindSuccess, Message: msg, Details: devices}
		})
}

// AuthorizeAndroid authorizes the first connected device, or every device
// when batchMode is set. The authorize control stays disabled until the
// backend answers.
func (c *Controller) AuthorizeAndroid(ctx context.Context, d Dialogs, batchMode bool) Outcome {
	initial := "authorizing the connected Android device..."
	if batchMode {
		initial = "authorizing all connected Android devices..."
	}
	return c.run(ctx, ActionAuthorizeAndroid, d, initial,
		func(ctx context.Context, _ State) Outcome {
			report, failure := c.proxy.AuthorizeAndroid(ctx, batchMode)
			if failure != nil {
				return remoteFailure(ActionAuthorizeAndroid, failure)
			}
			return Outcome{Action: ActionAuthorizeAndroid, Kind: KindSuccess, Message: report, Details: report}
		})
}

// Devices returns the last listed devices.
func (c *Controller) Devices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.devices...)
}

func (c *Controller) setDevices(devices []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = append([]string{}, devices...)
}
