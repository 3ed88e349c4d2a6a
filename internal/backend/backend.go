// Package backend implements the authorization backend and the proxy every
// caller goes through to reach it.
//
// The proxy converts each backend outcome into either a typed value or a
// *Failure carrying the backend's message unchanged. It never retries, and
// panics inside the backend are recovered into failures.
package backend

import (
	"context"

	"licensebridge/pkg/contracts/commands"
)

// PassedMarker appears in a combined authorization's verification status
// when the freshly written license verified.
const PassedMarker = "verification passed"

// Backend is the set of remote operations the workflow depends on.
type Backend interface {
	ListDevices(ctx context.Context) ([]string, error)
	AuthorizeAndroid(ctx context.Context, batchMode bool) (string, error)
	// ExecutableDirectory returns "" when the directory cannot be determined.
	ExecutableDirectory(ctx context.Context) (string, error)
	GenerateDeviceCode(ctx context.Context) (string, error)
	IssueLicense(ctx context.Context, deviceCode, targetDir string) (string, error)
	VerifyLicense(ctx context.Context, licensePath, deviceCodePath string) (commands.VerificationResult, error)
	AuthorizeApplication(ctx context.Context, appDir string) (commands.AuthorizeApplicationResponse, error)
}

// ADB is the subset of the adb client used by the local backend.
type ADB interface {
	Devices(ctx context.Context) ([]string, error)
	Pull(ctx context.Context, serial, remote, local string) error
	Push(ctx context.Context, serial, local, remoteDir string) (string, error)
	KillServer(ctx context.Context) error
}

// CodeGenerator produces the host device code.
type CodeGenerator interface {
	Generate(ctx context.Context) (string, error)
}
