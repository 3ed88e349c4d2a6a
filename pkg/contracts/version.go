package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the release of both binaries and the HTTP contract they share.
	Version = "1.0.0"

	// APIVersion is the version of the HTTP and websocket contract.
	APIVersion = "v1"
)

// Stamped by build.go through -ldflags -X.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is reported by /healthz and licensectl --version.
type VersionInfo struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	BuildTime  string `json:"build_time"`
	GitCommit  string `json:"git_commit"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// GetVersionInfo describes the running binary.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:    Version,
		APIVersion: APIVersion,
		BuildTime:  BuildTime,
		GitCommit:  GitCommit,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetFullVersionString renders GetVersionInfo on one line.
func GetFullVersionString() string {
	v := GetVersionInfo()
	return fmt.Sprintf("licensebridge v%s (api %s, commit %s, built %s, %s %s)",
		v.Version, v.APIVersion, v.GitCommit, v.BuildTime, v.GoVersion, v.Platform)
}
