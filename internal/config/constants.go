package config

import "licensebridge/pkg/contracts"

// Application constants
const (
	AppName    = "licensebridge"
	AppVersion = contracts.Version

	// Artifact names shared by the host and Android flows
	LicenseFileName     = "license.lic"
	DeviceCodeFileName  = "device_code.bin"
	LicenseExtension    = ".lic"
	DeviceCodeExtension = ".bin"

	// DefaultKeyHex is the AES-256 key shipped with the desktop tool.
	DefaultKeyHex = "6a1c6109e26cad37f6295bd3f3c270447f9272c4318237685b6c411d3a34359e"

	// Directory names (relative to executable)
	LogsDirName          = "logs"
	DataDirName          = "data"
	LedgerDirName        = "data/ledger"
	TempDirName          = "data/tmp"
	PlatformToolsDirName = "platform-tools"
)

// DefaultAndroidRemotePaths are the client app locations probed, in order,
// for device_code.bin on each Android device.
var DefaultAndroidRemotePaths = []string{
	"/storage/emulated/0/Android/data/alvr.client.stable/files/BUPT-VR_Client/",
	"/storage/emulated/0/Android/media/alvr.client.stable/files/",
}

// HTTP endpoints
const (
	CommandsEndpoint  = "/api/commands"
	WorkflowEndpoint  = "/api/workflow"
	WebSocketEndpoint = "/ws"
	HealthEndpoint    = "/healthz"
	MetricsEndpoint   = "/metrics"
)
