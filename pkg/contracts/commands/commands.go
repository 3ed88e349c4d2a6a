// Package commands defines the backend command names and their wire
// payloads. Field names are part of the contract with existing front ends
// and must not change.
package commands

// Name identifies a backend command.
type Name string

const (
	ListADBDevices              Name = "list_adb_devices"
	ProcessAndroidAuthorization Name = "process_android_authorization"
	GetExecutableDir            Name = "get_executable_dir"
	GenerateWindowsDeviceCode   Name = "generate_windows_device_code"
	GenerateAuthFile            Name = "generate_auth_file_cmd"
	CheckAuthorization          Name = "check_authorization_cmd"
	AuthorizeWindowsApplication Name = "authorize_windows_application"
)

// All lists every command in a stable order.
var All = []Name{
	ListADBDevices,
	ProcessAndroidAuthorization,
	GetExecutableDir,
	GenerateWindowsDeviceCode,
	GenerateAuthFile,
	CheckAuthorization,
	AuthorizeWindowsApplication,
}

// Known reports whether n is a defined command.
func Known(n Name) bool {
	for _, c := range All {
		if c == n {
			return true
		}
	}
	return false
}

// AndroidAuthorizationRequest is the argument of process_android_authorization.
type AndroidAuthorizationRequest struct {
	BatchMode bool `json:"batchMode"`
}

// GenerateAuthFileRequest is the argument of generate_auth_file_cmd.
type GenerateAuthFileRequest struct {
	DeviceCode    string `json:"deviceCode" validate:"required"`
	TargetPathStr string `json:"targetPathStr" validate:"required"`
}

// CheckAuthorizationRequest is the argument of check_authorization_cmd.
type CheckAuthorizationRequest struct {
	AuthFilePathStr       string `json:"authFilePathStr" validate:"required"`
	DeviceCodeFilePathStr string `json:"deviceCodeFilePathStr" validate:"required"`
}

// AuthorizeApplicationRequest is the argument of authorize_windows_application.
type AuthorizeApplicationRequest struct {
	ApplicationPathStr string `json:"applicationPathStr" validate:"required"`
}

// LicenseDetails are the fields echoed from a verified license.
type LicenseDetails struct {
	DeviceCode   string `json:"device_code"`
	SerialNumber string `json:"serial_number"`
	IssuedAt     string `json:"issued_at"`
}

// Verification statuses.
const (
	StatusPass    = "pass"
	StatusFail    = "fail"
	StatusPartial = "partial"
)

// VerificationResult is the result of check_authorization_cmd.
type VerificationResult struct {
	LicenseDetails
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Passed reports a passing verification.
func (v VerificationResult) Passed() bool { return v.Status == StatusPass }

// AuthorizeApplicationResponse is the result of authorize_windows_application.
type AuthorizeApplicationResponse struct {
	AuthorizationMessage string          `json:"authorization_message"`
	VerificationStatus   string          `json:"verification_status"`
	VerificationDetails  *LicenseDetails `json:"verification_details,omitempty"`
}
