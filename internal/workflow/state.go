package workflow

import "fmt"

// Field names one user selection in the workflow state.
type Field string

const (
	FieldAppDir            Field = "app_dir"
	FieldDeviceCodeForAuth Field = "device_code"
	FieldAuthFileDir       Field = "auth_file_dir"
	FieldLicenseFile       Field = "license_file"
	FieldDeviceCodeFile    Field = "device_code_file"
)

// Fields lists every selection in display order.
var Fields = []Field{
	FieldAppDir,
	FieldDeviceCodeForAuth,
	FieldAuthFileDir,
	FieldLicenseFile,
	FieldDeviceCodeFile,
}

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown selection %q", s)
}

// State is the user-facing workflow state. Every selection is either empty
// or a validated value, and is only ever replaced by a new selection.
type State struct {
	SelectedAppDir                     string `json:"selected_app_dir"`
	SelectedDeviceCodeForAuth          string `json:"selected_device_code_for_auth"`
	SelectedAuthFileDir                string `json:"selected_auth_file_dir"`
	SelectedLicenseFileToVerifyPath    string `json:"selected_license_file_to_verify_path"`
	SelectedDeviceCodeFileToVerifyPath string `json:"selected_device_code_file_to_verify_path"`

	// DeviceCodeGeneration increases with every generation request. A
	// result is stored only while its generation is still current.
	DeviceCodeGeneration uint64 `json:"device_code_generation"`
}

// Get returns the value of f.
func (s State) Get(f Field) string {
	switch f {
	case FieldAppDir:
		return s.SelectedAppDir
	case FieldDeviceCodeForAuth:
		return s.SelectedDeviceCodeForAuth
	case FieldAuthFileDir:
		return s.SelectedAuthFileDir
	case FieldLicenseFile:
		return s.SelectedLicenseFileToVerifyPath
	case FieldDeviceCodeFile:
		return s.SelectedDeviceCodeFileToVerifyPath
	}
	return ""
}

// Set replaces the value of f.
func (s *State) Set(f Field, value string) {
	switch f {
	case FieldAppDir:
		s.SelectedAppDir = value
	case FieldDeviceCodeForAuth:
		s.SelectedDeviceCodeForAuth = value
	case FieldAuthFileDir:
		s.SelectedAuthFileDir = value
	case FieldLicenseFile:
		s.SelectedLicenseFileToVerifyPath = value
	case FieldDeviceCodeFile:
		s.SelectedDeviceCodeFileToVerifyPath = value
	}
}

// IsSet reports whether f holds a value.
func (s State) IsSet(f Field) bool { return s.Get(f) != "" }

func (f Field) label() string {
	switch f {
	case FieldAppDir:
		return "application directory"
	case FieldDeviceCodeForAuth:
		return "device code"
	case FieldAuthFileDir:
		return "license output directory"
	case FieldLicenseFile:
		return "license file"
	case FieldDeviceCodeFile:
		return "device code file"
	}
	return string(f)
}
