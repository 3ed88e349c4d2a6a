// Package api contains the request contracts of the workflow HTTP API.
// Version v1 represents the current stable API version.
package api

// DialogAnswer is a front end's answer to a selection dialog. An empty
// value counts as cancelled.
type DialogAnswer struct {
	Value     string `json:"value" validate:"omitempty,single_line,max=4096"`
	Cancelled bool   `json:"cancelled"`
}

// SelectRequest answers the dialog of one selection field.
type SelectRequest struct {
	DialogAnswer
}

// AndroidAuthorizeRequest starts an Android authorization.
type AndroidAuthorizeRequest struct {
	BatchMode bool `json:"batch_mode"`
}

// GenerateDeviceCodeRequest answers the save dialog shown after a device
// code is generated. Leave Save empty to keep the code in memory only.
type GenerateDeviceCodeRequest struct {
	Save DialogAnswer `json:"save"`
}
