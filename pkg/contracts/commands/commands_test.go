package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFieldNames(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"android", AndroidAuthorizationRequest{BatchMode: true}, `{"batchMode":true}`},
		{"issue", GenerateAuthFileRequest{DeviceCode: "ABC123", TargetPathStr: "/tmp/out"},
			`{"deviceCode":"ABC123","targetPathStr":"/tmp/out"}`},
		{"verify", CheckAuthorizationRequest{AuthFilePathStr: "a.lic", DeviceCodeFilePathStr: "c.bin"},
			`{"authFilePathStr":"a.lic","deviceCodeFilePathStr":"c.bin"}`},
		{"application", AuthorizeApplicationRequest{ApplicationPathStr: "/opt/app"},
			`{"applicationPathStr":"/opt/app"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestVerificationResultShape(t *testing.T) {
	raw := `{"device_code":"b5d4045c3f466fa9","serial_number":"s-1","issued_at":"2026-01-02T03:04:05Z","status":"pass"}`

	var v VerificationResult
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	assert.True(t, v.Passed())
	assert.Equal(t, "b5d4045c3f466fa9", v.DeviceCode)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestAuthorizeApplicationResponseOmitsDetails(t *testing.T) {
	out, err := json.Marshal(AuthorizeApplicationResponse{
		AuthorizationMessage: "license written",
		VerificationStatus:   "verification failed: device code does not match the license",
	})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "verification_details")
	assert.Contains(t, string(out), `"authorization_message"`)
}

func TestKnown(t *testing.T) {
	for _, n := range All {
		assert.True(t, Known(n), n)
	}
	assert.False(t, Known("format_disk"))
}
