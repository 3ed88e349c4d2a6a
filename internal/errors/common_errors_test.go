package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantText string
	}{
		{
			name:     "precondition",
			err:      NewPreconditionError("Select a device code first"),
			wantType: ErrTypePrecondition,
			wantText: "[PRECONDITION] Select a device code first",
		},
		{
			name:     "remote keeps the backend message",
			err:      NewRemoteError("list_adb_devices", "adb: not found"),
			wantType: ErrTypeRemote,
			wantText: "[REMOTE] adb: not found",
		},
		{
			name:     "cancelled",
			err:      NewCancelledError("directory selection cancelled"),
			wantType: ErrTypeCancelled,
			wantText: "[CANCELLED] directory selection cancelled",
		},
		{
			name:     "storage with cause",
			err:      NewStorageError("write license", fs.ErrPermission),
			wantType: ErrTypeStorage,
			wantText: "[STORAGE] write license: permission denied",
		},
		{
			name:     "not found",
			err:      NewNotFoundError("license file"),
			wantType: ErrTypeNotFound,
			wantText: "[NOT_FOUND] license file not found",
		},
		{
			name:     "config",
			err:      NewConfigError("bad key", nil),
			wantType: ErrTypeConfig,
			wantText: "[CONFIG] bad key",
		},
		{
			name:     "validation",
			err:      NewAppValidationError("path is required"),
			wantType: ErrTypeValidation,
			wantText: "[VALIDATION] path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantText, tt.err.Error())
			assert.True(t, IsType(tt.err, tt.wantType))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewStorageError("read device code", fs.ErrNotExist)
	wrapped := fmt.Errorf("verify: %w", err)

	assert.True(t, errors.Is(wrapped, fs.ErrNotExist))

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeStorage, appErr.Type)
	assert.True(t, IsType(wrapped, ErrTypeStorage))
	assert.False(t, IsType(wrapped, ErrTypeRemote))
	assert.False(t, IsType(errors.New("plain"), ErrTypeRemote))
}

func TestAppErrorWithContext(t *testing.T) {
	err := NewRemoteError("generate_auth_file_cmd", "disk full")
	assert.Equal(t, "generate_auth_file_cmd", err.Context["operation"])

	bare := &AppError{Type: ErrTypeRemote, Message: "x"}
	bare.WithContext("k", 1)
	assert.Equal(t, 1, bare.Context["k"])
}
