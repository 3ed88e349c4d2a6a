package workflow

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"licensebridge/internal/backend"
	"licensebridge/pkg/contracts/commands"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ListDevices(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBackend) AuthorizeAndroid(ctx context.Context, batchMode bool) (string, error) {
	args := m.Called(ctx, batchMode)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) ExecutableDirectory(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) GenerateDeviceCode(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) IssueLicense(ctx context.Context, deviceCode, targetDir string) (string, error) {
	args := m.Called(ctx, deviceCode, targetDir)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) VerifyLicense(ctx context.Context, licensePath, deviceCodePath string) (commands.VerificationResult, error) {
	args := m.Called(ctx, licensePath, deviceCodePath)
	return args.Get(0).(commands.VerificationResult), args.Error(1)
}

func (m *MockBackend) AuthorizeApplication(ctx context.Context, appDir string) (commands.AuthorizeApplicationResponse, error) {
	args := m.Called(ctx, appDir)
	return args.Get(0).(commands.AuthorizeApplicationResponse), args.Error(1)
}

// recordingDialogs answers like Answer and remembers acknowledgments.
type recordingDialogs struct {
	Answer
	mu    sync.Mutex
	acked []Outcome
}

func (r *recordingDialogs) Acknowledge(_ context.Context, out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acked = append(r.acked, out)
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *MockBackend) {
	t.Helper()
	b := new(MockBackend)
	return NewController(backend.NewProxy(b, nil), nil, opts...), b
}
