package backend

import (
	"context"
	"os"
	"sync"

	"github.com/stretchr/testify/mock"

	"licensebridge/internal/events"
	"licensebridge/internal/ledger"
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

type MockADB struct {
	mock.Mock
}

func (m *MockADB) Devices(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockADB) Pull(ctx context.Context, serial, remote, local string) error {
	return m.Called(ctx, serial, remote, local).Error(0)
}

func (m *MockADB) Push(ctx context.Context, serial, local, remoteDir string) (string, error) {
	args := m.Called(ctx, serial, local, remoteDir)
	return args.String(0), args.Error(1)
}

func (m *MockADB) KillServer(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// writesCode makes a mocked Pull drop code into its local path argument.
func writesCode(code string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		_ = os.WriteFile(args.String(3), []byte(code), 0o644)
	}
}

type fixedGenerator struct {
	code string
	err  error
}

func (g fixedGenerator) Generate(context.Context) (string, error) { return g.code, g.err }

type capturePublisher struct {
	mu    sync.Mutex
	lines []string
}

func (c *capturePublisher) Publish(level events.Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, events.FormatLine(level, message))
}

func (c *capturePublisher) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

type memoryLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
	err     error
}

func (m *memoryLedger) Record(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}
