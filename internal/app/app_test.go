package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensebridge/internal/config"
	"licensebridge/internal/events"
	"licensebridge/internal/shared/testutil"
	"licensebridge/internal/shell"
)

func testApp(t *testing.T) *Application {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Telemetry.MetricExporter = "none"
	cfg.Security.RateLimit.Enabled = false
	cfg.Backend.ADBPath = filepath.Join(dir, "adb")
	cfg.Backend.TempDir = filepath.Join(dir, "tmp")
	cfg.Ledger.WorkbookPath = filepath.Join(dir, "ledger", "issued_licenses.xlsx")

	runner := shell.RunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if len(args) == 1 && args[0] == "devices" {
			return []byte("List of devices attached\nR58M123\tdevice\n"), nil
		}
		return nil, fmt.Errorf("unexpected command %s %v", name, args)
	})

	logger, _ := testutil.NewTestLogger(t)
	a, err := New(context.Background(), cfg,
		WithLogger(logger),
		WithRunner(runner),
		WithExecutableDir(func() (string, error) { return dir, nil }))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestNewCreatesDirectories(t *testing.T) {
	a := testApp(t)

	require.NotNil(t, a.Paths)
	for _, dir := range []string{a.Paths.DataDir, a.Paths.LogsDir, a.Paths.LedgerDir, a.Paths.TempDir} {
		assert.DirExists(t, dir)
	}
	assert.Equal(t, filepath.Join(a.Paths.ExecutableDir, "data", "ledger"), a.Paths.LedgerDir)
}

func TestNewFailsWhenExecutableDirUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.MetricExporter = "none"
	logger, _ := testutil.NewTestLogger(t)

	_, err := New(context.Background(), cfg,
		WithLogger(logger),
		WithExecutableDir(func() (string, error) { return "", fmt.Errorf("no executable") }))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no executable")
}

func post(t *testing.T, srv *httptest.Server, path string, body any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(string(raw)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func outcomeKind(body map[string]any) string {
	return body["outcome"].(map[string]any)["kind"].(string)
}

func TestIssueAndVerifyThroughWorkflow(t *testing.T) {
	a := testApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()
	outDir := t.TempDir()

	status := a.Bus.Subscribe("test", 64)
	defer status.Close()

	require.Equal(t, "success", outcomeKind(post(t, srv, "/api/workflow/select/device_code", map[string]any{"value": "ABC123"})))
	require.Equal(t, "success", outcomeKind(post(t, srv, "/api/workflow/select/auth_file_dir", map[string]any{"value": outDir})))

	issued := post(t, srv, "/api/workflow/license/issue", nil)
	require.Equal(t, "success", outcomeKind(issued), issued)

	licensePath := filepath.Join(outDir, config.LicenseFileName)
	assert.FileExists(t, licensePath)
	assert.FileExists(t, a.Config.Ledger.WorkbookPath)

	codePath := filepath.Join(outDir, config.DeviceCodeFileName)
	require.NoError(t, os.WriteFile(codePath, []byte("ABC123"), 0o644))
	post(t, srv, "/api/workflow/select/license_file", map[string]any{"value": licensePath})
	post(t, srv, "/api/workflow/select/device_code_file", map[string]any{"value": codePath})

	verified := post(t, srv, "/api/workflow/license/verify", nil)
	assert.Equal(t, "success", outcomeKind(verified), verified)
	assert.Contains(t, verified["outcome"].(map[string]any)["message"], "ABC123")

	sawStatus, sawLog := false, false
	deadline := time.After(2 * time.Second)
	for !(sawStatus && sawLog) {
		select {
		case ev := <-status.C:
			sawStatus = sawStatus || ev.Name == events.NameStatus
			sawLog = sawLog || ev.Name == events.NameLogMessage
		case <-deadline:
			t.Fatalf("status=%v log=%v", sawStatus, sawLog)
		}
	}
}

func TestCommandSurfaceUsesRunner(t *testing.T) {
	a := testApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/commands/list_adb_devices", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var devices []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&devices))
	assert.Equal(t, []string{"R58M123"}, devices)
}

func TestHealthReportsMissingADB(t *testing.T) {
	a := testApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + config.HealthEndpoint)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	require.NoError(t, os.WriteFile(a.Config.Backend.ADBPath, []byte{}, 0o755))
	resp2, err := http.Get(srv.URL + config.HealthEndpoint)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestServeInitializesAndStops(t *testing.T) {
	a := testApp(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Serve(ctx, listener, cancel))

	require.Eventually(t, func() bool {
		return a.Controller.State().SelectedAppDir != ""
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://" + listener.Addr().String() + "/api/workflow/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.Stop(context.Background()))
	assert.Equal(t, 0, a.Bus.SubscriberCount())
}
