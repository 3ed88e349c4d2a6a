package shell

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerFunc(t *testing.T) {
	var gotName string
	var gotArgs []string
	r := RunnerFunc(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("ok"), nil
	})

	out, err := r.Run(context.Background(), "adb", "devices")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	assert.Equal(t, "adb", gotName)
	assert.Equal(t, []string{"devices"}, gotArgs)
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX sh")
	}
	r := NewExecRunner(nil)

	out, err := r.Run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	_, err = r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	_, err = r.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	assert.Error(t, err)
}

func TestExecRunnerHonoursContext(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX sleep")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecRunner(nil).Run(ctx, "sleep", "5")
	assert.Error(t, err)
}
