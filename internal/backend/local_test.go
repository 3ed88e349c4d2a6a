package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"licensebridge/internal/config"
	apierrors "licensebridge/internal/errors"
	"licensebridge/internal/ledger"
	"licensebridge/internal/licensefile"
	"licensebridge/pkg/contracts/commands"
)

const (
	remoteData  = "/storage/emulated/0/Android/data/app/files/"
	remoteMedia = "/storage/emulated/0/Android/media/app/files/"
)

type fixture struct {
	local  *Local
	adb    *MockADB
	ledger *memoryLedger
	events *capturePublisher
}

func newFixture(t *testing.T, concurrency int) *fixture {
	t.Helper()
	key, err := licensefile.KeyFromHex(config.DefaultKeyHex)
	require.NoError(t, err)
	codec, err := licensefile.NewCodec(key)
	require.NoError(t, err)

	f := &fixture{adb: new(MockADB), ledger: &memoryLedger{}, events: &capturePublisher{}}
	f.local, err = NewLocal(config.BackendConfig{
		AndroidRemotePaths: []string{remoteData, remoteMedia},
		TempDir:            t.TempDir(),
		BatchConcurrency:   concurrency,
	}, Dependencies{
		ADB:           f.adb,
		Generator:     fixedGenerator{code: "b5d4045c3f466fa9"},
		Codec:         codec,
		Ledger:        f.ledger,
		Events:        f.events,
		ExecutableDir: func() (string, error) { return "/opt/licensebridge", nil },
	})
	require.NoError(t, err)
	return f
}

func TestNewLocalRequiresDependencies(t *testing.T) {
	_, err := NewLocal(config.BackendConfig{AndroidRemotePaths: []string{remoteData}}, Dependencies{})
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeConfig))
}

func TestIssueLicenseScenario(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	dir := t.TempDir()

	report, err := f.local.IssueLicense(ctx, "ABC123", dir)
	require.NoError(t, err)
	assert.Contains(t, report, "ABC123")
	assert.FileExists(t, filepath.Join(dir, config.LicenseFileName))

	// Re-issuing into the same directory is allowed.
	_, err = f.local.IssueLicense(ctx, "ABC123", dir)
	require.NoError(t, err)

	require.Len(t, f.ledger.entries, 2)
	assert.Equal(t, ledger.SourceWindows, f.ledger.entries[0].Source)
	assert.Equal(t, dir, f.ledger.entries[0].Target)
	assert.NotEqual(t, f.ledger.entries[0].SerialNumber, f.ledger.entries[1].SerialNumber)
}

func TestIssueLicenseRejectsMissingDirectory(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.local.IssueLicense(context.Background(), "ABC123", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, Message(err), "not a valid directory")
	assert.Empty(t, f.ledger.entries)
}

func TestIssueSucceedsWhenLedgerFails(t *testing.T) {
	f := newFixture(t, 1)
	f.ledger.err = errors.New("workbook locked")

	_, err := f.local.IssueLicense(context.Background(), "ABC123", t.TempDir())
	assert.NoError(t, err)
}

func TestVerifyLicense(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := f.local.IssueLicense(ctx, "ABC123", dir)
	require.NoError(t, err)
	licensePath := filepath.Join(dir, config.LicenseFileName)

	matching := filepath.Join(dir, "matching.bin")
	require.NoError(t, licensefile.WriteDeviceCode(matching, "ABC123\n"))
	unrelated := filepath.Join(dir, "unrelated.bin")
	require.NoError(t, licensefile.WriteDeviceCode(unrelated, "FFFF0000"))

	t.Run("matching pair passes", func(t *testing.T) {
		v, err := f.local.VerifyLicense(ctx, licensePath, matching)
		require.NoError(t, err)
		assert.True(t, v.Passed())
		assert.Equal(t, "ABC123", v.DeviceCode)
		assert.Equal(t, f.ledger.entries[0].SerialNumber, v.SerialNumber)
		assert.NotEmpty(t, v.IssuedAt)
	})

	t.Run("unrelated code is a negative result", func(t *testing.T) {
		v, err := f.local.VerifyLicense(ctx, licensePath, unrelated)
		require.NoError(t, err)
		assert.False(t, v.Passed())
		assert.Equal(t, commands.StatusFail, v.Status)
		assert.Empty(t, v.DeviceCode)
	})

	t.Run("missing license is a failure", func(t *testing.T) {
		_, err := f.local.VerifyLicense(ctx, filepath.Join(dir, "nope.lic"), matching)
		require.Error(t, err)
		assert.True(t, apierrors.IsType(err, apierrors.ErrTypeNotFound))
	})

	t.Run("malformed license is a failure", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.lic")
		require.NoError(t, os.WriteFile(bad, []byte("not a license"), 0o644))
		_, err := f.local.VerifyLicense(ctx, bad, matching)
		assert.Error(t, err)
	})
}

func TestAuthorizeApplication(t *testing.T) {
	f := newFixture(t, 1)
	dir := t.TempDir()

	resp, err := f.local.AuthorizeApplication(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, strings.Contains(resp.VerificationStatus, PassedMarker), resp.VerificationStatus)
	require.NotNil(t, resp.VerificationDetails)
	assert.Equal(t, "b5d4045c3f466fa9", resp.VerificationDetails.DeviceCode)
	assert.FileExists(t, filepath.Join(dir, config.DeviceCodeFileName))
	assert.FileExists(t, filepath.Join(dir, config.LicenseFileName))

	_, err = f.local.AuthorizeApplication(context.Background(), filepath.Join(dir, "missing"))
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeValidation))
}

func TestAuthorizeApplicationGeneratorFailure(t *testing.T) {
	f := newFixture(t, 1)
	f.local.generator = fixedGenerator{err: apierrors.NewAppError(apierrors.ErrTypeNotFound, "unable to read a valid motherboard serial number", nil)}

	_, err := f.local.AuthorizeApplication(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, "unable to read a valid motherboard serial number", Message(err))
}

func TestExecutableDirectory(t *testing.T) {
	f := newFixture(t, 1)
	dir, err := f.local.ExecutableDirectory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/opt/licensebridge", dir)

	f.local.execDir = func() (string, error) { return "", errors.New("no executable") }
	dir, err = f.local.ExecutableDirectory(context.Background())
	require.NoError(t, err, "absence is not an error")
	assert.Empty(t, dir)
}

func TestListDevices(t *testing.T) {
	f := newFixture(t, 1)
	f.adb.On("Devices", mock.Anything).Return([]string{"AA"}, nil).Once()
	f.adb.On("Devices", mock.Anything).Return(nil, errors.New("adb not found")).Once()

	devices, err := f.local.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AA"}, devices)

	_, err = f.local.ListDevices(context.Background())
	require.Error(t, err)
	assert.Contains(t, f.events.Lines()[len(f.events.Lines())-1], "[ERROR] failed to list devices")
}

func TestAuthorizeAndroidNoDevices(t *testing.T) {
	f := newFixture(t, 1)
	f.adb.On("Devices", mock.Anything).Return([]string{}, nil).Once()

	_, err := f.local.AuthorizeAndroid(context.Background(), true)
	assert.ErrorIs(t, err, errNoDevices)
	f.adb.AssertNotCalled(t, "KillServer", mock.Anything)
}

func TestAuthorizeAndroidSingleUsesFirstDeviceAndFallsBack(t *testing.T) {
	f := newFixture(t, 1)
	f.adb.On("Devices", mock.Anything).Return([]string{"AA", "BB"}, nil).Once()
	f.adb.On("Pull", mock.Anything, "AA", remoteData+config.DeviceCodeFileName, mock.Anything).
		Return(errors.New("remote object does not exist")).Once()
	f.adb.On("Pull", mock.Anything, "AA", remoteMedia+config.DeviceCodeFileName, mock.Anything).
		Run(writesCode("CODE-AA")).Return(nil).Once()
	f.adb.On("Push", mock.Anything, "AA", mock.Anything, remoteMedia).
		Return(remoteMedia+config.LicenseFileName, nil).Once()
	f.adb.On("KillServer", mock.Anything).Return(nil).Once()

	report, err := f.local.AuthorizeAndroid(context.Background(), false)
	require.NoError(t, err)

	lines := strings.Split(report, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "device AA authorized")
	assert.Equal(t, "1/1 devices authorized", lines[1])
	f.adb.AssertExpectations(t)
	f.adb.AssertNotCalled(t, "Pull", mock.Anything, "BB", mock.Anything, mock.Anything)

	require.Len(t, f.ledger.entries, 1)
	assert.Equal(t, "CODE-AA", f.ledger.entries[0].DeviceCode)
	assert.Equal(t, ledger.SourceAndroid, f.ledger.entries[0].Source)

	leftovers, err := os.ReadDir(f.local.tempDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temporary files must be cleaned up")
}

func TestAuthorizeAndroidBatchPartialFailure(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		f := newFixture(t, concurrency)
		devices := []string{"D1", "D2", "D3", "D4", "D5"}
		failing := map[string]bool{"D2": true, "D4": true}

		f.adb.On("Devices", mock.Anything).Return(devices, nil).Once()
		for _, d := range devices {
			if failing[d] {
				f.adb.On("Pull", mock.Anything, d, mock.Anything, mock.Anything).Return(errors.New("offline"))
				continue
			}
			f.adb.On("Pull", mock.Anything, d, remoteData+config.DeviceCodeFileName, mock.Anything).
				Run(writesCode("CODE-" + d)).Return(nil).Once()
			f.adb.On("Push", mock.Anything, d, mock.Anything, remoteData).
				Return(remoteData+config.LicenseFileName, nil).Once()
		}
		f.adb.On("KillServer", mock.Anything).Return(errors.New("already stopped")).Once()

		report, err := f.local.AuthorizeAndroid(context.Background(), true)
		require.NoError(t, err)

		lines := strings.Split(report, "\n")
		require.Len(t, lines, len(devices)+1)
		for i, d := range devices {
			assert.True(t, strings.HasPrefix(lines[i], "device "+d), lines[i])
			if failing[d] {
				assert.Contains(t, lines[i], "failed on every known path")
			} else {
				assert.Contains(t, lines[i], "authorized")
			}
		}
		assert.Equal(t, "3/5 devices authorized", lines[len(lines)-1])
		assert.Len(t, f.ledger.entries, 3)

		// Every failing device tried both paths.
		f.adb.AssertNumberOfCalls(t, "Pull", 3+2*2)
		f.adb.AssertExpectations(t)
	}
}

func TestAuthorizeAndroidFinishesAfterCallerCancels(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	f.adb.On("Devices", live).Return([]string{"D1"}, nil).Once()
	f.adb.On("Pull", live, "D1", remoteData+config.DeviceCodeFileName, mock.Anything).
		Run(func(args mock.Arguments) {
			writesCode("CODE-D1")(args)
			cancel()
		}).Return(nil).Once()
	f.adb.On("Push", live, "D1", mock.Anything, remoteData).
		Return(remoteData+config.LicenseFileName, nil).Once()
	f.adb.On("KillServer", live).Return(nil).Once()

	report, err := f.local.AuthorizeAndroid(ctx, false)
	require.NoError(t, err)

	assert.Contains(t, report, "device D1 authorized")
	assert.Contains(t, report, "1/1 devices authorized")
	f.adb.AssertExpectations(t)
}

func TestAndroidRunsDoNotOverlap(t *testing.T) {
	f := newFixture(t, 1)
	entered := make(chan struct{}, 2)
	release := make(chan struct{})

	f.adb.On("Devices", mock.Anything).Return([]string{"D1"}, nil).Twice()
	f.adb.On("Pull", mock.Anything, "D1", remoteData+config.DeviceCodeFileName, mock.Anything).
		Run(func(args mock.Arguments) {
			entered <- struct{}{}
			<-release
			writesCode("CODE-D1")(args)
		}).Return(nil).Twice()
	f.adb.On("Push", mock.Anything, "D1", mock.Anything, remoteData).
		Return(remoteData+config.LicenseFileName, nil).Twice()
	f.adb.On("KillServer", mock.Anything).Return(nil).Twice()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := f.local.AuthorizeAndroid(context.Background(), false)
			assert.NoError(t, err)
			assert.Contains(t, report, "1/1 devices authorized")
		}()
	}

	<-entered
	select {
	case <-entered:
		t.Fatal("second run reached adb while the first was still pulling")
	case <-time.After(100 * time.Millisecond):
	}
	close(release)
	wg.Wait()

	f.adb.AssertExpectations(t)
}
