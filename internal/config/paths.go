package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// executablePath is swapped in tests.
var executablePath = os.Executable

// Paths contains all the application paths.
// Every path is anchored at the executable directory, never the working directory.
type Paths struct {
	ExecutableDir    string
	DataDir          string
	LogsDir          string
	LedgerDir        string
	TempDir          string
	PlatformToolsDir string
	ADBExecutable    string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := executablePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return PathsFor(filepath.Dir(exe)), nil
}

// PathsFor lays out the application paths under exeDir.
func PathsFor(exeDir string) *Paths {
	toolsDir := filepath.Join(exeDir, PlatformToolsDirName)
	return &Paths{
		ExecutableDir:    exeDir,
		DataDir:          filepath.Join(exeDir, DataDirName),
		LogsDir:          filepath.Join(exeDir, LogsDirName),
		LedgerDir:        filepath.Join(exeDir, filepath.FromSlash(LedgerDirName)),
		TempDir:          filepath.Join(exeDir, filepath.FromSlash(TempDirName)),
		PlatformToolsDir: toolsDir,
		ADBExecutable:    filepath.Join(toolsDir, adbBinaryName()),
	}
}

func adbBinaryName() string {
	if runtime.GOOS == "windows" {
		return "adb.exe"
	}
	return "adb"
}

// Resolve returns path unchanged when absolute, otherwise joined to the
// executable directory.
func (p *Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.ExecutableDir, filepath.FromSlash(path))
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.LogsDir,
		p.LedgerDir,
		p.TempDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// LogPathResolution logs the resolved layout for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("logs", p.LogsDir),
			slog.String("ledger", p.LedgerDir),
			slog.String("temp", p.TempDir),
		),
		slog.Group("tools",
			slog.String("adb", p.ADBExecutable),
			slog.Bool("adb_exists", FileExists(p.ADBExecutable)),
		))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
