package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "LICENSEBRIDGE"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Backend   BackendConfig   `yaml:"backend" envconfig:"BACKEND"`
	Ledger    LedgerConfig    `yaml:"ledger" envconfig:"LEDGER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration.
// WriteTimeout defaults to zero: remote calls carry no deadline, so the
// server must not cut a long-running authorization short.
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST" validate:"required"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gte=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// Address returns host:port for http.Server.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"min=1"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// BackendConfig drives the local authorization backend.
type BackendConfig struct {
	// ADBPath is the adb executable. Empty resolves to platform-tools/adb
	// next to the executable.
	ADBPath            string   `yaml:"adb_path" envconfig:"ADB_PATH"`
	AndroidRemotePaths []string `yaml:"android_remote_paths" envconfig:"ANDROID_REMOTE_PATHS" validate:"min=1,dive,required"`
	KeyHex             string   `yaml:"key_hex" envconfig:"KEY_HEX" validate:"omitempty,hexadecimal,max=64"`
	// KeyPassphrase, when set, replaces KeyHex with a scrypt-derived key.
	KeyPassphrase    string `yaml:"key_passphrase" envconfig:"KEY_PASSPHRASE"`
	TempDir          string `yaml:"temp_dir" envconfig:"TEMP_DIR"`
	BatchConcurrency int    `yaml:"batch_concurrency" envconfig:"BATCH_CONCURRENCY" validate:"min=1,max=32"`
}

// LedgerConfig controls where issued licenses are recorded.
type LedgerConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"ENABLED"`
	WorkbookPath    string `yaml:"workbook_path" envconfig:"WORKBOOK_PATH"`
	SheetID         string `yaml:"sheet_id" envconfig:"SHEET_ID"`
	SheetName       string `yaml:"sheet_name" envconfig:"SHEET_NAME" validate:"required"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// SheetsEnabled reports whether the Google Sheets sink has what it needs.
func (l LedgerConfig) SheetsEnabled() bool {
	return l.SheetID != "" && l.CredentialsFile != ""
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	MetricExporter string `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=none prometheus"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" validate:"gt=0"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" validate:"gt=0"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" validate:"gt=0"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" validate:"gtfield=PingPeriod"`
	SendBuffer      int           `yaml:"send_buffer" envconfig:"SEND_BUFFER" validate:"gt=0"`
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML config file, a .env file and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load without the .env step and with an explicit config file.
// An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths anchors relative paths at the executable directory.
func (c *Config) resolvePaths() error {
	paths, err := GetPaths()
	if err != nil {
		return fmt.Errorf("failed to get paths: %w", err)
	}

	if c.Backend.ADBPath == "" {
		c.Backend.ADBPath = paths.ADBExecutable
	}
	if c.Backend.TempDir == "" {
		c.Backend.TempDir = paths.TempDir
	}
	c.Backend.TempDir = paths.Resolve(c.Backend.TempDir)
	c.Ledger.WorkbookPath = paths.Resolve(c.Ledger.WorkbookPath)
	if c.Ledger.CredentialsFile != "" {
		c.Ledger.CredentialsFile = paths.Resolve(c.Ledger.CredentialsFile)
	}
	if c.Logging.FilePath != "" {
		c.Logging.FilePath = paths.Resolve(c.Logging.FilePath)
	}
	return nil
}

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate validates the configuration
func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}

	if c.Backend.KeyHex == "" && c.Backend.KeyPassphrase == "" {
		return fmt.Errorf("backend needs either key_hex or key_passphrase")
	}

	if c.Ledger.SheetID != "" && c.Ledger.CredentialsFile == "" {
		return fmt.Errorf("ledger sheet_id requires credentials_file")
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		filepath.Join("configs", "config.yaml"),
	}
	if paths, err := GetPaths(); err == nil {
		locations = append(locations, filepath.Join(paths.ExecutableDir, "config.yaml"))
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            7878,
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:7878", "http://127.0.0.1:7878"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: filepath.Join(LogsDirName, "licensebridge.log"),
		},
		Backend: BackendConfig{
			AndroidRemotePaths: append([]string(nil), DefaultAndroidRemotePaths...),
			KeyHex:             DefaultKeyHex,
			BatchConcurrency:   1,
		},
		Ledger: LedgerConfig{
			Enabled:      true,
			WorkbookPath: filepath.Join(LedgerDirName, "issued_licenses.xlsx"),
			SheetName:    "Licenses",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
			SendBuffer:      256,
		},
	}
}
