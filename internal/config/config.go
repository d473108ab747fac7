package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/logger"
)

// Config holds the settings shared by alertd and alertctl.
type Config struct {
	// ControlAddress is the gRPC address used by the tray and the editor.
	ControlAddress string `yaml:"control_address"`
	// HTTPAddress is the address of the renderer HTTP API. Empty disables it.
	HTTPAddress string `yaml:"http_address"`
	// PollInterval is the scheduler tick period.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Timeout bounds every control call.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Storage selects where rules are persisted.
	Storage Storage `yaml:"storage"`
	// Defaults is the appearance copied into new rules.
	Defaults alert.Appearance `yaml:"defaults"`
	// DelayPresets are the tray delay choices.
	DelayPresets []time.Duration `yaml:"delay_presets,flow"`
}

// Storage configures rule persistence.
type Storage struct {
	// Driver is DriverFile or DriverSQLite.
	Driver string `yaml:"driver"`
	// Path is the rules file or database; relative paths resolve against the config directory.
	Path string `yaml:"path"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "gentle-alert.yaml"

	// DefaultRulesFilename is the default rules file of the file driver.
	DefaultRulesFilename = "alerts.yaml"

	// DefaultDatabaseFilename is the default database of the sqlite driver.
	DefaultDatabaseFilename = "alerts.db"

	// DefaultControlAddress is the loopback gRPC address.
	DefaultControlAddress = "127.0.0.1:47231"

	// DefaultHTTPAddress is the loopback renderer API address.
	DefaultHTTPAddress = "127.0.0.1:47232"

	// DefaultPollInterval is the scheduler tick period.
	DefaultPollInterval = time.Second

	// DefaultTimeout is the default duration for control calls.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the permission for settings and rule files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is the permission for the settings directory.
	DefaultDirPermissions = 0o700

	// DriverFile stores rules in a YAML file.
	DriverFile = "file"

	// DriverSQLite stores rules in an SQLite database.
	DriverSQLite = "sqlite"

	// appDirName is the per-user directory under the OS config dir.
	appDirName = "gentle-alert"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownDriver is returned for an unsupported storage driver.
	errUnknownDriver = errors.New("unknown storage driver")
	// errBadDelayPreset is returned for a non-positive delay preset.
	errBadDelayPreset = errors.New("delay presets must be positive")
	// errBadLogLevel is returned for an unknown log level.
	errBadLogLevel = errors.New("unknown log level")
)

// DefaultDelayPresets returns the tray delay choices.
func DefaultDelayPresets() []time.Duration {
	return []time.Duration{10 * time.Minute, 20 * time.Minute, 30 * time.Minute}
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := new(Config)

	// Validate only fills defaults here and cannot fail.
	_ = Validate(cfg)

	return cfg
}

// DefaultPath returns the settings path in the user's config directory,
// falling back to the working directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultConfigFilename
	}

	return filepath.Join(dir, appDirName, DefaultConfigFilename)
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrCreate loads path, writing a default configuration there first if it does not exist.
func LoadOrCreate(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg, err := Load(path)
	if !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	cfg = Default()

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("create settings directory: %w", err)
	}

	if err := Save(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultPath()
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings.
//
//nolint:cyclop // A flat list of independent checks reads best.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ControlAddress == "" {
		cfg.ControlAddress = DefaultControlAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ControlAddress); err != nil {
		return fmt.Errorf("invalid control address: %w", err)
	}

	if cfg.HTTPAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%q: %w", cfg.LogLevel, errBadLogLevel)
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return err
	}

	if cfg.Defaults == (alert.Appearance{}) {
		cfg.Defaults = alert.DefaultAppearance()
	}

	if err := cfg.Defaults.Validate(); err != nil {
		return fmt.Errorf("invalid default appearance: %w", err)
	}

	if len(cfg.DelayPresets) == 0 {
		cfg.DelayPresets = DefaultDelayPresets()
	}

	for _, preset := range cfg.DelayPresets {
		if preset <= 0 {
			return fmt.Errorf("%s: %w", preset, errBadDelayPreset)
		}
	}

	return nil
}

func validateStorage(storage *Storage) error {
	switch storage.Driver {
	case "":
		storage.Driver = DriverFile
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("%q: %w", storage.Driver, errUnknownDriver)
	}

	if storage.Path != "" {
		return nil
	}

	if storage.Driver == DriverSQLite {
		storage.Path = DefaultDatabaseFilename
	} else {
		storage.Path = DefaultRulesFilename
	}

	return nil
}

// ResolvePath makes p absolute relative to the directory of configPath.
func ResolvePath(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	if configPath == "" {
		configPath = DefaultPath()
	}

	return filepath.Join(filepath.Dir(configPath), p)
}
