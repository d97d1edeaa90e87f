package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/questcap/internal/capture"
	"github.com/bryanchriswhite/questcap/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. QUESTCAP_DEVICE_HOST.
const EnvPrefix = "QUESTCAP"

// Config represents the application configuration
type Config struct {
	ADBPath    string        `json:"adb_path" yaml:"adb_path" mapstructure:"adb_path"`
	Device     DeviceConfig  `json:"device" yaml:"device" mapstructure:"device"`
	Capture    CaptureConfig `json:"capture" yaml:"capture" mapstructure:"capture"`
	Preview    PreviewConfig `json:"preview" yaml:"preview" mapstructure:"preview"`
	OutputDir  string        `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
	ServerPort int           `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
	LogLevel   string        `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// DeviceConfig selects the headset and how hard to try reaching it
type DeviceConfig struct {
	Host            string        `json:"host" yaml:"host" mapstructure:"host"` // empty means USB
	Port            int           `json:"port" yaml:"port" mapstructure:"port"`
	Serial          string        `json:"serial" yaml:"serial" mapstructure:"serial"`
	ConnectAttempts int           `json:"connect_attempts" yaml:"connect_attempts" mapstructure:"connect_attempts"`
	ConnectInterval time.Duration `json:"connect_interval" yaml:"connect_interval" mapstructure:"connect_interval"`
	RemoteDir       string        `json:"remote_dir" yaml:"remote_dir" mapstructure:"remote_dir"`
}

// CaptureConfig holds the capture loop and recording defaults
type CaptureConfig struct {
	FPS           float64 `json:"fps" yaml:"fps" mapstructure:"fps"`
	Scale         float64 `json:"scale" yaml:"scale" mapstructure:"scale"`
	RecordSeconds int     `json:"record_seconds" yaml:"record_seconds" mapstructure:"record_seconds"`
}

// PreviewConfig holds the preview refresh and web stream settings
type PreviewConfig struct {
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval" mapstructure:"refresh_interval"`
	JPEGQuality     int           `json:"jpeg_quality" yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		ADBPath: "adb",
		Device: DeviceConfig{
			Port:            5555,
			ConnectAttempts: 3,
			ConnectInterval: 5 * time.Second,
			RemoteDir:       "/sdcard",
		},
		Capture: CaptureConfig{
			FPS:           10,
			Scale:         0.5,
			RecordSeconds: 30,
		},
		Preview: PreviewConfig{
			RefreshInterval: 50 * time.Millisecond,
			JPEGQuality:     85,
		},
		ServerPort: 8080,
		LogLevel:   "info",
	}
}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindDuration
	kindLevel
)

// keys lists every settable key and how its value is parsed.
var keys = map[string]valueKind{
	"adb_path":                 kindString,
	"device.host":              kindString,
	"device.port":              kindInt,
	"device.serial":            kindString,
	"device.connect_attempts":  kindInt,
	"device.connect_interval":  kindDuration,
	"device.remote_dir":        kindString,
	"capture.fps":              kindFloat,
	"capture.scale":            kindFloat,
	"capture.record_seconds":   kindInt,
	"preview.refresh_interval": kindDuration,
	"preview.jpeg_quality":     kindInt,
	"output_dir":               kindString,
	"server_port":              kindInt,
	"log_level":                kindLevel,
}

// floatLimits caps float keys; the capture loop applies the same caps.
var floatLimits = map[string]float64{
	"capture.fps":   capture.MaxFPS,
	"capture.scale": capture.MaxScale,
}

// Keys returns the known configuration keys.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager. A missing config file is
// created with the defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		actualConfigPath = filepath.Join(homeDir, ".config", "questcap", "config.yaml")
	}

	m := &Manager{
		configPath: actualConfigPath,
		v:          newViper(actualConfigPath),
	}
	log := logger.WithComponent("config")

	if err := m.v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Info().Str("path", m.configPath).Msg("Config file not found, creating new config")
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	log.Debug().Str("path", m.configPath).Msg("Config loaded")
	return m, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("adb_path", d.ADBPath)
	v.SetDefault("device.host", d.Device.Host)
	v.SetDefault("device.port", d.Device.Port)
	v.SetDefault("device.serial", d.Device.Serial)
	v.SetDefault("device.connect_attempts", d.Device.ConnectAttempts)
	v.SetDefault("device.connect_interval", d.Device.ConnectInterval)
	v.SetDefault("device.remote_dir", d.Device.RemoteDir)
	v.SetDefault("capture.fps", d.Capture.FPS)
	v.SetDefault("capture.scale", d.Capture.Scale)
	v.SetDefault("capture.record_seconds", d.Capture.RecordSeconds)
	v.SetDefault("preview.refresh_interval", d.Preview.RefreshInterval)
	v.SetDefault("preview.jpeg_quality", d.Preview.JPEGQuality)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("server_port", d.ServerPort)
	v.SetDefault("log_level", d.LogLevel)
	return v
}

// Get returns the effective configuration: flags, then environment, then
// the config file, then defaults.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := Defaults()
	if err := m.v.Unmarshal(cfg); err != nil {
		logger.WithComponent("config").Warn().Err(err).Msg("Invalid config values, using defaults")
		return Defaults()
	}
	return cfg
}

// GetViper exposes the underlying viper instance
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// BindFlag makes a command-line flag override key when the flag is set.
func (m *Manager) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for config key %s", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v.BindPFlag(key, flag)
}

// Set parses value for key and stores it in memory. Call Save to persist.
func (m *Manager) Set(key, value string) error {
	kind, ok := keys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	var parsed interface{}
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		if limit, ok := floatLimits[key]; ok && !(f > 0 && f <= limit) {
			return fmt.Errorf("%s must be a positive number up to %g, got %s", key, limit, value)
		}
		parsed = f
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s (e.g. 5s, 50ms)", key, value)
		}
		parsed = d
	case kindLevel:
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		parsed = value
	default:
		parsed = value
	}

	m.mu.Lock()
	m.v.Set(key, parsed)
	m.mu.Unlock()
	return nil
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()
	log := logger.WithComponent("config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		log.Error().Err(err).Str("config_dir", configDir).Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().Err(err).Str("path", m.configPath).Msg("Failed to write config")
		return err
	}

	log.Info().Str("path", m.configPath).Msg("Config saved successfully")
	return nil
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
