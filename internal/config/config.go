package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion       = 1
	DefaultPath         = "/etc/gohome/config.yaml"
	DefaultGRPCAddr     = "0.0.0.0:9000"
	DefaultHTTPAddr     = "0.0.0.0:8080"
	DefaultDataDir      = "/var/lib/gohome"
	DefaultScanInterval = 60 * time.Second
	DefaultBackupPrefix = "gohome/entries"
	DefaultMQTTPrefix   = "gohome"
	DefaultTFIACPort    = 7777
	DefaultTFIACTimeout = 5 * time.Second
	DefaultTFIACRate    = 60
)

// Config is the root of config.yaml.
type Config struct {
	SchemaVersion int           `yaml:"schema_version"`
	LogLevel      string        `yaml:"log_level"`
	Core          *CoreConfig   `yaml:"core"`
	Backup        *BackupConfig `yaml:"backup"`
	MQTT          *MQTTConfig   `yaml:"mqtt"`
	TFIAC         *TFIACConfig  `yaml:"tfiac"`
}

// CoreConfig holds listener addresses and host-wide settings.
type CoreConfig struct {
	GRPCAddr     string        `yaml:"grpc_addr"`
	HTTPAddr     string        `yaml:"http_addr"`
	DataDir      string        `yaml:"data_dir"`
	ScanInterval time.Duration `yaml:"scan_interval"`
	// DashboardDir, when set, receives plugin dashboards for Grafana
	// file provisioning at startup.
	DashboardDir string `yaml:"dashboard_dir"`
}

// BackupConfig mirrors config entries to S3-compatible object storage.
type BackupConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	Region        string `yaml:"region"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKeyFile string `yaml:"secret_key_file"`
}

// MQTTConfig enables the climate state stream.
type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	Username     string `yaml:"username"`
	PasswordFile string `yaml:"password_file"`
	TopicPrefix  string `yaml:"topic_prefix"`
}

// TFIACConfig enables the TFIAC plugin. Devices themselves are config
// entries created through flows, not listed here.
type TFIACConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// MaxRequestsPerMinute caps UDP exchanges per unit. Negative disables
	// the limit.
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
}

// Load parses the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes config bytes, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Core == nil {
		cfg.Core = &CoreConfig{}
	}
	if cfg.Core.GRPCAddr == "" {
		cfg.Core.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Core.HTTPAddr == "" {
		cfg.Core.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Core.DataDir == "" {
		cfg.Core.DataDir = DefaultDataDir
	}
	if cfg.Core.ScanInterval == 0 {
		cfg.Core.ScanInterval = DefaultScanInterval
	}

	if cfg.Backup != nil && cfg.Backup.Prefix == "" {
		cfg.Backup.Prefix = DefaultBackupPrefix
	}
	if cfg.MQTT != nil && cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultMQTTPrefix
	}

	if cfg.TFIAC != nil {
		if cfg.TFIAC.Port == 0 {
			cfg.TFIAC.Port = DefaultTFIACPort
		}
		if cfg.TFIAC.RequestTimeout == 0 {
			cfg.TFIAC.RequestTimeout = DefaultTFIACTimeout
		}
		if cfg.TFIAC.MaxRequestsPerMinute == 0 {
			cfg.TFIAC.MaxRequestsPerMinute = DefaultTFIACRate
		}
	}
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	if cfg.Core == nil {
		return fmt.Errorf("core config is required")
	}
	if cfg.Core.GRPCAddr == "" {
		return fmt.Errorf("core.grpc_addr is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return fmt.Errorf("core.http_addr is required")
	}
	if cfg.Core.DataDir == "" {
		return fmt.Errorf("core.data_dir is required")
	}
	if cfg.Core.ScanInterval < time.Second {
		return fmt.Errorf("core.scan_interval must be at least 1s")
	}

	if cfg.Backup != nil {
		if cfg.Backup.Endpoint == "" {
			return fmt.Errorf("backup.endpoint is required")
		}
		if cfg.Backup.Bucket == "" {
			return fmt.Errorf("backup.bucket is required")
		}
		if cfg.Backup.AccessKeyFile == "" {
			return fmt.Errorf("backup.access_key_file is required")
		}
		if cfg.Backup.SecretKeyFile == "" {
			return fmt.Errorf("backup.secret_key_file is required")
		}
	}

	if cfg.MQTT != nil && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}

	if cfg.TFIAC != nil {
		if cfg.TFIAC.Port < 1 || cfg.TFIAC.Port > 65535 {
			return fmt.Errorf("tfiac.port must be between 1 and 65535")
		}
		if cfg.TFIAC.RequestTimeout < 0 {
			return fmt.Errorf("tfiac.request_timeout must be positive")
		}
	}

	return nil
}

// EnabledPlugins maps enabled plugin IDs based on config presence.
func EnabledPlugins(cfg *Config) map[string]bool {
	enabled := make(map[string]bool)
	if cfg == nil {
		return enabled
	}
	if cfg.TFIAC != nil {
		enabled["tfiac"] = true
	}
	return enabled
}

// EntriesDBPath is where the config entry store lives.
func EntriesDBPath(cfg *Config) string {
	return filepath.Join(cfg.Core.DataDir, "entries.db")
}
