package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("schema_version: 1\ntfiac: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultGRPCAddr, cfg.Core.GRPCAddr)
	assert.Equal(t, DefaultHTTPAddr, cfg.Core.HTTPAddr)
	assert.Equal(t, DefaultDataDir, cfg.Core.DataDir)
	assert.Equal(t, DefaultScanInterval, cfg.Core.ScanInterval)
	require.NotNil(t, cfg.TFIAC)
	assert.Equal(t, DefaultTFIACPort, cfg.TFIAC.Port)
	assert.Equal(t, DefaultTFIACTimeout, cfg.TFIAC.RequestTimeout)
	assert.Equal(t, DefaultTFIACRate, cfg.TFIAC.MaxRequestsPerMinute)
	assert.Nil(t, cfg.MQTT)
	assert.Nil(t, cfg.Backup)
	assert.Equal(t, map[string]bool{"tfiac": true}, EnabledPlugins(cfg))
}

func TestParseFull(t *testing.T) {
	raw := `
schema_version: 1
log_level: debug
core:
  grpc_addr: 127.0.0.1:9100
  data_dir: /tmp/gohome
  scan_interval: 15s
  dashboard_dir: /var/lib/grafana/dashboards
backup:
  endpoint: https://s3.local
  bucket: home
  access_key_file: /run/keys/access
  secret_key_file: /run/keys/secret
mqtt:
  broker: tcp://broker:1883
tfiac:
  port: 7778
  request_timeout: 2s
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.Core.GRPCAddr)
	assert.Equal(t, 15*time.Second, cfg.Core.ScanInterval)
	assert.Equal(t, "/var/lib/grafana/dashboards", cfg.Core.DashboardDir)
	assert.Equal(t, DefaultBackupPrefix, cfg.Backup.Prefix)
	assert.Equal(t, DefaultMQTTPrefix, cfg.MQTT.TopicPrefix)
	assert.Equal(t, 7778, cfg.TFIAC.Port)
	assert.Equal(t, 2*time.Second, cfg.TFIAC.RequestTimeout)
	assert.Equal(t, "/tmp/gohome/entries.db", EntriesDBPath(cfg))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"schema":    "schema_version: 2\n",
		"log level": "schema_version: 1\nlog_level: loud\n",
		"backup":    "schema_version: 1\nbackup:\n  endpoint: x\n",
		"mqtt":      "schema_version: 1\nmqtt:\n  username: u\n",
		"port":      "schema_version: 1\ntfiac:\n  port: 70000\n",
		"scan":      "schema_version: 1\ncore:\n  scan_interval: 10ms\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema_version: 1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, EnabledPlugins(cfg))
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel(" WARNING ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = ParseLogLevel("trace")
	require.NoError(t, err)
	assert.Equal(t, LevelTrace, lvl)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestNewLoggerRendersTrace(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "trace")
	require.NoError(t, err)

	logger.Log(testContext(t), LevelTrace, "raw payload")
	assert.Contains(t, buf.String(), "level=TRACE")
}
