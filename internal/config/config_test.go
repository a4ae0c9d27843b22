package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "browser", cfg.Session.Driver)
	assert.True(t, cfg.Session.Headless)
	assert.Equal(t, 30, cfg.Session.PageLoadTimeoutSecs)
	assert.InDelta(t, 2.0, cfg.Session.RatePerSec, 0.001)
	assert.Equal(t, 2, cfg.Session.MaxRetries)
	assert.Equal(t, 10, cfg.Pipeline.SearchTimeoutSecs)
	assert.Equal(t, 5, cfg.Pipeline.GateTimeoutSecs)
	assert.Equal(t, 3, cfg.Pipeline.LinkTimeoutSecs)
	assert.Equal(t, 3, cfg.Pipeline.AdditionalLoadTimeoutSecs)
	assert.Empty(t, cfg.Pipeline.LocatorsPath)
	assert.Equal(t, ".", cfg.Batch.ArtifactDir)
	assert.Zero(t, cfg.Batch.MaxConsecutiveErrors)
	assert.Equal(t, 100000, cfg.Batch.MaxRange)
	assert.Equal(t, "mc_records.csv", cfg.Output.CSVPath)
	assert.Empty(t, cfg.Output.XLSXPath)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "mc_runs.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
session:
  driver: http
  rate_per_sec: 0.5
store:
  driver: postgres
  database_url: postgres://localhost/mcx
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  max_consecutive_errors: 4
output:
  xlsx_path: out.xlsx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Session.Driver)
	assert.InDelta(t, 0.5, cfg.Session.RatePerSec, 0.001)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/mcx", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Batch.MaxConsecutiveErrors)
	assert.Equal(t, "out.xlsx", cfg.Output.XLSXPath)
	// Defaults still apply for unset values
	assert.Equal(t, "mc_records.csv", cfg.Output.CSVPath)
	assert.Equal(t, 5, cfg.Pipeline.FieldTimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("MCX_STORE_DRIVER", "none")
	t.Setenv("MCX_LOG_LEVEL", "warn")
	t.Setenv("MCX_SESSION_HEADLESS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Session.Headless)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MCX_SERVER_PORT", "3000")
	t.Setenv("MCX_OUTPUT_CSV_PATH", "carriers.csv")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "carriers.csv", cfg.Output.CSVPath)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("session: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Session.Driver = "browser"
	cfg.Session.MaxRetries = 2
	cfg.Pipeline.SearchTimeoutSecs = 10
	cfg.Output.CSVPath = "mc_records.csv"
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "mc_runs.db"
	cfg.Server.Port = 8080
	cfg.Batch.MaxRange = 100000
	return cfg
}

func TestValidateExtract_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("extract"))
}

func TestValidateExtract_Problems(t *testing.T) {
	cfg := validDefaults()
	cfg.Session.Driver = "selenium"
	cfg.Output.CSVPath = ""
	cfg.Pipeline.GateTimeoutSecs = -1
	cfg.Batch.MaxConsecutiveErrors = -2
	cfg.Batch.MaxRange = 0

	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.driver must be browser or http")
	assert.Contains(t, err.Error(), "output.csv_path is required")
	assert.Contains(t, err.Error(), "pipeline.gate_timeout_secs")
	assert.Contains(t, err.Error(), "batch.max_consecutive_errors")
	assert.Contains(t, err.Error(), "batch.max_range")
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.Driver = "none"
	assert.NoError(t, cfg.Validate("extract"))

	err = cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run history")

	cfg.Store.Driver = "mysql"
	err = cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite, postgres or none")
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 9090

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// extract never listens
	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
