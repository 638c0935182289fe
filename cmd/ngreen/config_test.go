package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/ngreen/internal/core/deployment"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.State.Backend)
	assert.Equal(t, "deployment_state.json", cfg.State.Path)
	assert.True(t, cfg.State.Lock)
	assert.Equal(t, "localhost", cfg.Health.Host)
	assert.Equal(t, "/api/message", cfg.Health.Path)
	assert.Equal(t, 10*time.Second, cfg.Health.Settle)
	assert.Equal(t, 15*time.Second, cfg.Health.Timeout)
	assert.Equal(t, "200", cfg.Health.RollbackStatus)
	assert.Equal(t, 5*time.Minute, cfg.Health.CleanupTimeout)
	assert.Equal(t, "compose", cfg.Controller.Driver)
	assert.Equal(t, "docker-compose.yml", cfg.Controller.ComposeFile)
	assert.Equal(t, "docker compose", cfg.Controller.Command)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
project_name: shop
port_pool: "5000,5001,5002,5003"

state:
  backend: sqlite
  dsn: /var/lib/ngreen/state.db
  lock: false

health:
  host: 10.0.0.5
  path: /healthz
  settle: 3s
  timeout: 2s

controller:
  driver: docker
  compose_file: /srv/shop/compose.yml
  ingress_service: web
  environment:
    - REGISTRY=registry.local
    - TAG_SUFFIX=-alpine

server:
  port: 9000
  shutdown_timeout: 15s

log:
  level: debug
  format: json
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile, nil)
	require.NoError(t, err)

	assert.Equal(t, "shop", cfg.ProjectName)
	assert.Equal(t, "5000,5001,5002,5003", cfg.PortPool)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, "/var/lib/ngreen/state.db", cfg.State.DSN)
	assert.False(t, cfg.State.Lock)
	assert.Equal(t, "10.0.0.5", cfg.Health.Host)
	assert.Equal(t, "/healthz", cfg.Health.Path)
	assert.Equal(t, 3*time.Second, cfg.Health.Settle)
	assert.Equal(t, 2*time.Second, cfg.Health.Timeout)
	assert.Equal(t, "docker", cfg.Controller.Driver)
	assert.Equal(t, "web", cfg.Controller.IngressService)
	env, err := cfg.TemplateEnvironment()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"REGISTRY": "registry.local", "TAG_SUFFIX": "-alpine"}, env)
	assert.Equal(t, "/srv/shop", cfg.ProjectDir())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("NGREEN_PROJECT_NAME", "nginx_workflow")
	t.Setenv("NGREEN_PORT_POOL", "5000,5001")
	t.Setenv("NGREEN_STATE_PATH", "/tmp/custom_state.json")
	t.Setenv("NGREEN_HEALTH_SETTLE", "0s")
	t.Setenv("NGREEN_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "nginx_workflow", cfg.ProjectName)
	assert.Equal(t, "5000,5001", cfg.PortPool)
	assert.Equal(t, "/tmp/custom_state.json", cfg.State.Path)
	assert.Equal(t, time.Duration(0), cfg.Health.Settle)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("NGREEN_PROJECT_NAME", "from_env")
	t.Setenv("NGREEN_HEALTH_PATH", "/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("project-name", "", "")
	flags.String("health-path", "", "")
	flags.Duration("settle-delay", 0, "")
	require.NoError(t, flags.Parse([]string{"--project-name", "from_flag", "--settle-delay", "250ms"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "from_flag", cfg.ProjectName)
	assert.Equal(t, "/env", cfg.Health.Path, "unset flag must not mask the environment")
	assert.Equal(t, 250*time.Millisecond, cfg.Health.Settle)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.State.Backend)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile, nil)
	assert.ErrorIs(t, err, errInvalidConfig)
}

// =============================================================================
// Config Validation Tests
// =============================================================================

func validConfig() *Config {
	return &Config{
		ProjectName: "shop",
		PortPool:    "5000,5001",
		State:       StateConfig{Backend: "file", Path: "state.json", Lock: true},
		Health:      HealthConfig{RollbackStatus: "200"},
		Controller:  ControllerConfig{Driver: "compose", Command: "docker compose"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing project", func(c *Config) { c.ProjectName = "" }, deployment.ErrValidation},
		{"empty pool", func(c *Config) { c.PortPool = "" }, deployment.ErrValidation},
		{"duplicate port", func(c *Config) { c.PortPool = "5000,5000" }, deployment.ErrValidation},
		{"unknown backend", func(c *Config) { c.State.Backend = "etcd" }, errInvalidConfig},
		{"sqlite without dsn", func(c *Config) { c.State.Backend = "sqlite" }, errInvalidConfig},
		{"unknown driver", func(c *Config) { c.Controller.Driver = "podman" }, errInvalidConfig},
		{"bad rollback status", func(c *Config) { c.Health.RollbackStatus = "ok" }, errInvalidConfig},
		{"bad environment entry", func(c *Config) { c.Controller.Environment = []string{"NOEQUALS"} }, errInvalidConfig},
		{"negative settle", func(c *Config) { c.Health.Settle = -time.Second }, errInvalidConfig},
		{"unterminated quote in command", func(c *Config) { c.Controller.Command = `"docker compose` }, errInvalidConfig},
		{"empty compose command", func(c *Config) { c.Controller.Command = "" }, errInvalidConfig},
		{"docker driver ignores command", func(c *Config) { c.Controller.Driver = "docker"; c.Controller.Command = "" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_LockPath(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "state.json.lock", cfg.LockPath())

	cfg.State.Backend = "sqlite"
	cfg.State.DSN = "file:/var/lib/ngreen/state.db?_fk=1"
	assert.Equal(t, "/var/lib/ngreen/state.db.lock", cfg.LockPath())

	cfg.State.DSN = ":memory:"
	assert.Empty(t, cfg.LockPath())

	cfg.State.Lock = false
	cfg.State.Backend = "file"
	assert.Empty(t, cfg.LockPath())
}

func TestConfig_ComposeCommand(t *testing.T) {
	cfg := validConfig()
	cfg.Controller.Command = `"/opt/docker tools/docker" compose --ansi never`

	words, err := cfg.ComposeCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/docker tools/docker", "compose", "--ansi", "never"}, words)
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}

	assert.Equal(t, "localhost:8080", cfg.Server.Address())
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&Config{Log: LogConfig{Level: "info", Format: "json"}}, &buf)

	logger.Info("hello", "port", 5000)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"port":5000`)
}

func TestSetupLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&Config{Log: LogConfig{Level: "info", Format: "text"}}, &buf)

	logger.Info("hello", "port", 5000)
	assert.Contains(t, buf.String(), "msg=hello port=5000")
}

func TestSetupLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"error", false, false},
		{"invalid", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(&Config{Log: LogConfig{Level: tt.level}}, &buf)

			logger.Debug("debug-line")
			logger.Info("info-line")
			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("debug-line")))
			assert.Equal(t, tt.infoSeen, bytes.Contains(buf.Bytes(), []byte("info-line")))
		})
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

// clearEnv blanks every variable the tests set; viper ignores empty values.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"NGREEN_PROJECT_NAME",
		"NGREEN_PORT_POOL",
		"NGREEN_STATE_BACKEND",
		"NGREEN_STATE_PATH",
		"NGREEN_STATE_DSN",
		"NGREEN_STATE_LOCK",
		"NGREEN_JOURNAL_DSN",
		"NGREEN_HEALTH_HOST",
		"NGREEN_HEALTH_PATH",
		"NGREEN_HEALTH_SETTLE",
		"NGREEN_CONTROLLER_DRIVER",
		"NGREEN_CONTROLLER_COMMAND",
		"NGREEN_LOG_LEVEL",
		"NGREEN_LOG_FORMAT",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}
