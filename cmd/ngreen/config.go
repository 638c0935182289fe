package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/artpar/ngreen/internal/core/deployment"
	"github.com/artpar/ngreen/internal/shell/store"
)

// errInvalidConfig marks configuration that cannot be used.
var errInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	ProjectName string           `mapstructure:"project_name"`
	PortPool    string           `mapstructure:"port_pool"` // e.g. "5000,5001,5002"
	State       StateConfig      `mapstructure:"state"`
	Journal     JournalConfig    `mapstructure:"journal"`
	Health      HealthConfig     `mapstructure:"health"`
	Controller  ControllerConfig `mapstructure:"controller"`
	Server      ServerConfig     `mapstructure:"server"`
	Log         LogConfig        `mapstructure:"log"`
}

// StateConfig selects where the deployment state lives.
type StateConfig struct {
	// Backend is "file" (the JSON state file) or "sqlite".
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`

	// Lock takes an exclusive advisory lock next to the state for the
	// duration of a deploy or rollback.
	Lock bool `mapstructure:"lock"`
}

// JournalConfig holds the operation journal database. With the sqlite state
// backend the state database doubles as the journal when DSN is empty.
type JournalConfig struct {
	DSN string `mapstructure:"dsn"`
}

// HealthConfig holds health probe configuration.
type HealthConfig struct {
	Host           string        `mapstructure:"host"`
	Path           string        `mapstructure:"path"`
	Settle         time.Duration `mapstructure:"settle"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RollbackStatus string        `mapstructure:"rollback_status"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout"`
}

// ControllerConfig selects how slot projects are started and stopped.
type ControllerConfig struct {
	// Driver is "compose" (docker compose CLI) or "docker" (Engine API,
	// image-only templates).
	Driver         string   `mapstructure:"driver"`
	ComposeFile    string   `mapstructure:"compose_file"`
	IngressService string   `mapstructure:"ingress_service"`
	DockerHost     string   `mapstructure:"docker_host"`
	Command        string   `mapstructure:"command"`
	RenderDir      string   `mapstructure:"render_dir"`
	Environment    []string `mapstructure:"environment"` // KEY=VALUE, case preserved
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// flagKeys maps command line flags to config keys. Flags only override a key
// when they are set explicitly.
var flagKeys = map[string]string{
	"project-name":    "project_name",
	"port-pool":       "port_pool",
	"state-backend":   "state.backend",
	"state-file":      "state.path",
	"state-dsn":       "state.dsn",
	"journal-dsn":     "journal.dsn",
	"driver":          "controller.driver",
	"compose-file":    "controller.compose_file",
	"ingress-service": "controller.ingress_service",
	"docker-host":     "controller.docker_host",
	"health-host":     "health.host",
	"health-path":     "health.path",
	"settle-delay":    "health.settle",
	"probe-timeout":   "health.timeout",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"listen-port":     "server.port",
}

// LoadConfig loads configuration from defaults, an optional file, the
// environment and finally the command line flags in flags.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("project_name", "")
	v.SetDefault("port_pool", "")
	v.SetDefault("state.backend", "file")
	v.SetDefault("state.path", store.DefaultStateFile)
	v.SetDefault("state.dsn", "./deployment_state.db")
	v.SetDefault("state.lock", true)
	v.SetDefault("journal.dsn", "")
	v.SetDefault("health.host", "localhost")
	v.SetDefault("health.path", "/api/message")
	v.SetDefault("health.settle", "10s")
	v.SetDefault("health.timeout", "15s")
	v.SetDefault("health.rollback_status", "200")
	v.SetDefault("health.cleanup_timeout", "5m")
	v.SetDefault("controller.driver", "compose")
	v.SetDefault("controller.compose_file", "docker-compose.yml")
	v.SetDefault("controller.ingress_service", "")
	v.SetDefault("controller.docker_host", "")
	v.SetDefault("controller.command", "docker compose")
	v.SetDefault("controller.render_dir", "")
	v.SetDefault("controller.environment", []string{})
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("%w: failed to parse config file: %w", errInvalidConfig, err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("NGREEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("%w: bind flag %s: %w", errInvalidConfig, name, err)
				}
			}
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", errInvalidConfig, err)
	}

	return &cfg, nil
}

// =============================================================================
// Validation
// =============================================================================

// Pool parses the configured port pool.
func (c *Config) Pool() (deployment.Pool, error) {
	return deployment.ParsePool(c.PortPool)
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.ProjectName == "" {
		return fmt.Errorf("%w: project name is required (--project-name or NGREEN_PROJECT_NAME)", deployment.ErrValidation)
	}
	if _, err := c.Pool(); err != nil {
		return err
	}
	switch c.State.Backend {
	case "file":
		if c.State.Path == "" {
			return fmt.Errorf("%w: state.path is required for the file backend", errInvalidConfig)
		}
	case "sqlite":
		if c.State.DSN == "" {
			return fmt.Errorf("%w: state.dsn is required for the sqlite backend", errInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown state backend %q (want file or sqlite)", errInvalidConfig, c.State.Backend)
	}
	switch c.Controller.Driver {
	case "compose", "docker":
	default:
		return fmt.Errorf("%w: unknown controller driver %q (want compose or docker)", errInvalidConfig, c.Controller.Driver)
	}
	if _, err := deployment.ParseStatus(c.Health.RollbackStatus); err != nil {
		return fmt.Errorf("%w: health.rollback_status: %w", errInvalidConfig, err)
	}
	if _, err := c.TemplateEnvironment(); err != nil {
		return err
	}
	if _, err := c.ComposeCommand(); err != nil {
		return err
	}
	if c.Health.Settle < 0 {
		return fmt.Errorf("%w: health.settle cannot be negative", errInvalidConfig)
	}
	return nil
}

// LockPath returns the lock file guarding the state, or "" when the state
// has no path on disk to lock next to.
func (c *Config) LockPath() string {
	if !c.State.Lock {
		return ""
	}
	if c.State.Backend == "sqlite" {
		path := strings.TrimPrefix(c.State.DSN, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path == "" || path == ":memory:" {
			return ""
		}
		return store.LockPath(path)
	}
	return store.LockPath(c.State.Path)
}

// TemplateEnvironment returns the extra interpolation variables as a map.
func (c *Config) TemplateEnvironment() (map[string]string, error) {
	env := make(map[string]string, len(c.Controller.Environment))
	for _, kv := range c.Controller.Environment {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: controller.environment entry %q is not KEY=VALUE", errInvalidConfig, kv)
		}
		env[key] = value
	}
	return env, nil
}

// ComposeCommand splits controller.command with shell quoting rules, so
// `"/opt/docker tools/docker" compose` stays two words.
func (c *Config) ComposeCommand() ([]string, error) {
	words, err := shlex.Split(c.Controller.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: controller.command: %w", errInvalidConfig, err)
	}
	if len(words) == 0 && c.Controller.Driver == "compose" {
		return nil, fmt.Errorf("%w: controller.command is empty", errInvalidConfig)
	}
	return words, nil
}

// ProjectDir is the directory docker compose resolves the template against.
func (c *Config) ProjectDir() string {
	return filepath.Dir(c.Controller.ComposeFile)
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
