package composecli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/artpar/ngreen/internal/core/compose"
	"github.com/moby/sys/atomicwriter"
)

// =============================================================================
// Controller - ServiceController over docker compose
// =============================================================================

// Options configures the compose controller.
type Options struct {
	Template       string            // Compose template contents
	ProjectDir     string            // --project-directory; build contexts resolve here
	RenderDir      string            // Where rendered slot files are written
	IngressService string            // "" = infer
	Environment    map[string]string // Extra interpolation variables
	Command        []string          // Defaults to ["docker", "compose"]
}

// Controller brings slot projects up and down by rendering the template to a
// per-slot compose file and invoking docker compose on it.
type Controller struct {
	runner Runner
	opts   Options
	logger *slog.Logger
}

// NewController creates a compose CLI controller.
func NewController(runner Runner, opts Options, logger *slog.Logger) *Controller {
	if runner == nil {
		runner = ExecRunner{}
	}
	if len(opts.Command) == 0 {
		opts.Command = []string{"docker", "compose"}
	}
	if opts.ProjectDir == "" {
		opts.ProjectDir = "."
	}
	if opts.RenderDir == "" {
		opts.RenderDir = filepath.Join(opts.ProjectDir, ".ngreen")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		runner: runner,
		opts:   opts,
		logger: logger.With("component", "compose_controller"),
	}
}

// RenderedPath returns the compose file written for handle.
func (c *Controller) RenderedPath(handle string) string {
	return filepath.Join(c.opts.RenderDir, handle+".compose.yml")
}

// BringUp renders the slot file and runs "up -d --build" on it.
func (c *Controller) BringUp(ctx context.Context, handle string, port int, version string) error {
	rendered, err := compose.RenderSlot(c.opts.Template, compose.RenderOptions{
		Handle:         handle,
		Port:           port,
		Version:        version,
		IngressService: c.opts.IngressService,
		WorkingDir:     c.opts.ProjectDir,
		Environment:    c.opts.Environment,
	})
	if err != nil {
		return fmt.Errorf("render compose template: %w", err)
	}

	path := c.RenderedPath(handle)
	if err := os.MkdirAll(c.opts.RenderDir, 0o755); err != nil {
		return fmt.Errorf("create render directory: %w", err)
	}
	if err := atomicwriter.WriteFile(path, rendered.YAML, 0o644); err != nil {
		return fmt.Errorf("write rendered compose file: %w", err)
	}

	c.logger.Info("bringing up slot", "project", handle, "port", port, "version", version, "file", path)

	env := []string{
		compose.EnvVersion + "=" + version,
		compose.EnvSlotPort + "=" + strconv.Itoa(port),
	}
	args := c.command("-p", handle, "-f", path, "--project-directory", c.opts.ProjectDir, "up", "-d", "--build")
	if _, err := c.runner.Run(ctx, env, args...); err != nil {
		return fmt.Errorf("bring up %s: %w", handle, err)
	}
	return nil
}

// BringDown runs "down --rmi all --volumes --remove-orphans" for the
// project. Compose treats a project with no resources as already down.
func (c *Controller) BringDown(ctx context.Context, handle string) error {
	path := c.RenderedPath(handle)

	args := []string{"-p", handle}
	_, statErr := os.Stat(path)
	if statErr == nil {
		args = append(args, "-f", path, "--project-directory", c.opts.ProjectDir)
	}
	args = append(args, "down", "--rmi", "all", "--volumes", "--remove-orphans")

	c.logger.Info("bringing down slot", "project", handle)
	if _, err := c.runner.Run(ctx, nil, c.command(args...)...); err != nil {
		return fmt.Errorf("bring down %s: %w", handle, err)
	}

	if statErr == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to remove rendered compose file", "file", path, "error", err)
		}
	}
	return nil
}

func (c *Controller) command(args ...string) []string {
	out := make([]string, 0, len(c.opts.Command)+len(args))
	out = append(out, c.opts.Command...)
	return append(out, args...)
}
