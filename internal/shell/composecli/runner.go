// Package composecli drives slot projects through the docker compose CLI.
package composecli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrCommandFailed is returned when the compose command exits non-zero.
var ErrCommandFailed = errors.New("compose command failed")

// CommandError carries the failed command line and the tail of its output.
type CommandError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, env []string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// DockerHost, when set, is exported as DOCKER_HOST.
	DockerHost string
}

// maxOutputTail bounds how much command output is kept in errors.
const maxOutputTail = 2048

// Run executes args[0] with the remaining args.
func (r ExecRunner) Run(ctx context.Context, env []string, args ...string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New("no command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(), env...)
	if r.DockerHost != "" {
		cmd.Env = append(cmd.Env, "DOCKER_HOST="+r.DockerHost)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return out.Bytes(), nil
	}

	cmdErr := &CommandError{Args: args, ExitCode: -1, Output: tail(out.String()), Err: ErrCommandFailed}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	} else {
		cmdErr.Err = fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}
	return out.Bytes(), cmdErr
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutputTail {
		s = "..." + s[len(s)-maxOutputTail:]
	}
	return s
}
