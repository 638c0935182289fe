package composecli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRun struct {
	env  []string
	args []string
}

type fakeRunner struct {
	runs []recordedRun
	err  error
}

func (f *fakeRunner) Run(ctx context.Context, env []string, args ...string) ([]byte, error) {
	f.runs = append(f.runs, recordedRun{env: env, args: args})
	return nil, f.err
}

const nginxTemplate = `
services:
  nginx:
    image: nginx:${APP_VERSION}
    ports:
      - "8080:80"
`

func newTestController(t *testing.T, runner Runner) (*Controller, string) {
	t.Helper()
	dir := t.TempDir()
	return NewController(runner, Options{Template: nginxTemplate, ProjectDir: dir}, nil), dir
}

func TestController_BringUp(t *testing.T) {
	runner := &fakeRunner{}
	c, dir := newTestController(t, runner)

	require.NoError(t, c.BringUp(context.Background(), "shop-5001", 5001, "1.27"))

	path := filepath.Join(dir, ".ngreen", "shop-5001.compose.yml")
	assert.Equal(t, path, c.RenderedPath("shop-5001"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nginx:1.27")
	assert.Contains(t, string(data), "5001")
	assert.NotContains(t, string(data), "8080")

	require.Len(t, runner.runs, 1)
	assert.Equal(t, []string{
		"docker", "compose", "-p", "shop-5001", "-f", path, "--project-directory", dir,
		"up", "-d", "--build",
	}, runner.runs[0].args)
	assert.Contains(t, runner.runs[0].env, "APP_VERSION=1.27")
	assert.Contains(t, runner.runs[0].env, "SLOT_PORT=5001")
}

func TestController_BringUp_CommandFailure(t *testing.T) {
	runner := &fakeRunner{err: &CommandError{Args: []string{"docker"}, ExitCode: 1, Err: ErrCommandFailed}}
	c, _ := newTestController(t, runner)

	err := c.BringUp(context.Background(), "shop-5001", 5001, "1.27")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestController_BringUp_RenderFailureRunsNothing(t *testing.T) {
	runner := &fakeRunner{}
	c := NewController(runner, Options{Template: "", ProjectDir: t.TempDir()}, nil)

	require.Error(t, c.BringUp(context.Background(), "shop-5001", 5001, "1.27"))
	assert.Empty(t, runner.runs)
}

func TestController_BringDown_AfterBringUp(t *testing.T) {
	runner := &fakeRunner{}
	c, dir := newTestController(t, runner)
	require.NoError(t, c.BringUp(context.Background(), "shop-5001", 5001, "1.27"))

	require.NoError(t, c.BringDown(context.Background(), "shop-5001"))

	require.Len(t, runner.runs, 2)
	assert.Equal(t, []string{
		"docker", "compose", "-p", "shop-5001", "-f", c.RenderedPath("shop-5001"), "--project-directory", dir,
		"down", "--rmi", "all", "--volumes", "--remove-orphans",
	}, runner.runs[1].args)
	assert.NoFileExists(t, c.RenderedPath("shop-5001"))
}

func TestController_BringDown_UnknownProjectByName(t *testing.T) {
	runner := &fakeRunner{}
	c, _ := newTestController(t, runner)

	require.NoError(t, c.BringDown(context.Background(), "shop-5009"))
	assert.Equal(t, []string{
		"docker", "compose", "-p", "shop-5009",
		"down", "--rmi", "all", "--volumes", "--remove-orphans",
	}, runner.runs[0].args)
}

func TestController_BringDown_FailureKeepsRenderedFile(t *testing.T) {
	runner := &fakeRunner{}
	c, _ := newTestController(t, runner)
	require.NoError(t, c.BringUp(context.Background(), "shop-5001", 5001, "1.27"))

	runner.err = errors.New("daemon unreachable")
	err := c.BringDown(context.Background(), "shop-5001")
	require.Error(t, err)
	assert.FileExists(t, c.RenderedPath("shop-5001"))
}

func TestController_CustomCommand(t *testing.T) {
	runner := &fakeRunner{}
	c := NewController(runner, Options{Template: nginxTemplate, ProjectDir: t.TempDir(), Command: []string{"docker-compose"}}, nil)
	require.NoError(t, c.BringDown(context.Background(), "shop-5000"))
	assert.Equal(t, "docker-compose", runner.runs[0].args[0])
}

// =============================================================================
// ExecRunner Tests
// =============================================================================

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := ExecRunner{}

	out, err := r.Run(context.Background(), []string{"NGREEN_TEST=ok"}, "sh", "-c", "echo $NGREEN_TEST")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(out))

	_, err = r.Run(context.Background(), nil, "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "boom", cmdErr.Output)
	assert.ErrorIs(t, err, ErrCommandFailed)
}
