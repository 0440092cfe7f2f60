package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
	"github.com/nasti-scaffold/nasti/internal/exec"
)

func TestDisabled(t *testing.T) {
	r := Disabled()
	assert.False(t, r.HasBefore())
	assert.False(t, r.HasAfter())
	assert.False(t, r.AutoCleanup())

	ran, err := r.RunBefore(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	ran, err = r.RunAfter(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
}

func fakeSetup(t *testing.T, cfg Config, scripts ...string) (*Runner, afero.Fs, *exec.FakeRunner) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, s := range scripts {
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/work", s), []byte("exit 0\n"), 0o755))
	}
	fake := exec.NewFakeRunner()
	return New(cfg, "/work", WithFs(fs), WithCommandRunner(fake)), fs, fake
}

func TestRunHooksWithFakeRunner(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		run    func(*Runner, context.Context) (bool, error)
		script string
	}{
		{"before", Config{BeforeScript: "setup.sh"}, (*Runner).RunBefore, "setup.sh"},
		{"after", Config{AfterScript: "scripts/after.sh"}, (*Runner).RunAfter, "scripts/after.sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, fs, fake := fakeSetup(t, tt.cfg, tt.script)

			ran, err := tt.run(r, context.Background())
			require.NoError(t, err)
			assert.True(t, ran)

			require.Len(t, fake.Calls, 1)
			assert.Equal(t, "sh", fake.Calls[0].Name)
			assert.Equal(t, []string{tt.script}, fake.Calls[0].Args)
			assert.Equal(t, "/work", fake.Calls[0].Dir)

			exists, err := afero.Exists(fs, filepath.Join("/work", tt.script))
			require.NoError(t, err)
			assert.True(t, exists, "script kept without auto_cleanup")
		})
	}
}

func TestRunScriptNotFound(t *testing.T) {
	r, _, fake := fakeSetup(t, Config{BeforeScript: "missing.sh", AfterScript: "gone.sh"})

	_, err := r.RunBefore(context.Background())
	assert.ErrorIs(t, err, nerrors.EScriptNotFound)
	_, err = r.RunAfter(context.Background())
	assert.ErrorIs(t, err, nerrors.EScriptNotFound)
	assert.Empty(t, fake.Calls)
}

func TestRunScriptNonZeroExit(t *testing.T) {
	r, fs, fake := fakeSetup(t, Config{BeforeScript: "fail.sh", AutoCleanup: true}, "fail.sh")
	fake.Results["sh fail.sh"] = exec.CmdResult{ExitCode: 1, Stderr: "nope"}

	ran, err := r.RunBefore(context.Background())
	assert.ErrorIs(t, err, nerrors.EScriptExecutionFailed)
	assert.False(t, ran)

	exists, _ := afero.Exists(fs, "/work/fail.sh")
	assert.True(t, exists, "failed scripts are not cleaned up")
}

func TestRunScriptStartFailure(t *testing.T) {
	r, _, fake := fakeSetup(t, Config{AfterScript: "x.sh"}, "x.sh")
	fake.Errors["sh x.sh"] = errors.New("fork failed")

	_, err := r.RunAfter(context.Background())
	assert.ErrorIs(t, err, nerrors.EScriptExecutionFailed)
}

func TestAutoCleanup(t *testing.T) {
	r, fs, _ := fakeSetup(t, Config{BeforeScript: "setup.sh", AutoCleanup: true}, "setup.sh")

	ran, err := r.RunBefore(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	exists, _ := afero.Exists(fs, "/work/setup.sh")
	assert.False(t, exists)
}

func TestCleanupFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	r := New(Config{}, "/work", WithFs(fs), WithCommandRunner(exec.NewFakeRunner()))

	assert.ErrorIs(t, r.Cleanup("setup.sh"), nerrors.ECleanupFailed)
}

func TestRunRealScripts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "success.sh"), []byte("echo hidden output\ntouch marker\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fail.sh"), []byte("exit 3\n"), 0o644))

	r := New(Config{BeforeScript: "success.sh", AfterScript: "fail.sh", AutoCleanup: true}, dir)

	ran, err := r.RunBefore(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.FileExists(t, filepath.Join(dir, "marker"), "script runs inside the working directory")
	assert.NoFileExists(t, filepath.Join(dir, "success.sh"))

	_, err = r.RunAfter(context.Background())
	assert.ErrorIs(t, err, nerrors.EScriptExecutionFailed)
	assert.FileExists(t, filepath.Join(dir, "fail.sh"))
}
