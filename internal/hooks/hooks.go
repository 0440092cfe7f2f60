// Package hooks runs the optional shell scripts a manifest declares around
// the mutation phase.
package hooks

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
	"github.com/nasti-scaffold/nasti/internal/exec"
)

// Config is the manifest `hooks` block
type Config struct {
	BeforeScript string `yaml:"before_script"`
	AfterScript  string `yaml:"after_script"`
	AutoCleanup  bool   `yaml:"auto_cleanup"`
}

// Runner executes hook scripts inside a working directory
type Runner struct {
	before      string
	after       string
	autoCleanup bool
	workDir     string

	fs     afero.Fs
	runner exec.CommandRunner
	logger *zap.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithFs sets the filesystem used to find and remove scripts
func WithFs(fs afero.Fs) Option {
	return func(r *Runner) {
		if fs != nil {
			r.fs = fs
		}
	}
}

// WithCommandRunner sets the process runner
func WithCommandRunner(cr exec.CommandRunner) Option {
	return func(r *Runner) {
		if cr != nil {
			r.runner = cr
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Runner for cfg. Script paths are relative to workDir.
func New(cfg Config, workDir string, opts ...Option) *Runner {
	r := &Runner{
		before:      strings.TrimSpace(cfg.BeforeScript),
		after:       strings.TrimSpace(cfg.AfterScript),
		autoCleanup: cfg.AutoCleanup,
		workDir:     workDir,
		fs:          afero.NewOsFs(),
		runner:      exec.NewRealRunner(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Disabled returns a Runner with no hooks
func Disabled() *Runner {
	return New(Config{}, "")
}

// HasBefore reports whether a before script is configured
func (r *Runner) HasBefore() bool { return r.before != "" }

// HasAfter reports whether an after script is configured
func (r *Runner) HasAfter() bool { return r.after != "" }

// AutoCleanup reports whether scripts are deleted after a successful run
func (r *Runner) AutoCleanup() bool { return r.autoCleanup }

// RunBefore runs the before script. Returns false when none is configured.
func (r *Runner) RunBefore(ctx context.Context) (bool, error) {
	return r.runHook(ctx, "before", r.before)
}

// RunAfter runs the after script. Returns false when none is configured.
func (r *Runner) RunAfter(ctx context.Context) (bool, error) {
	return r.runHook(ctx, "after", r.after)
}

func (r *Runner) runHook(ctx context.Context, stage, script string) (bool, error) {
	if script == "" {
		return false, nil
	}
	if err := r.runScript(ctx, stage, script); err != nil {
		return false, err
	}
	if r.autoCleanup {
		if err := r.Cleanup(script); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *Runner) runScript(ctx context.Context, stage, script string) error {
	path := r.resolve(script)
	info, err := r.fs.Stat(path)
	if err != nil || info.IsDir() {
		return nerrors.Newf(nerrors.EScriptNotFound, "%s script %s not found", stage, script).
			WithDetail("script", script)
	}

	// Scripts run with the working directory set on the command, so the
	// process directory is never changed.
	args := []string{script}
	r.logger.Debug("running hook",
		zap.String("stage", stage), zap.String("command", exec.CommandLine("sh", args...)), zap.String("dir", r.workDir))

	res, err := r.runner.Run(ctx, "sh", args, exec.RunOpts{Dir: r.workDir})
	if err != nil {
		return nerrors.Wrapf(err, nerrors.EScriptExecutionFailed, "%s script %s could not be executed", stage, script).
			WithDetail("script", script)
	}
	r.logger.Debug("hook finished",
		zap.String("stage", stage), zap.Int("exit_code", res.ExitCode), zap.String("output", res.Output()))
	if res.ExitCode != 0 {
		return nerrors.Newf(nerrors.EScriptExecutionFailed, "%s script %s exited with status %d", stage, script, res.ExitCode).
			WithDetail("script", script)
	}
	return nil
}

// Cleanup deletes script, resolved against the working directory
func (r *Runner) Cleanup(script string) error {
	if err := r.fs.Remove(r.resolve(script)); err != nil {
		return nerrors.Wrapf(err, nerrors.ECleanupFailed, "failed to remove script %s", script).
			WithDetail("script", script)
	}
	r.logger.Debug("hook script removed", zap.String("script", script))
	return nil
}

func (r *Runner) resolve(script string) string {
	if filepath.IsAbs(script) {
		return script
	}
	return filepath.Join(r.workDir, script)
}
