// Package project materializes the destination of a run: it creates the
// output directory, copies the acquired template into it and finalizes the
// copy once the manifest has been applied.
package project

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
	"github.com/nasti-scaffold/nasti/internal/exec"
	"github.com/nasti-scaffold/nasti/internal/manifest"
	"github.com/nasti-scaffold/nasti/internal/prompt"
)

// DefaultCommitMessage is used for the initial commit of a new project
const DefaultCommitMessage = "Initial commit"

// DestinationKey is the silent value consulted when no output is given
const DestinationKey = "destination"

// Materializer creates and finalizes destination directories
type Materializer struct {
	fs            afero.Fs
	runner        exec.CommandRunner
	collector     *prompt.Collector
	commitMessage string
	logger        *zap.Logger
}

// Option configures a Materializer
type Option func(*Materializer)

// WithFs sets the filesystem
func WithFs(fs afero.Fs) Option {
	return func(p *Materializer) {
		if fs != nil {
			p.fs = fs
		}
	}
}

// WithCommandRunner sets the process runner used for git
func WithCommandRunner(cr exec.CommandRunner) Option {
	return func(p *Materializer) {
		if cr != nil {
			p.runner = cr
		}
	}
}

// WithCollector sets the collector used to ask for a destination
func WithCollector(c *prompt.Collector) Option {
	return func(p *Materializer) {
		if c != nil {
			p.collector = c
		}
	}
}

// WithCommitMessage overrides DefaultCommitMessage
func WithCommitMessage(msg string) Option {
	return func(p *Materializer) {
		if strings.TrimSpace(msg) != "" {
			p.commitMessage = msg
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Materializer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Materializer
func New(opts ...Option) *Materializer {
	p := &Materializer{
		fs:            afero.NewOsFs(),
		runner:        exec.NewRealRunner(),
		commitMessage: DefaultCommitMessage,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.collector == nil {
		p.collector = prompt.NewCollector(prompt.NewStdinReader(), prompt.NewWriterPrinter(os.Stdout, nil))
	}
	return p
}

// Create makes the destination directory. With an explicit output a single
// attempt is made; otherwise the operator is asked until a directory can be
// created or the collector gives up.
func (p *Materializer) Create(ctx context.Context, output string) (string, error) {
	if output != "" {
		if err := p.mkdir(output); err != nil {
			return "", nerrors.Wrapf(err, nerrors.EDestinationCreateFailed, "unable to create destination %s", output).
				WithDetail("destination", output)
		}
		return strings.TrimSpace(output), nil
	}

	var lastErr error
	dest, err := p.collector.Collect(prompt.Request{
		Owner:  "project",
		Key:    DestinationKey,
		Prompt: "Project directory",
		Expect: "a path that does not exist yet",
		Validate: func(candidate string) bool {
			lastErr = p.mkdir(candidate)
			if lastErr != nil {
				p.logger.Debug("destination rejected", zap.String("path", candidate), zap.Error(lastErr))
			}
			return lastErr == nil
		},
	})
	if err != nil {
		if nerrors.IsCode(err, nerrors.ETooManyInputTries) || nerrors.IsCode(err, nerrors.ESilentValueInvalid) {
			cause := err
			if lastErr != nil {
				cause = lastErr
			}
			return "", nerrors.Wrap(cause, nerrors.EDestinationCreateFailed, "unable to create a destination directory")
		}
		return "", err
	}
	return strings.TrimSpace(dest), nil
}

func (p *Materializer) mkdir(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("destination path is empty")
	}
	if _, err := p.fs.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := p.fs.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	p.logger.Info("destination created", zap.String("path", path))
	return nil
}

// Copy copies the tree under src into dst, preserving file modes. Version
// control metadata is not copied.
func (p *Materializer) Copy(src, dst string) error {
	err := afero.Walk(p.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.Name() == ".git" {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		switch {
		case info.IsDir():
			return p.fs.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			return p.copySymlink(path, target)
		case info.Mode().IsRegular():
			return p.copyFile(path, target, info.Mode().Perm())
		}
		p.logger.Debug("skipping special file", zap.String("path", path))
		return nil
	})
	if err != nil {
		return nerrors.Wrapf(err, nerrors.ECopyFailed, "failed to copy %s to %s", src, dst)
	}
	return nil
}

func (p *Materializer) copyFile(src, dst string, mode os.FileMode) error {
	in, err := p.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := p.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return p.fs.Chmod(dst, mode)
}

func (p *Materializer) copySymlink(src, dst string) error {
	reader, ok := p.fs.(afero.LinkReader)
	linker, ok2 := p.fs.(afero.Linker)
	if !ok || !ok2 {
		return fmt.Errorf("filesystem cannot copy symlink %s", src)
	}
	link, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return err
	}
	return linker.SymlinkIfPossible(link, dst)
}

// Finalize removes the manifest and any version control metadata from dst,
// then optionally initializes a fresh repository with one commit.
func (p *Materializer) Finalize(ctx context.Context, dst string, gitInit bool) error {
	if err := p.fs.Remove(filepath.Join(dst, manifest.FileName)); err != nil && !os.IsNotExist(err) {
		return nerrors.Wrapf(err, nerrors.ECleanupFailed, "failed to remove %s", manifest.FileName)
	}
	if err := p.fs.RemoveAll(filepath.Join(dst, ".git")); err != nil {
		return nerrors.Wrapf(err, nerrors.ECleanupFailed, "failed to remove .git from %s", dst)
	}
	if !gitInit {
		return nil
	}

	if _, err := p.runner.LookPath("git"); err != nil {
		return nerrors.Wrap(err, nerrors.EGitInitFailed, "git is not installed")
	}
	steps := [][]string{
		{"init"},
		{"add", "-A"},
		{"commit", "-m", p.commitMessage},
	}
	for _, args := range steps {
		line := exec.CommandLine("git", args...)
		p.logger.Debug("running git", zap.String("command", line), zap.String("dir", dst))
		res, err := p.runner.Run(ctx, "git", args, exec.RunOpts{Dir: dst})
		if err != nil {
			return nerrors.Wrapf(err, nerrors.EGitInitFailed, "%s failed", line)
		}
		if res.ExitCode != 0 {
			return nerrors.Newf(nerrors.EGitInitFailed, "%s exited with status %d: %s",
				line, res.ExitCode, strings.TrimSpace(res.Output()))
		}
	}
	return nil
}

// Remove deletes dst. Used to discard a partial destination.
func (p *Materializer) Remove(dst string) error {
	if dst == "" {
		return nil
	}
	if err := p.fs.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dst, err)
	}
	p.logger.Info("destination removed", zap.String("path", dst))
	return nil
}
