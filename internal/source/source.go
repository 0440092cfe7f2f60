// Package source acquires a template into a local directory, either by
// cloning a git repository or by using an existing directory in place.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
	"github.com/nasti-scaffold/nasti/internal/exec"
	"github.com/nasti-scaffold/nasti/internal/prompt"
)

// HelpKey is the source argument that prints usage instead of processing
const HelpKey = "help"

// Handler acquires a template source
type Handler interface {
	// Run acquires the source
	Run(ctx context.Context) error
	// Dir is the directory holding the acquired template; empty for help
	Dir() string
	// CleanUp removes temporary acquisition artifacts
	CleanUp() error
}

type options struct {
	tmpDir   string
	helpText string
	fs       afero.Fs
	runner   exec.CommandRunner
	printer  prompt.Printer
	logger   *zap.Logger
}

// Option configures handler resolution
type Option func(*options)

// WithTmpDir sets the parent of the clone directory. Defaults to os.TempDir().
func WithTmpDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.tmpDir = dir
		}
	}
}

// WithHelpText sets the text printed by the help handler
func WithHelpText(text string) Option {
	return func(o *options) { o.helpText = text }
}

// WithFs sets the filesystem
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// WithCommandRunner sets the process runner used for git
func WithCommandRunner(cr exec.CommandRunner) Option {
	return func(o *options) {
		if cr != nil {
			o.runner = cr
		}
	}
}

// WithPrinter sets where the help handler prints
func WithPrinter(p prompt.Printer) Option {
	return func(o *options) {
		if p != nil {
			o.printer = p
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Resolve picks the handler for source
func Resolve(source string, opts ...Option) Handler {
	o := options{
		tmpDir:  os.TempDir(),
		fs:      afero.NewOsFs(),
		runner:  exec.NewRealRunner(),
		printer: prompt.NewWriterPrinter(os.Stdout, nil),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	trimmed := strings.TrimSpace(source)
	switch {
	case trimmed == "" || strings.EqualFold(trimmed, HelpKey):
		return &HelpHandler{text: o.helpText, printer: o.printer}
	case IsGitSource(trimmed):
		return &GitHandler{source: trimmed, opts: o}
	default:
		return &LocalDirectoryHandler{source: trimmed, fs: o.fs}
	}
}

// IsGitSource reports whether source names a git remote
func IsGitSource(source string) bool {
	switch {
	case strings.HasPrefix(source, "git@"),
		strings.HasPrefix(source, "ssh://"),
		strings.HasPrefix(source, "git://"):
		return true
	case strings.HasPrefix(source, "https://"), strings.HasPrefix(source, "http://"):
		return strings.HasSuffix(source, ".git")
	}
	return false
}

// GitHandler clones a repository into a fresh temporary directory
type GitHandler struct {
	source string
	dir    string
	opts   options
}

// Source returns the remote being cloned
func (h *GitHandler) Source() string { return h.source }

// Run implements Handler
func (h *GitHandler) Run(ctx context.Context) error {
	if _, err := h.opts.runner.LookPath("git"); err != nil {
		return nerrors.Wrap(err, nerrors.EGitMissing, "git is not installed")
	}

	root := filepath.Join(h.opts.tmpDir, "nasti")
	if err := h.opts.fs.MkdirAll(root, 0o755); err != nil {
		return nerrors.Wrapf(err, nerrors.ETmpDirCreation, "unable to create tmp directory %s", root)
	}
	dir := filepath.Join(root, uuid.NewString())
	if err := h.opts.fs.Mkdir(dir, 0o700); err != nil {
		return nerrors.Wrapf(err, nerrors.ETmpDirCreation, "unable to create tmp directory %s", dir)
	}
	h.dir = dir

	args := []string{"clone", h.source, dir}
	h.opts.logger.Info("cloning template", zap.String("command", exec.CommandLine("git", args...)))
	res, err := h.opts.runner.Run(ctx, "git", args, exec.RunOpts{})
	if err != nil {
		return nerrors.Wrapf(err, nerrors.ECloneFailed, "unable to clone %s", h.source)
	}
	if res.ExitCode != 0 {
		return nerrors.Newf(nerrors.ECloneFailed, "unable to clone %s: %s", h.source, strings.TrimSpace(res.Stderr)).
			WithDetail("exit_code", strconv.Itoa(res.ExitCode))
	}
	return nil
}

// Dir implements Handler
func (h *GitHandler) Dir() string { return h.dir }

// CleanUp removes the clone directory
func (h *GitHandler) CleanUp() error {
	if h.dir == "" {
		return nil
	}
	if err := h.opts.fs.RemoveAll(h.dir); err != nil {
		return nerrors.Wrapf(err, nerrors.ECleanupFailed, "unable to remove %s", h.dir)
	}
	h.opts.logger.Debug("removed clone", zap.String("dir", h.dir))
	return nil
}

// LocalDirectoryHandler uses an existing directory in place
type LocalDirectoryHandler struct {
	source string
	dir    string
	fs     afero.Fs
}

// Run implements Handler
func (h *LocalDirectoryHandler) Run(ctx context.Context) error {
	info, err := h.fs.Stat(h.source)
	if err != nil || !info.IsDir() {
		return nerrors.Newf(nerrors.ESourceNotDir, "%s is not a directory", h.source).
			WithDetail("source", h.source)
	}
	abs, err := filepath.Abs(h.source)
	if err != nil {
		abs = h.source
	}
	h.dir = abs
	return nil
}

// Dir implements Handler
func (h *LocalDirectoryHandler) Dir() string { return h.dir }

// CleanUp is a no-op; local sources are never removed
func (h *LocalDirectoryHandler) CleanUp() error { return nil }

// HelpHandler prints usage
type HelpHandler struct {
	text    string
	printer prompt.Printer
}

// Run implements Handler
func (h *HelpHandler) Run(ctx context.Context) error {
	h.printer.Println(h.text)
	return nil
}

// Dir implements Handler
func (h *HelpHandler) Dir() string { return "" }

// CleanUp implements Handler
func (h *HelpHandler) CleanUp() error { return nil }
