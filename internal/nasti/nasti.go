// Package nasti ties the scaffolding pipeline together: it acquires a
// template source, materializes the destination, applies the template's
// manifest there and finalizes the new project.
package nasti

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nasti-scaffold/nasti/internal/exec"
	"github.com/nasti-scaffold/nasti/internal/logging"
	"github.com/nasti-scaffold/nasti/internal/manifest"
	"github.com/nasti-scaffold/nasti/internal/project"
	"github.com/nasti-scaffold/nasti/internal/prompt"
	"github.com/nasti-scaffold/nasti/internal/source"
)

// Recorder receives the outcome of each run. *journal.Journal satisfies it.
type Recorder interface {
	StartRun(ctx context.Context, source, destination string) (string, error)
	RecordSubstitution(ctx context.Context, runID, mutation, file string, replacements int) error
	FinishRun(ctx context.Context, runID string, runErr error) error
}

// Options describes a single scaffolding run
type Options struct {
	// Source is a git URL, a local directory, or empty/"help"
	Source string
	// Output is the destination directory; prompted for when empty
	Output string
	// GitInit creates a repository with one commit in the destination
	GitInit bool
	// CommitMessage overrides project.DefaultCommitMessage
	CommitMessage string
	// TmpDir is the parent directory for git clones
	TmpDir string
	// HelpText is printed when no source is given
	HelpText string
	// Silent answers every prompt from these values when non-nil
	Silent prompt.Values
}

// Result summarises a run
type Result struct {
	Help        bool
	Destination string
	Report      *manifest.RunReport
}

// Processor runs the pipeline
type Processor struct {
	fs       afero.Fs
	runner   exec.CommandRunner
	reader   prompt.LineReader
	printer  prompt.Printer
	recorder Recorder
	logger   *zap.Logger
}

// Option configures a Processor
type Option func(*Processor)

// WithFs sets the filesystem
func WithFs(fs afero.Fs) Option {
	return func(p *Processor) {
		if fs != nil {
			p.fs = fs
		}
	}
}

// WithCommandRunner sets the runner used for git and hook scripts
func WithCommandRunner(cr exec.CommandRunner) Option {
	return func(p *Processor) {
		if cr != nil {
			p.runner = cr
		}
	}
}

// WithReader sets where interactive answers come from
func WithReader(r prompt.LineReader) Option {
	return func(p *Processor) {
		if r != nil {
			p.reader = r
		}
	}
}

// WithPrinter sets where operator-facing messages go
func WithPrinter(pr prompt.Printer) Option {
	return func(p *Processor) {
		if pr != nil {
			p.printer = pr
		}
	}
}

// WithRecorder enables the run journal
func WithRecorder(r Recorder) Option {
	return func(p *Processor) {
		p.recorder = r
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Processor
func New(opts ...Option) *Processor {
	p := &Processor{
		fs:     afero.NewOsFs(),
		runner: exec.NewRealRunner(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.reader == nil {
		p.reader = prompt.NewStdinReader()
	}
	if p.printer == nil {
		p.printer = prompt.NewWriterPrinter(os.Stdout, nil)
	}
	return p
}

// Run executes one scaffolding run. On failure or cancellation the partial
// destination and any cloned source are removed before the error is returned.
func (p *Processor) Run(ctx context.Context, opts Options) (res *Result, err error) {
	logger := p.logger.With(zap.String("source", opts.Source))
	res = &Result{}

	handler := source.Resolve(opts.Source,
		source.WithFs(p.fs),
		source.WithCommandRunner(p.runner),
		source.WithTmpDir(opts.TmpDir),
		source.WithHelpText(opts.HelpText),
		source.WithPrinter(p.printer),
		source.WithLogger(logging.Component(p.logger, "source")))

	defer func() {
		if cerr := handler.CleanUp(); cerr != nil {
			logger.Warn("source cleanup failed", zap.Error(cerr))
			if err != nil {
				err = multierr.Append(err, cerr)
			}
		}
	}()

	if err := handler.Run(ctx); err != nil {
		return res, err
	}
	if _, ok := handler.(*source.HelpHandler); ok {
		res.Help = true
		return res, nil
	}

	collectorOpts := []prompt.CollectorOption{prompt.WithLogger(logging.Component(p.logger, "prompt"))}
	if opts.Silent != nil {
		collectorOpts = append(collectorOpts, prompt.WithSilentValues(opts.Silent))
	}
	collector := prompt.NewCollector(p.reader, p.printer, collectorOpts...)

	materializer := project.New(
		project.WithFs(p.fs),
		project.WithCommandRunner(p.runner),
		project.WithCollector(collector),
		project.WithCommitMessage(opts.CommitMessage),
		project.WithLogger(logging.Component(p.logger, "project")))

	dest, err := materializer.Create(ctx, opts.Output)
	if err != nil {
		return res, err
	}
	res.Destination = dest
	logger = logger.With(zap.String("destination", dest))

	runID := p.startRun(ctx, logger, opts.Source, dest)
	defer func() {
		p.finishRun(logger, runID, res.Report, err)
		if err == nil {
			return
		}
		if rerr := materializer.Remove(dest); rerr != nil {
			logger.Warn("failed to remove partial destination", zap.Error(rerr))
			err = multierr.Append(err, rerr)
		}
	}()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := materializer.Copy(handler.Dir(), dest); err != nil {
		return res, err
	}

	m := manifest.New(dest,
		manifest.WithFs(p.fs),
		manifest.WithCollector(collector),
		manifest.WithCommandRunner(p.runner),
		manifest.WithLogger(logging.Component(p.logger, "manifest")))
	report, err := m.Run(ctx)
	res.Report = report
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if err := materializer.Finalize(ctx, dest, opts.GitInit); err != nil {
		return res, err
	}

	logger.Info("project created", zap.Int("mutations", len(report.Mutations)))
	p.printer.Println(fmt.Sprintf("Created project in %s", dest))
	return res, nil
}

func (p *Processor) startRun(ctx context.Context, logger *zap.Logger, src, dest string) string {
	if p.recorder == nil {
		return ""
	}
	id, err := p.recorder.StartRun(ctx, src, dest)
	if err != nil {
		logger.Warn("journal unavailable", zap.Error(err))
		return ""
	}
	return id
}

// finishRun uses a fresh context so an interrupted run is still recorded
func (p *Processor) finishRun(logger *zap.Logger, runID string, report *manifest.RunReport, runErr error) {
	if p.recorder == nil || runID == "" {
		return
	}
	ctx := context.Background()
	if report != nil {
		for _, mut := range report.Mutations {
			for _, f := range mut.Files {
				if err := p.recorder.RecordSubstitution(ctx, runID, mut.Name, f.Path, f.Replacements); err != nil {
					logger.Warn("failed to journal substitution", zap.Error(err))
				}
			}
		}
	}
	if err := p.recorder.FinishRun(ctx, runID, runErr); err != nil {
		logger.Warn("failed to journal run", zap.Error(err))
	}
}
