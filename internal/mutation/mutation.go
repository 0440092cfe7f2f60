// Package mutation implements the text substitution rules of a manifest.
//
// A mutation names a literal replacement token and the files it appears in.
// Running it collects one value from the operator (or the silent source) and
// rewrites every occurrence of the token in those files. The token is always
// matched literally, both when validating and when substituting.
package mutation

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
	"github.com/nasti-scaffold/nasti/internal/prompt"
	"github.com/nasti-scaffold/nasti/internal/templates"
	"github.com/nasti-scaffold/nasti/internal/validation"
	"github.com/nasti-scaffold/nasti/internal/variable"
)

// DefaultIgnore lists paths, relative to the scanned root, never considered by
// FindUnmentionedFiles
var DefaultIgnore = []string{"nasti.yaml"}

// Config is a `mutations` entry of the manifest
type Config struct {
	Name       string             `yaml:"name"`
	Prompt     string             `yaml:"prompt"`
	Help       string             `yaml:"help"`
	Validation *validation.Config `yaml:"validation"`
	Replace    string             `yaml:"replace"`
	Files      []string           `yaml:"files"`
	Default    *string            `yaml:"default"`
}

// Mutation is one replacement rule bound to a base directory
type Mutation struct {
	name        string
	prompt      string
	help        string
	rule        *validation.Rule
	replace     string
	files       []string
	defaultTmpl *string
	baseDir     string

	fs       afero.Fs
	renderer templates.Renderer
	ignore   map[string]bool
	logger   *zap.Logger
}

// FileResult records the substitutions made in one file
type FileResult struct {
	Path         string
	Replacements int
}

// Result summarises a completed Run
type Result struct {
	Name  string
	Value string
	Files []FileResult
}

// Total returns the number of replacements across all files
func (r Result) Total() int {
	n := 0
	for _, f := range r.Files {
		n += f.Replacements
	}
	return n
}

// Option configures a Mutation
type Option func(*Mutation)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(m *Mutation) {
		if fs != nil {
			m.fs = fs
		}
	}
}

// WithRenderer sets the default template renderer
func WithRenderer(r templates.Renderer) Option {
	return func(m *Mutation) {
		if r != nil {
			m.renderer = r
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mutation) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithIgnore replaces the paths skipped by FindUnmentionedFiles. Paths are
// relative to the scanned root, so "nasti.yaml" only matches the top level.
func WithIgnore(paths ...string) Option {
	return func(m *Mutation) {
		m.ignore = make(map[string]bool, len(paths))
		for _, p := range paths {
			m.ignore[path.Clean(filepath.ToSlash(p))] = true
		}
	}
}

// New builds a Mutation whose files are relative to baseDir
func New(cfg Config, baseDir string, opts ...Option) (*Mutation, error) {
	var missing []string
	if cfg.Name == "" {
		missing = append(missing, "name")
	}
	if cfg.Prompt == "" {
		missing = append(missing, "prompt")
	}
	if cfg.Replace == "" {
		missing = append(missing, "replace")
	}
	if cfg.Files == nil {
		missing = append(missing, "files")
	}
	if len(missing) > 0 {
		return nil, nerrors.Newf(nerrors.ERequiredKeysMissing,
			"mutation %q is missing required keys: %s", cfg.Name, strings.Join(missing, ", ")).
			WithDetail("mutation", cfg.Name)
	}

	m := &Mutation{
		name:        cfg.Name,
		prompt:      cfg.Prompt,
		help:        cfg.Help,
		replace:     cfg.Replace,
		files:       append([]string(nil), cfg.Files...),
		defaultTmpl: cfg.Default,
		baseDir:     baseDir,
		fs:          afero.NewOsFs(),
		renderer:    templates.NewEngine(),
		logger:      zap.NewNop(),
	}
	WithIgnore(DefaultIgnore...)(m)
	for _, opt := range opts {
		opt(m)
	}

	if cfg.Validation != nil {
		rule, err := validation.New(*cfg.Validation)
		if err != nil {
			return nil, err
		}
		m.rule = rule
	}
	return m, nil
}

// Name returns the mutation's name
func (m *Mutation) Name() string { return m.name }

// Replace returns the replacement token
func (m *Mutation) Replace() string { return m.replace }

// Files returns the declared file list
func (m *Mutation) Files() []string { return append([]string(nil), m.files...) }

// HasDefault reports whether a default template is declared
func (m *Mutation) HasDefault() bool { return m.defaultTmpl != nil }

// ValidateInput reports whether value satisfies the mutation's rule
func (m *Mutation) ValidateInput(value string) bool {
	return m.rule.Validate(value)
}

// Validate checks the file list, the default template and that every file
// exists and contains the replacement token.
func (m *Mutation) Validate(globals variable.Values) error {
	if len(m.files) == 0 {
		return nerrors.Newf(nerrors.EEmptyFiles, "mutation %q does not list any files", m.name).
			WithDetail("mutation", m.name)
	}

	if m.defaultTmpl != nil {
		if _, err := m.RenderDefault(globals); err != nil {
			return err
		}
	}

	for _, file := range m.files {
		full := m.fullPath(file)
		info, err := m.fs.Stat(full)
		if err != nil || info.IsDir() {
			return nerrors.Newf(nerrors.EFileDoesNotExist,
				"mutation %q file %s does not exist at %s", m.name, file, full).
				WithDetail("mutation", m.name).WithDetail("file", file)
		}

		content, err := afero.ReadFile(m.fs, full)
		if err != nil {
			return nerrors.Wrapf(err, nerrors.EUnableToOpenFile,
				"mutation %q cannot read %s", m.name, file)
		}
		if !strings.Contains(string(content), m.replace) {
			return nerrors.Newf(nerrors.EFileDoesNotContainReplacementString,
				"mutation %q file %s does not contain %q", m.name, file, m.replace).
				WithDetail("mutation", m.name).WithDetail("file", file)
		}
	}
	return nil
}

// RenderDefault evaluates the default template against globals.
// Returns "" when no default is declared.
func (m *Mutation) RenderDefault(globals variable.Values) (string, error) {
	if m.defaultTmpl == nil {
		return "", nil
	}
	out, err := m.renderer.Render(*m.defaultTmpl, globals.Map())
	if err != nil {
		return "", nerrors.Wrapf(err, nerrors.EDefaultTemplateInvalid,
			"mutation %q default %q cannot be rendered", m.name, *m.defaultTmpl).
			WithDetail("mutation", m.name)
	}
	return out, nil
}

// Run collects the value and substitutes it into every declared file.
// Files are rewritten in order; a failure leaves earlier files mutated.
func (m *Mutation) Run(c *prompt.Collector, globals variable.Values) (Result, error) {
	result := Result{Name: m.name}

	def, err := m.RenderDefault(globals)
	if err != nil {
		return result, err
	}

	help := m.help
	if m.HasDefault() {
		line := "Default: " + def
		if help != "" {
			help += "\n" + line
		} else {
			help = line
		}
	}

	value, err := c.Collect(prompt.Request{
		Owner:      "mutation",
		Key:        m.name,
		Prompt:     m.prompt,
		Help:       help,
		Validate:   m.ValidateInput,
		Expect:     m.rule.Describe(),
		Default:    def,
		HasDefault: m.HasDefault(),
	})
	if err != nil {
		return result, err
	}
	result.Value = value

	for _, file := range m.files {
		n, err := m.replaceInFile(file, value)
		if err != nil {
			return result, nerrors.Wrapf(err, nerrors.ETextReplacementFailed,
				"mutation %q failed to update %s", m.name, file).
				WithDetail("mutation", m.name).WithDetail("file", file)
		}
		result.Files = append(result.Files, FileResult{Path: file, Replacements: n})
		m.logger.Debug("replaced token",
			zap.String("mutation", m.name), zap.String("file", file), zap.Int("count", n))
	}

	m.logger.Info("mutation applied",
		zap.String("mutation", m.name), zap.Int("files", len(result.Files)), zap.Int("replacements", result.Total()))
	return result, nil
}

func (m *Mutation) replaceInFile(file, value string) (int, error) {
	full := m.fullPath(file)
	info, err := m.fs.Stat(full)
	if err != nil {
		return 0, err
	}
	content, err := afero.ReadFile(m.fs, full)
	if err != nil {
		return 0, err
	}

	text := string(content)
	n := strings.Count(text, m.replace)
	if err := afero.WriteFile(m.fs, full, []byte(strings.ReplaceAll(text, m.replace, value)), info.Mode().Perm()); err != nil {
		return 0, err
	}
	return n, nil
}

// FindUnmentionedFiles walks rootDir and returns files that contain the
// replacement token but are not listed. Dot-prefixed entries and the ignored
// paths (the root manifest by default) are skipped. Paths are relative to the base directory, slash-separated, in
// walk order.
func (m *Mutation) FindUnmentionedFiles(rootDir string) ([]string, error) {
	listed := make(map[string]bool, len(m.files))
	for _, f := range m.files {
		listed[path.Clean(filepath.ToSlash(f))] = true
	}

	var found []string
	err := afero.Walk(m.fs, rootDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p != rootDir {
			name := info.Name()
			if strings.HasPrefix(name, ".") {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			fromRoot, err := filepath.Rel(rootDir, p)
			if err != nil {
				return err
			}
			if m.ignore[filepath.ToSlash(fromRoot)] {
				return nil
			}
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(m.baseDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if listed[rel] {
			return nil
		}

		content, err := afero.ReadFile(m.fs, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		if strings.Contains(string(content), m.replace) {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for mutation %q: %w", rootDir, m.name, err)
	}
	return found, nil
}

func (m *Mutation) fullPath(file string) string {
	return filepath.Join(m.baseDir, filepath.FromSlash(file))
}
