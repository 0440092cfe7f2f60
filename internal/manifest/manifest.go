// Package manifest loads a template's nasti.yaml and drives it: globals are
// collected in declaration order, then every mutation runs with the
// collected values, framed by the optional before and after hooks.
package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
	"github.com/nasti-scaffold/nasti/internal/exec"
	"github.com/nasti-scaffold/nasti/internal/hooks"
	"github.com/nasti-scaffold/nasti/internal/logging"
	"github.com/nasti-scaffold/nasti/internal/mutation"
	"github.com/nasti-scaffold/nasti/internal/prompt"
	"github.com/nasti-scaffold/nasti/internal/templates"
	utilstrings "github.com/nasti-scaffold/nasti/internal/util/strings"
	"github.com/nasti-scaffold/nasti/internal/variable"
)

// FileName is the manifest file expected at the root of a template
const FileName = "nasti.yaml"

var (
	mutationKeys = []string{"name", "prompt", "help", "validation", "replace", "files", "default"}
	globalKeys   = []string{"name", "prompt", "help", "validation"}
	hookKeys     = []string{"before_script", "after_script", "auto_cleanup"}
)

// document is the decoded top level of a manifest. Entries stay as nodes so
// their keys can be checked before decoding.
type document struct {
	Greeting  string      `yaml:"greeting"`
	Hooks     yaml.Node   `yaml:"hooks"`
	Globals   []yaml.Node `yaml:"globals"`
	Mutations []yaml.Node `yaml:"mutations"`
}

// Manifest is a loaded nasti.yaml bound to its directory
type Manifest struct {
	dir  string
	path string

	doc    document
	hooks  *hooks.Runner
	values variable.Values

	fs        afero.Fs
	collector *prompt.Collector
	renderer  templates.Renderer
	runner    exec.CommandRunner
	logger    *zap.Logger
}

// Option configures a Manifest
type Option func(*Manifest)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(m *Manifest) {
		if fs != nil {
			m.fs = fs
		}
	}
}

// WithCollector sets the value collector used by Run
func WithCollector(c *prompt.Collector) Option {
	return func(m *Manifest) {
		if c != nil {
			m.collector = c
		}
	}
}

// WithRenderer sets the renderer for mutation defaults
func WithRenderer(r templates.Renderer) Option {
	return func(m *Manifest) {
		if r != nil {
			m.renderer = r
		}
	}
}

// WithCommandRunner sets the process runner used for hooks
func WithCommandRunner(cr exec.CommandRunner) Option {
	return func(m *Manifest) {
		if cr != nil {
			m.runner = cr
		}
	}
}

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manifest) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Manifest for the nasti.yaml inside dir
func New(dir string, opts ...Option) *Manifest {
	m := &Manifest{
		dir:      dir,
		path:     filepath.Join(dir, FileName),
		hooks:    hooks.Disabled(),
		values:   variable.Values{},
		fs:       afero.NewOsFs(),
		renderer: templates.NewEngine(),
		runner:   exec.NewRealRunner(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.collector == nil {
		m.collector = prompt.NewCollector(prompt.NewStdinReader(),
			prompt.NewWriterPrinter(os.Stdout, nil), prompt.WithLogger(m.logger))
	}
	return m
}

// Dir returns the manifest's directory
func (m *Manifest) Dir() string { return m.dir }

// Path returns the manifest file path
func (m *Manifest) Path() string { return m.path }

// Greeting returns the loaded greeting
func (m *Manifest) Greeting() string { return m.doc.Greeting }

// Hooks returns the hook runner built by Load
func (m *Manifest) Hooks() *hooks.Runner { return m.hooks }

// Load reads and parses the manifest and builds its hook runner
func (m *Manifest) Load() error {
	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return nerrors.Wrapf(err, nerrors.EUnableToOpenFile, "unable to open %s", m.path).
			WithDetail("path", m.path)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nerrors.Wrapf(err, nerrors.EInvalidYaml, "%s is not valid YAML", m.path).
			WithDetail("path", m.path)
	}

	var doc document
	if len(root.Content) > 0 {
		if err := root.Decode(&doc); err != nil {
			return nerrors.Wrapf(err, nerrors.EInvalidYaml, "%s has an invalid structure", m.path).
				WithDetail("path", m.path)
		}
	}
	m.doc = doc

	m.hooks = hooks.Disabled()
	if doc.Hooks.Kind != 0 && doc.Hooks.ShortTag() != "!!null" {
		if err := checkKeys(&doc.Hooks, "hooks", "", hookKeys); err != nil {
			return err
		}
		var cfg hooks.Config
		if err := doc.Hooks.Decode(&cfg); err != nil {
			return nerrors.Wrapf(err, nerrors.EInvalidYaml, "%s has invalid hooks", m.path)
		}
		m.hooks = hooks.New(cfg, m.dir,
			hooks.WithFs(m.fs), hooks.WithCommandRunner(m.runner),
			hooks.WithLogger(logging.Component(m.logger, "hooks")))
	}

	m.logger.Debug("manifest loaded", zap.String("path", m.path),
		zap.Int("globals", len(doc.Globals)), zap.Int("mutations", len(doc.Mutations)))
	return nil
}

// Validate reloads the manifest and checks every global and mutation.
// Mutation defaults are rendered with each declared global standing in for
// its own value.
func (m *Manifest) Validate() error {
	if err := m.Load(); err != nil {
		return err
	}
	if len(m.doc.Mutations) == 0 {
		return nerrors.Newf(nerrors.ENoMutations, "%s does not contain any mutations", m.path).
			WithDetail("path", m.path)
	}

	vars, err := m.variables()
	if err != nil {
		return err
	}
	placeholders := variable.Values{}
	for _, v := range vars {
		placeholders[v.Name()] = v.Name()
	}

	muts, err := m.mutations()
	if err != nil {
		return err
	}
	for _, mut := range muts {
		if err := mut.Validate(placeholders); err != nil {
			return err
		}
	}
	return nil
}

// RunReport summarises a completed Run
type RunReport struct {
	Globals    variable.Values
	Mutations  []mutation.Result
	BeforeHook bool
	AfterHook  bool
}

// Run loads the manifest and executes hooks, globals and mutations in order
func (m *Manifest) Run(ctx context.Context) (*RunReport, error) {
	if err := m.Load(); err != nil {
		return nil, err
	}
	if len(m.doc.Mutations) == 0 {
		return nil, nerrors.Newf(nerrors.ENoMutations, "%s does not contain any mutations", m.path)
	}

	vars, err := m.variables()
	if err != nil {
		return nil, err
	}
	muts, err := m.mutations()
	if err != nil {
		return nil, err
	}

	if m.doc.Greeting != "" {
		m.collector.Print(m.doc.Greeting)
	}

	m.logger.Debug("running manifest",
		zap.Int("globals", len(vars)),
		zap.Int("mutations", len(muts)),
		zap.Bool("before_hook", m.hooks.HasBefore()),
		zap.Bool("after_hook", m.hooks.HasAfter()),
		zap.Bool("auto_cleanup", m.hooks.AutoCleanup()))

	report := &RunReport{}
	if report.BeforeHook, err = m.hooks.RunBefore(ctx); err != nil {
		return report, err
	}

	values := variable.Values{}
	for _, v := range vars {
		value, err := v.Populate(m.collector)
		if err != nil {
			return report, err
		}
		values = values.With(v.Name(), value)
		m.values = values
	}
	report.Globals = values
	m.logger.Debug("globals collected", zap.Strings("names", values.Names()))

	for _, mut := range muts {
		m.collector.Print("")
		res, err := mut.Run(m.collector, values)
		if err != nil {
			return report, err
		}
		report.Mutations = append(report.Mutations, res)
	}

	if report.AfterHook, err = m.hooks.RunAfter(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// GetGlobal returns a value collected by Run
func (m *Manifest) GetGlobal(name string) (string, error) {
	value, ok := m.values.Get(name)
	if !ok {
		return "", nerrors.Newf(nerrors.EGlobalNotFound, "global %q not found", name).
			WithDetail("global", name)
	}
	return value, nil
}

// Finding lists the unmentioned files of one mutation
type Finding struct {
	Mutation string
	Files    []string
}

// Report groups unmentioned files by mutation
type Report struct {
	Findings []Finding
}

// Empty reports whether nothing was found
func (r Report) Empty() bool { return len(r.Findings) == 0 }

// String renders the report; an empty report renders as ""
func (r Report) String() string {
	var b strings.Builder
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "Mutation: %s\n", f.Mutation)
		for _, file := range f.Files {
			fmt.Fprintf(&b, "  - %s\n", file)
		}
	}
	return b.String()
}

// FindUnmentionedFiles scans the manifest directory for files containing a
// mutation's token that the mutation does not list. Mutations that cannot be
// built are skipped.
func (m *Manifest) FindUnmentionedFiles() (Report, error) {
	var report Report
	if err := m.Load(); err != nil {
		return report, err
	}

	for i := range m.doc.Mutations {
		mut, err := m.buildMutation(i)
		if err != nil {
			m.logger.Debug("skipping invalid mutation", zap.Int("index", i), zap.Error(err))
			continue
		}
		m.logger.Debug("scanning for unlisted files", zap.String("mutation", mut.Name()), zap.String("token", mut.Replace()))
		files, err := mut.FindUnmentionedFiles(m.dir)
		if err != nil {
			return report, err
		}
		if len(files) > 0 {
			report.Findings = append(report.Findings, Finding{Mutation: mut.Name(), Files: files})
		}
	}
	return report, nil
}

func (m *Manifest) variables() ([]*variable.Variable, error) {
	vars := make([]*variable.Variable, 0, len(m.doc.Globals))
	for i := range m.doc.Globals {
		node := &m.doc.Globals[i]
		if err := checkKeys(node, "global", entryLabel(node, i), globalKeys); err != nil {
			return nil, err
		}
		var cfg variable.Config
		if err := node.Decode(&cfg); err != nil {
			return nil, nerrors.Wrapf(err, nerrors.EInvalidYaml, "global %s is malformed", entryLabel(node, i))
		}
		v, err := variable.New(cfg, variable.WithLogger(m.logger))
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

func (m *Manifest) mutations() ([]*mutation.Mutation, error) {
	muts := make([]*mutation.Mutation, 0, len(m.doc.Mutations))
	for i := range m.doc.Mutations {
		mut, err := m.buildMutation(i)
		if err != nil {
			return nil, err
		}
		muts = append(muts, mut)
	}
	return muts, nil
}

func (m *Manifest) buildMutation(i int) (*mutation.Mutation, error) {
	node := &m.doc.Mutations[i]
	if err := checkKeys(node, "mutation", entryLabel(node, i), mutationKeys); err != nil {
		return nil, err
	}
	var cfg mutation.Config
	if err := node.Decode(&cfg); err != nil {
		return nil, nerrors.Wrapf(err, nerrors.EInvalidYaml, "mutation %s is malformed", entryLabel(node, i))
	}
	return mutation.New(cfg, m.dir,
		mutation.WithFs(m.fs),
		mutation.WithRenderer(m.renderer),
		mutation.WithIgnore(FileName),
		mutation.WithLogger(logging.Component(m.logger, "mutation")))
}

// checkKeys reports keys of a mapping node outside allowed, with suggestions
func checkKeys(node *yaml.Node, kind, label string, allowed []string) error {
	if node.Kind != yaml.MappingNode {
		return nerrors.Newf(nerrors.EInvalidYaml, "%s %s must be a mapping (line %d)", kind, label, node.Line)
	}

	known := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		known[k] = true
	}

	var unknown []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	parts := make([]string, len(unknown))
	var suggestions []string
	for i, key := range unknown {
		parts[i] = key
		if match := utilstrings.FindBestMatch(key, allowed, &utilstrings.FuzzyMatchOptions{MaxDistance: 2}); match != "" {
			parts[i] = fmt.Sprintf("%s (did you mean %q?)", key, match)
			suggestions = append(suggestions, match)
		}
	}

	sorted := append([]string(nil), allowed...)
	sort.Strings(sorted)
	subject := kind
	if label != "" {
		subject += " " + label
	}
	err := nerrors.Newf(nerrors.EUnknownKeys, "%s has unknown keys: %s (allowed: %s)",
		subject, strings.Join(parts, ", "), strings.Join(sorted, ", ")).
		WithDetail("keys", strings.Join(unknown, ","))
	if len(suggestions) > 0 {
		err.WithDetail("suggestion", strings.Join(suggestions, ","))
	}
	return err
}

// entryLabel names a list entry by its `name` key, falling back to its position
func entryLabel(node *yaml.Node, i int) string {
	if node.Kind == yaml.MappingNode {
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value == "name" && node.Content[j+1].Value != "" {
				return fmt.Sprintf("%q", node.Content[j+1].Value)
			}
		}
	}
	return fmt.Sprintf("#%d", i+1)
}
