// Package variable implements manifest globals: named values collected once
// per run and shared with every mutation.
package variable

import (
	"sort"

	"go.uber.org/zap"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
	"github.com/nasti-scaffold/nasti/internal/prompt"
	"github.com/nasti-scaffold/nasti/internal/validation"
)

// Config is a `globals` entry of the manifest
type Config struct {
	Name       string             `yaml:"name"`
	Prompt     string             `yaml:"prompt"`
	Help       string             `yaml:"help"`
	Validation *validation.Config `yaml:"validation"`
}

// Variable is a named, prompted, validated scalar
type Variable struct {
	name   string
	prompt string
	help   string
	rule   *validation.Rule

	value     string
	populated bool
	logger    *zap.Logger
}

// Option configures a Variable
type Option func(*Variable)

// WithLogger attaches a logger
func WithLogger(logger *zap.Logger) Option {
	return func(v *Variable) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New builds a Variable from its configuration
func New(cfg Config, opts ...Option) (*Variable, error) {
	var missing []string
	if cfg.Name == "" {
		missing = append(missing, "name")
	}
	if cfg.Prompt == "" {
		missing = append(missing, "prompt")
	}
	if len(missing) > 0 {
		return nil, nerrors.Newf(nerrors.ERequiredKeysMissing,
			"global %q is missing required keys: %v", cfg.Name, missing)
	}

	v := &Variable{
		name:   cfg.Name,
		prompt: cfg.Prompt,
		help:   cfg.Help,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}

	if cfg.Validation != nil {
		rule, err := validation.New(*cfg.Validation)
		if err != nil {
			return nil, err
		}
		v.rule = rule
	}
	return v, nil
}

// Name returns the variable's key
func (v *Variable) Name() string {
	return v.name
}

// Value returns the populated value, or "" before Populate
func (v *Variable) Value() string {
	return v.value
}

// Populated reports whether Populate has succeeded
func (v *Variable) Populated() bool {
	return v.populated
}

// Validate reports whether value satisfies the variable's rule
func (v *Variable) Validate(value string) bool {
	return v.rule.Validate(value)
}

// Populate collects the value exactly once. Later calls return the stored value.
func (v *Variable) Populate(c *prompt.Collector) (string, error) {
	if v.populated {
		return v.value, nil
	}

	value, err := c.Collect(prompt.Request{
		Owner:    "global",
		Key:      v.name,
		Prompt:   v.prompt,
		Help:     v.help,
		Validate: v.Validate,
		Expect:   v.rule.Describe(),
	})
	if err != nil {
		return "", err
	}

	v.value = value
	v.populated = true
	v.logger.Debug("global populated", zap.String("name", v.name))
	return value, nil
}

// Values is the immutable snapshot of populated globals handed to mutations
type Values map[string]string

// Get returns the value stored under name
func (vs Values) Get(name string) (string, bool) {
	val, ok := vs[name]
	return val, ok
}

// With returns a copy of vs with name set to value
func (vs Values) With(name, value string) Values {
	out := make(Values, len(vs)+1)
	for k, v := range vs {
		out[k] = v
	}
	out[name] = value
	return out
}

// Names returns the keys in sorted order
func (vs Values) Names() []string {
	names := make([]string, 0, len(vs))
	for k := range vs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy suitable for a template namespace
func (vs Values) Map() map[string]string {
	out := make(map[string]string, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}
