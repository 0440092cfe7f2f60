// Package validation implements the value rules declared in a manifest's
// `validation` blocks: either a regular expression or one of a closed set of
// semantic kinds.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
)

// Config mirrors a manifest validation block. Exactly one field must be set.
type Config struct {
	Regex *string `yaml:"regex"`
	Kind  *string `yaml:"kind"`
}

// Rule validates a single scalar value
type Rule struct {
	source  string
	pattern *regexp.Regexp
	kind    Kind
}

// New builds a Rule from its configuration
func New(cfg Config) (*Rule, error) {
	switch {
	case cfg.Regex == nil && cfg.Kind == nil:
		return nil, nerrors.New(nerrors.EConfigMissing, "validation requires regex or kind")
	case cfg.Regex != nil && cfg.Kind != nil:
		return nil, nerrors.New(nerrors.EConfigInvalid, "validation requires regex or kind, not both")
	}

	if cfg.Kind != nil {
		kind, ok := ParseKind(*cfg.Kind)
		if !ok {
			return nil, nerrors.Newf(nerrors.EUnknownKind, "unknown validation kind %q (expected one of %s)",
				*cfg.Kind, strings.Join(KindNames(), ", "))
		}
		return &Rule{source: kind.String(), kind: kind}, nil
	}

	// Anchor at the start only; trailing input is accepted unless the pattern anchors.
	re, err := regexp.Compile(`^(?:` + *cfg.Regex + `)`)
	if err != nil {
		return nil, nerrors.Wrapf(err, nerrors.EConfigInvalid, "invalid validation regex %q", *cfg.Regex)
	}
	return &Rule{source: *cfg.Regex, pattern: re}, nil
}

// Regex is a convenience constructor for a pattern rule
func Regex(pattern string) (*Rule, error) {
	return New(Config{Regex: &pattern})
}

// ForKind is a convenience constructor for a kind rule
func ForKind(name string) (*Rule, error) {
	return New(Config{Kind: &name})
}

// Validate reports whether value satisfies the rule. A nil rule accepts everything.
func (r *Rule) Validate(value string) bool {
	if r == nil {
		return true
	}
	if r.pattern != nil {
		return r.pattern.MatchString(value)
	}
	return r.kind.Check(value)
}

// Describe returns a short human description used in retry messages
func (r *Rule) Describe() string {
	if r == nil {
		return "any value"
	}
	if r.pattern != nil {
		return fmt.Sprintf("a value matching %s", r.source)
	}
	return fmt.Sprintf("a valid %s", r.source)
}
