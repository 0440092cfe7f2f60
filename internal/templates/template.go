// Package templates renders the `default` expressions of manifest mutations.
//
// The supported syntax is intentionally small:
//
//	{{app_name}}                  interpolate a variable
//	{{.app_name}}                 same, dot form
//	{{index . "app-name"}}        variables whose names are not identifiers
//	{{app_name | upper}}          filters: upper lower title snake kebab camel
//	                              pascal slug trim
//	{{app_name | replace " " "_"}}
//	{{app_name | default "demo"}}
//
// A variable may share a filter's name: {{slug}} yields the variable and
// {{app_name | slug}} applies the filter. Referencing an undefined variable is
// an error.
package templates

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	utilstrings "github.com/nasti-scaffold/nasti/internal/util/strings"
)

// Renderer evaluates a template string against a variable namespace
type Renderer interface {
	Render(tmpl string, vars map[string]string) (string, error)
}

// Engine is the text/template backed Renderer
type Engine struct {
	filters map[string]filter
}

// filter takes arity string arguments; the piped value is always last.
type filter struct {
	arity int
	apply func(args []string) string
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// text/template builtins and keywords; variables with these names are only
// reachable through the dot form.
var reserved = map[string]bool{
	"and": true, "call": true, "html": true, "index": true, "slice": true,
	"js": true, "len": true, "not": true, "or": true, "print": true,
	"printf": true, "println": true, "urlquery": true, "eq": true, "ge": true,
	"gt": true, "le": true, "lt": true, "ne": true, "block": true,
	"break": true, "continue": true, "define": true, "else": true, "end": true,
	"if": true, "nil": true, "range": true, "template": true, "with": true,
	"true": true, "false": true,
}

func unary(fn func(string) string) filter {
	return filter{arity: 1, apply: func(args []string) string { return fn(args[0]) }}
}

// NewEngine creates a new template engine
func NewEngine() *Engine {
	title := cases.Title(language.Und)
	return &Engine{
		filters: map[string]filter{
			"upper":  unary(strings.ToUpper),
			"lower":  unary(strings.ToLower),
			"title":  unary(title.String),
			"snake":  unary(utilstrings.ToSnakeCase),
			"kebab":  unary(utilstrings.ToKebabCase),
			"camel":  unary(utilstrings.ToCamelCase),
			"pascal": unary(utilstrings.ToPascalCase),
			"slug": unary(func(s string) string {
				return strings.Trim(slugCleaner.ReplaceAllString(strings.ToLower(s), "-"), "-")
			}),
			"trim": unary(strings.TrimSpace),
			"replace": {arity: 3, apply: func(args []string) string {
				return strings.ReplaceAll(args[2], args[0], args[1])
			}},
			"default": {arity: 2, apply: func(args []string) string {
				if args[1] == "" {
					return args[0]
				}
				return args[1]
			}},
		},
	}
}

// bind turns a filter into a template function. When a variable shares the
// filter's name, calling it without arguments yields the variable.
func (f filter) bind(name string, shadow *string) func(args ...string) (string, error) {
	return func(args ...string) (string, error) {
		if len(args) == 0 && shadow != nil {
			return *shadow, nil
		}
		if len(args) != f.arity {
			return "", fmt.Errorf("%s: want %d argument(s), got %d", name, f.arity, len(args))
		}
		return f.apply(args), nil
	}
}

// Render renders tmplStr with vars as both the dot value and as
// zero-argument functions named after each variable. A variable named like a
// filter is returned by a bare call ({{slug}}) and the filter applies when an
// argument is given ({{app_name | slug}}).
func (e *Engine) Render(tmplStr string, vars map[string]string) (string, error) {
	funcs := make(template.FuncMap, len(e.filters)+len(vars))
	for name, f := range e.filters {
		var shadow *string
		if v, ok := vars[name]; ok {
			shadow = &v
		}
		funcs[name] = f.bind(name, shadow)
	}
	for name, value := range vars {
		if !identPattern.MatchString(name) || reserved[name] {
			continue
		}
		if _, isFilter := e.filters[name]; isFilter {
			continue
		}
		v := value
		funcs[name] = func() string { return v }
	}

	tmpl, err := template.New("default").Funcs(funcs).Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	data := make(map[string]string, len(vars))
	for k, v := range vars {
		data[k] = v
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
