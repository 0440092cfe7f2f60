package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
)

// ErrorLevel represents the severity of an error message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized error message with suggestions and help commands
//
// Example output:
//
//	❌ INVALID MANIFEST: mutation "slug" has unknown keys: replce
//	   mutation "slug" has unknown keys: replce
//
//	   Did you mean: replace?
//
//	   → Check the manifest: nasti validate <dir>
//	   → Get help: nasti --help
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	// Determine colors and symbol based on level
	var headerColor, bodyColor *color.Color
	var symbol string

	switch opts.Level {
	case ErrorLevelError:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "❌"
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "ℹ️"
	}

	// Disable colors if requested
	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
	}

	// Header line with context
	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	// Problem description with indentation
	if opts.Problem != "" && opts.Context != "" {
		bodyColor.Fprintf(&b, "   %s\n", opts.Problem)
	}

	// Consequence (if provided)
	if opts.Consequence != "" {
		b.WriteString("\n")
		bodyColor.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	// Suggestions
	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	// Help commands
	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// ManifestError creates a standardized error for a manifest that failed to
// load or validate
func ManifestError(message string, suggestions []string, noColor bool) string {
	opts := ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "INVALID MANIFEST",
		Problem:     message,
		Suggestions: suggestions,
		HelpCommands: []string{
			"Check the manifest: nasti validate <dir>",
			"Find unlisted files: nasti find <dir>",
		},
		NoColor: noColor,
	}
	return FormatError(opts)
}

// ProcessError creates a standardized error for a failed scaffolding run
func ProcessError(message string, consequence string, noColor bool) string {
	opts := ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "PROCESS FAILED",
		Problem:     message,
		Consequence: consequence,
		HelpCommands: []string{
			"Review recent runs: nasti history",
			"Get help: nasti process --help",
		},
		NoColor: noColor,
	}
	return FormatError(opts)
}

// HookError creates a standardized error for a failed hook script
func HookError(message string, noColor bool) string {
	opts := ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "HOOK FAILED",
		Problem:     message,
		Consequence: "Files already mutated were left in place.",
		HelpCommands: []string{
			"Re-run with debug logs: nasti -vv process <source>",
		},
		NoColor: noColor,
	}
	return FormatError(opts)
}

// SourceError creates a standardized error for a template that could not be acquired
func SourceError(message string, noColor bool) string {
	opts := ErrorOptions{
		Level:   ErrorLevelError,
		Context: "SOURCE UNAVAILABLE",
		Problem: message,
		HelpCommands: []string{
			"Sources are git remotes (git@..., https://....git) or local directories",
			"Get help: nasti process help",
		},
		NoColor: noColor,
	}
	return FormatError(opts)
}

// FromError picks the standardized message for err by its error category.
// consequence describes what the caller did about a runtime failure, such as
// removing a partial destination; it is shown only for runtime and uncoded
// errors and may be empty.
func FromError(err error, consequence string, noColor bool) string {
	code := nerrors.GetCode(err)
	if code == "" {
		return ProcessError(err.Error(), consequence, noColor)
	}

	var suggestions []string
	var e *nerrors.Error
	if nerrors.As(err, &e) && e.Details["suggestion"] != "" {
		suggestions = strings.Split(e.Details["suggestion"], ",")
	}

	switch code.Category() {
	case nerrors.CategoryConfig, nerrors.CategoryContent, nerrors.CategoryLookup:
		return ManifestError(err.Error(), suggestions, noColor)
	case nerrors.CategoryHook:
		return HookError(err.Error(), noColor)
	case nerrors.CategorySource:
		return SourceError(err.Error(), noColor)
	}
	return ProcessError(err.Error(), consequence, noColor)
}

// ConfigError creates a standardized configuration error
func ConfigError(message string, suggestions []string, noColor bool) string {
	opts := ErrorOptions{
		Level:        ErrorLevelError,
		Context:      "CONFIGURATION ERROR",
		Problem:      message,
		Suggestions:  suggestions,
		HelpCommands: []string{
			"Config file: ~/.config/nasti/config.yaml",
			"Get help: nasti --help",
		},
		NoColor: noColor,
	}
	return FormatError(opts)
}

// Warning creates a standardized warning message
func Warning(message string, suggestions []string, noColor bool) string {
	opts := ErrorOptions{
		Level:       ErrorLevelWarning,
		Problem:     message,
		Suggestions: suggestions,
		NoColor:     noColor,
	}
	return FormatError(opts)
}

// Info creates a standardized info message
func Info(message string, noColor bool) string {
	opts := ErrorOptions{
		Level:   ErrorLevelInfo,
		Problem: message,
		NoColor: noColor,
	}
	return FormatError(opts)
}
