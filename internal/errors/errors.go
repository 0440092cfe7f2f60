// Package errors provides the structured error taxonomy for nasti.
// Every failure surfaced by the manifest engine, the source handlers and the
// project materializer carries a stable Code so callers and tests can match
// on the kind of failure instead of on message text.
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable error code
type Code string

// Category groups related codes for reporting
type Category string

const (
	CategoryConfig  Category = "config"
	CategoryContent Category = "content"
	CategoryRuntime Category = "runtime"
	CategorySource  Category = "source"
	CategoryHook    Category = "hook"
	CategoryLookup  Category = "lookup"
	CategoryProject Category = "project"
)

const (
	// Configuration structure
	ERequiredKeysMissing Code = "E_REQUIRED_KEYS_MISSING"
	EUnknownKeys         Code = "E_UNKNOWN_KEYS"
	EConfigMissing       Code = "E_VALIDATION_CONFIG_MISSING"
	EConfigInvalid       Code = "E_VALIDATION_CONFIG_INVALID"
	EUnableToOpenFile    Code = "E_UNABLE_TO_OPEN_FILE"
	EInvalidYaml         Code = "E_INVALID_YAML"
	ENoMutations         Code = "E_NO_MUTATIONS"

	// Content
	EEmptyFiles                          Code = "E_EMPTY_FILES"
	EFileDoesNotExist                    Code = "E_FILE_DOES_NOT_EXIST"
	EFileDoesNotContainReplacementString Code = "E_FILE_DOES_NOT_CONTAIN_REPLACEMENT_STRING"

	// Runtime
	ETooManyInputTries      Code = "E_TOO_MANY_INPUT_TRIES"
	ETextReplacementFailed  Code = "E_TEXT_REPLACEMENT_FAILED"
	EDefaultTemplateInvalid Code = "E_DEFAULT_TEMPLATE_INVALID"
	ESilentValueMissing     Code = "E_SILENT_VALUE_MISSING"
	ESilentValueInvalid     Code = "E_SILENT_VALUE_INVALID"
	EInputFailed            Code = "E_INPUT_FAILED"

	// Source acquisition
	EGitMissing     Code = "E_GIT_MISSING"
	ECloneFailed    Code = "E_CLONE_FAILED"
	ETmpDirCreation Code = "E_TMP_DIR_CREATION"
	ESourceNotDir   Code = "E_SOURCE_NOT_DIR"

	// Hooks
	EScriptNotFound        Code = "E_SCRIPT_NOT_FOUND"
	EScriptExecutionFailed Code = "E_SCRIPT_EXECUTION_FAILED"
	ECleanupFailed         Code = "E_CLEANUP_FAILED"

	// Lookup
	EUnknownKind    Code = "E_UNKNOWN_KIND"
	EGlobalNotFound Code = "E_GLOBAL_NOT_FOUND"

	// Project materialization
	EDestinationCreateFailed Code = "E_DESTINATION_CREATE_FAILED"
	ECopyFailed              Code = "E_COPY_FAILED"
	EGitInitFailed           Code = "E_GIT_INIT_FAILED"

	EInternal Code = "E_INTERNAL"
)

var categories = map[Code]Category{
	ERequiredKeysMissing:                 CategoryConfig,
	EUnknownKeys:                         CategoryConfig,
	EConfigMissing:                       CategoryConfig,
	EConfigInvalid:                       CategoryConfig,
	EUnableToOpenFile:                    CategoryConfig,
	EInvalidYaml:                         CategoryConfig,
	ENoMutations:                         CategoryConfig,
	EEmptyFiles:                          CategoryContent,
	EFileDoesNotExist:                    CategoryContent,
	EFileDoesNotContainReplacementString: CategoryContent,
	ETooManyInputTries:                   CategoryRuntime,
	ETextReplacementFailed:               CategoryRuntime,
	EDefaultTemplateInvalid:              CategoryRuntime,
	ESilentValueMissing:                  CategoryRuntime,
	ESilentValueInvalid:                  CategoryRuntime,
	EInputFailed:                         CategoryRuntime,
	EGitMissing:                          CategorySource,
	ECloneFailed:                         CategorySource,
	ETmpDirCreation:                      CategorySource,
	ESourceNotDir:                        CategorySource,
	EScriptNotFound:                      CategoryHook,
	EScriptExecutionFailed:               CategoryHook,
	ECleanupFailed:                       CategoryHook,
	EUnknownKind:                         CategoryLookup,
	EGlobalNotFound:                      CategoryLookup,
	EDestinationCreateFailed:             CategoryProject,
	ECopyFailed:                          CategoryProject,
	EGitInitFailed:                       CategoryProject,
}

// Error makes a bare Code usable as an errors.Is target.
func (c Code) Error() string {
	return string(c)
}

// Category returns the category a code belongs to
func (c Code) Category() Category {
	if cat, ok := categories[c]; ok {
		return cat
	}
	return CategoryRuntime
}

// Error is the standard nasti error type
type Error struct {
	Code    Code
	Message string
	Cause   error
	Details map[string]string
}

// Error returns "CODE: message" with the cause appended when present
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error or a bare Code with the same code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Code:
		return e.Code == t
	case *Error:
		return e.Code == t.Code
	}
	return false
}

// WithDetail attaches a key/value pair of structured context
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates an error with the given code and message
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with a formatted message
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with a code and message. A nil cause yields an error
// without a cause, never a nil *Error.
func Wrap(cause error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// Wrapf wraps cause with a code and formatted message
func Wrapf(cause error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// GetCode extracts the code of the outermost *Error in the chain, or ""
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code anywhere in its chain
func IsCode(err error, code Code) bool {
	return errors.Is(err, code)
}

// Is re-exports errors.Is so callers can import a single errors package
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}
