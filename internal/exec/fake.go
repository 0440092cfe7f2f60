package exec

import (
	"context"
	"fmt"
	"strings"
)

// Call is one invocation recorded by FakeRunner.
type Call struct {
	Name string
	Args []string
	Dir  string
}

// Line returns the call as a command line.
func (c Call) Line() string {
	return CommandLine(c.Name, c.Args...)
}

// FakeRunner records calls and returns canned results keyed by command line
// prefix. Unmatched commands succeed with exit code 0.
type FakeRunner struct {
	Calls   []Call
	Results map[string]CmdResult
	Errors  map[string]error
	// Missing lists executables LookPath must not find.
	Missing map[string]bool
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Results: map[string]CmdResult{},
		Errors:  map[string]error{},
		Missing: map[string]bool{},
	}
}

// Run implements CommandRunner.
func (f *FakeRunner) Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error) {
	call := Call{Name: name, Args: append([]string(nil), args...), Dir: opts.Dir}
	f.Calls = append(f.Calls, call)

	if err := ctx.Err(); err != nil {
		return CmdResult{}, err
	}

	line := call.Line()
	for prefix, err := range f.Errors {
		if strings.HasPrefix(line, prefix) {
			return CmdResult{}, err
		}
	}
	for prefix, res := range f.Results {
		if strings.HasPrefix(line, prefix) {
			return res, nil
		}
	}
	return CmdResult{}, nil
}

// LookPath implements CommandRunner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	if f.Missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

// Lines returns every recorded call as a command line.
func (f *FakeRunner) Lines() []string {
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = c.Line()
	}
	return lines
}
