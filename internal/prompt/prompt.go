// Package prompt provides the input and output capabilities used while
// collecting globals and mutation values, so the manifest engine never talks
// to the console directly.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
)

// LineReader reads one line of operator input for a prompt
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Printer displays a message to the operator
type Printer interface {
	Println(msg string)
}

// SurveyReader reads input through an interactive survey prompt
type SurveyReader struct {
	opts []survey.AskOpt
}

// NewSurveyReader creates a survey-backed reader
func NewSurveyReader(opts ...survey.AskOpt) *SurveyReader {
	return &SurveyReader{opts: opts}
}

// ReadLine implements LineReader
func (r *SurveyReader) ReadLine(prompt string) (string, error) {
	var answer string
	q := &survey.Input{Message: prompt + ":"}
	if err := survey.AskOne(q, &answer, r.opts...); err != nil {
		if err == terminal.InterruptErr {
			return "", nerrors.Wrap(err, nerrors.EInputFailed, "input interrupted")
		}
		return "", nerrors.Wrap(err, nerrors.EInputFailed, "failed to read input")
	}
	return answer, nil
}

// StreamReader reads newline-terminated answers from a plain stream.
// Used when stdin is not a terminal.
type StreamReader struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStreamReader creates a reader over in, echoing prompts to out
func NewStreamReader(in io.Reader, out io.Writer) *StreamReader {
	return &StreamReader{in: bufio.NewReader(in), out: out}
}

// ReadLine implements LineReader
func (r *StreamReader) ReadLine(prompt string) (string, error) {
	if r.out != nil {
		fmt.Fprintf(r.out, "%s: ", prompt)
	}
	line, err := r.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", nerrors.Wrap(err, nerrors.EInputFailed, "failed to read input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewStdinReader picks a survey reader for terminals and a stream reader otherwise
func NewStdinReader() LineReader {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return NewSurveyReader()
	}
	return NewStreamReader(os.Stdin, os.Stderr)
}

// ScriptedReader replays fixed answers and records the prompts it was shown
type ScriptedReader struct {
	Answers []string
	Prompts []string
}

// NewScriptedReader creates a reader that returns answers in order
func NewScriptedReader(answers ...string) *ScriptedReader {
	return &ScriptedReader{Answers: answers}
}

// ReadLine implements LineReader. Returns an error once answers run out.
func (r *ScriptedReader) ReadLine(prompt string) (string, error) {
	r.Prompts = append(r.Prompts, prompt)
	if len(r.Answers) == 0 {
		return "", nerrors.Wrap(io.EOF, nerrors.EInputFailed, "no scripted answer left")
	}
	answer := r.Answers[0]
	r.Answers = r.Answers[1:]
	return answer, nil
}

// RepeatReader returns the same answer forever
type RepeatReader struct {
	Answer string
	Reads  int
}

// ReadLine implements LineReader
func (r *RepeatReader) ReadLine(prompt string) (string, error) {
	r.Reads++
	return r.Answer, nil
}

// WriterPrinter prints messages to an io.Writer
type WriterPrinter struct {
	w     io.Writer
	color *color.Color
}

// NewWriterPrinter creates a printer over w. A nil c prints uncolored.
func NewWriterPrinter(w io.Writer, c *color.Color) *WriterPrinter {
	return &WriterPrinter{w: w, color: c}
}

// Println implements Printer
func (p *WriterPrinter) Println(msg string) {
	if p.color != nil {
		p.color.Fprintln(p.w, msg)
		return
	}
	fmt.Fprintln(p.w, msg)
}

// RecordingPrinter keeps every printed message
type RecordingPrinter struct {
	Messages []string
}

// Println implements Printer
func (p *RecordingPrinter) Println(msg string) {
	p.Messages = append(p.Messages, msg)
}

// Joined returns all messages joined by newlines
func (p *RecordingPrinter) Joined() string {
	return strings.Join(p.Messages, "\n")
}
