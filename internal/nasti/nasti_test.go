package nasti

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
	"github.com/nasti-scaffold/nasti/internal/exec"
	"github.com/nasti-scaffold/nasti/internal/journal"
	"github.com/nasti-scaffold/nasti/internal/prompt"
)

const templateDir = "/templates/app"

const templateManifest = `greeting: Hello from the app template
globals:
  - name: app_name
    prompt: Application name
mutations:
  - name: slug
    prompt: Project slug
    replace: bogus_slug
    default: "{{app_name | kebab}}"
    validation:
      kind: slug
    files:
      - README.md
      - cmd/main.txt
`

type fakeRecorder struct {
	started  []string
	subs     []string
	finished map[string]error
	startErr error
}

func (r *fakeRecorder) StartRun(_ context.Context, source, destination string) (string, error) {
	if r.startErr != nil {
		return "", r.startErr
	}
	r.started = append(r.started, source+" -> "+destination)
	return "run-1", nil
}

func (r *fakeRecorder) RecordSubstitution(_ context.Context, runID, mutation, file string, n int) error {
	r.subs = append(r.subs, mutation+":"+file)
	return nil
}

func (r *fakeRecorder) FinishRun(_ context.Context, runID string, runErr error) error {
	if r.finished == nil {
		r.finished = map[string]error{}
	}
	r.finished[runID] = runErr
	return nil
}

func templateFs(t *testing.T, manifest string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"nasti.yaml":   manifest,
		"README.md":    "# bogus_slug\n",
		"cmd/main.txt": "package bogus_slug",
		".git/HEAD":    "ref: refs/heads/main",
	}
	for name, content := range files {
		full := filepath.Join(templateDir, name)
		require.NoError(t, fs.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, afero.WriteFile(fs, full, []byte(content), 0o644))
	}
	return fs
}

func read(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestRunInteractive(t *testing.T) {
	fs := templateFs(t, templateManifest)
	runner := exec.NewFakeRunner()
	printer := &prompt.RecordingPrinter{}
	reader := prompt.NewScriptedReader("My App", "")
	recorder := &fakeRecorder{}

	p := New(WithFs(fs), WithCommandRunner(runner), WithReader(reader), WithPrinter(printer), WithRecorder(recorder))
	res, err := p.Run(context.Background(), Options{Source: templateDir, Output: "/work/app", GitInit: true})
	require.NoError(t, err)

	assert.False(t, res.Help)
	assert.Equal(t, "/work/app", res.Destination)
	require.NotNil(t, res.Report)
	assert.Equal(t, "My App", res.Report.Globals["app_name"])

	assert.Equal(t, "# my-app\n", read(t, fs, "/work/app/README.md"))
	assert.Equal(t, "package my-app", read(t, fs, "/work/app/cmd/main.txt"))
	exists, _ := afero.Exists(fs, "/work/app/nasti.yaml")
	assert.False(t, exists)
	exists, _ = afero.Exists(fs, "/work/app/.git/HEAD")
	assert.False(t, exists)

	assert.Equal(t, "# bogus_slug\n", read(t, fs, filepath.Join(templateDir, "README.md")), "the template is left untouched")

	assert.Equal(t, []string{"git init", "git add -A", "git commit -m 'Initial commit'"}, runner.Lines())
	assert.Contains(t, printer.Messages, "Hello from the app template")
	assert.Contains(t, printer.Messages, "Created project in /work/app")

	assert.Equal(t, []string{templateDir + " -> /work/app"}, recorder.started)
	assert.Equal(t, []string{"slug:README.md", "slug:cmd/main.txt"}, recorder.subs)
	assert.Contains(t, recorder.finished, "run-1")
	assert.NoError(t, recorder.finished["run-1"])
}

func TestRunSilent(t *testing.T) {
	fs := templateFs(t, templateManifest)
	printer := &prompt.RecordingPrinter{}

	p := New(WithFs(fs), WithCommandRunner(exec.NewFakeRunner()), WithReader(&prompt.RepeatReader{}), WithPrinter(printer))
	res, err := p.Run(context.Background(), Options{
		Source: templateDir,
		Silent: prompt.Values{"destination": "/work/silent", "app_name": "Quiet", "slug": "quiet-app"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/work/silent", res.Destination)
	assert.Equal(t, "# quiet-app\n", read(t, fs, "/work/silent/README.md"))
	assert.NotContains(t, printer.Messages, "Hello from the app template")
}

func TestRunHelp(t *testing.T) {
	printer := &prompt.RecordingPrinter{}
	p := New(WithFs(afero.NewMemMapFs()), WithPrinter(printer))

	res, err := p.Run(context.Background(), Options{HelpText: "usage: nasti process SOURCE"})
	require.NoError(t, err)
	assert.True(t, res.Help)
	assert.Equal(t, []string{"usage: nasti process SOURCE"}, printer.Messages)
}

func TestRunRemovesDestinationOnFailure(t *testing.T) {
	fs := templateFs(t, templateManifest)
	recorder := &fakeRecorder{}
	reader := prompt.NewScriptedReader("My App", "Not A Slug", "still bad", "bad slug!")

	p := New(WithFs(fs), WithCommandRunner(exec.NewFakeRunner()), WithReader(reader),
		WithPrinter(&prompt.RecordingPrinter{}), WithRecorder(recorder))
	_, err := p.Run(context.Background(), Options{Source: templateDir, Output: "/work/app"})
	assert.ErrorIs(t, err, nerrors.ETooManyInputTries)

	exists, _ := afero.Exists(fs, "/work/app")
	assert.False(t, exists)
	assert.ErrorIs(t, recorder.finished["run-1"], nerrors.ETooManyInputTries)
}

func TestRunInvalidManifest(t *testing.T) {
	fs := templateFs(t, "mutations: []\n")
	p := New(WithFs(fs), WithCommandRunner(exec.NewFakeRunner()), WithPrinter(&prompt.RecordingPrinter{}))

	_, err := p.Run(context.Background(), Options{Source: templateDir, Output: "/work/app"})
	assert.ErrorIs(t, err, nerrors.ENoMutations)
	exists, _ := afero.Exists(fs, "/work/app")
	assert.False(t, exists)
}

func TestRunMissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := New(WithFs(fs), WithPrinter(&prompt.RecordingPrinter{}))

	_, err := p.Run(context.Background(), Options{Source: "/nowhere", Output: "/work/app"})
	assert.ErrorIs(t, err, nerrors.ESourceNotDir)
	exists, _ := afero.Exists(fs, "/work/app")
	assert.False(t, exists, "no destination is created before the source is acquired")
}

func TestRunGitSourceIsCleanedUp(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := exec.NewFakeRunner()
	runner.Results["git clone"] = exec.CmdResult{ExitCode: 128, Stderr: "fatal: not found"}

	p := New(WithFs(fs), WithCommandRunner(runner), WithPrinter(&prompt.RecordingPrinter{}))
	_, err := p.Run(context.Background(), Options{Source: "git@example.com:acme/app.git", TmpDir: "/tmp"})
	assert.ErrorIs(t, err, nerrors.ECloneFailed)

	entries, err := afero.ReadDir(fs, "/tmp/nasti")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunCanceled(t *testing.T) {
	fs := templateFs(t, templateManifest)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(WithFs(fs), WithCommandRunner(exec.NewFakeRunner()), WithPrinter(&prompt.RecordingPrinter{}))
	_, err := p.Run(ctx, Options{Source: templateDir, Output: "/work/app"})
	assert.ErrorIs(t, err, context.Canceled)
	exists, _ := afero.Exists(fs, "/work/app")
	assert.False(t, exists)
}

func TestRunJournalFailureIsNotFatal(t *testing.T) {
	fs := templateFs(t, templateManifest)
	recorder := &fakeRecorder{startErr: errors.New("database is locked")}

	p := New(WithFs(fs), WithCommandRunner(exec.NewFakeRunner()), WithReader(prompt.NewScriptedReader("App", "")),
		WithPrinter(&prompt.RecordingPrinter{}), WithRecorder(recorder))
	_, err := p.Run(context.Background(), Options{Source: templateDir, Output: "/work/app"})
	require.NoError(t, err)
	assert.Empty(t, recorder.subs)
}

func TestRunWithSqliteJournal(t *testing.T) {
	fs := templateFs(t, templateManifest)
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	p := New(WithFs(fs), WithCommandRunner(exec.NewFakeRunner()), WithReader(prompt.NewScriptedReader("App", "")),
		WithPrinter(&prompt.RecordingPrinter{}), WithRecorder(j))
	_, err = p.Run(context.Background(), Options{Source: templateDir, Output: "/work/app"})
	require.NoError(t, err)

	runs, err := j.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.StatusSucceeded, runs[0].Status)
	assert.Equal(t, 2, runs[0].Replacements)
}
