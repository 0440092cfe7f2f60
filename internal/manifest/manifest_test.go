package manifest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	nerrors "github.com/nasti-scaffold/nasti/internal/errors"
	"github.com/nasti-scaffold/nasti/internal/exec"
	"github.com/nasti-scaffold/nasti/internal/prompt"
)

const dir = "/template"

const fullManifest = `greeting: Welcome to the test template
hooks:
  before_script: before.sh
  after_script: after.sh
  auto_cleanup: true
globals:
  - name: app_name
    prompt: Application name
    help: Human readable name
  - name: site
    prompt: Site URL
    validation:
      kind: url
mutations:
  - name: slug
    prompt: Project slug
    replace: bogus_slug
    default: "{{app_name | kebab}}"
    validation:
      kind: slug
    files:
      - README.md
      - src/main.txt
  - name: url
    prompt: Homepage
    replace: SITE_URL
    default: "{{site}}"
    files:
      - README.md
`

type fixture struct {
	fs      afero.Fs
	runner  *exec.FakeRunner
	printer *prompt.RecordingPrinter
}

func newFixture(t *testing.T, manifest string, files map[string]string) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	if manifest != "" {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, FileName), []byte(manifest), 0o644))
	}
	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, fs.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, afero.WriteFile(fs, full, []byte(content), 0o644))
	}
	return &fixture{fs: fs, runner: exec.NewFakeRunner(), printer: &prompt.RecordingPrinter{}}
}

func (f *fixture) manifest(reader prompt.LineReader, opts ...prompt.CollectorOption) *Manifest {
	c := prompt.NewCollector(reader, f.printer, opts...)
	return New(dir, WithFs(f.fs), WithCommandRunner(f.runner), WithCollector(c))
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := afero.ReadFile(f.fs, filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func fullFiles() map[string]string {
	return map[string]string{
		"README.md":    "# bogus_slug\nSee SITE_URL\n",
		"src/main.txt": "package bogus_slug",
		"before.sh":    "true",
		"after.sh":     "true",
	}
}

func TestLoad(t *testing.T) {
	f := newFixture(t, fullManifest, fullFiles())
	m := f.manifest(&prompt.RepeatReader{})

	require.NoError(t, m.Load())
	assert.Equal(t, "Welcome to the test template", m.Greeting())
	assert.True(t, m.Hooks().HasBefore())
	assert.True(t, m.Hooks().HasAfter())
	assert.True(t, m.Hooks().AutoCleanup())
	assert.Equal(t, filepath.Join(dir, FileName), m.Path())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		code     nerrors.Code
	}{
		{"missing file", "", nerrors.EUnableToOpenFile},
		{"invalid yaml", "mutations: [unclosed", nerrors.EInvalidYaml},
		{"wrong shape", "mutations: just a string", nerrors.EInvalidYaml},
		{"unknown hook key", "hooks:\n  before: x.sh\nmutations: []\n", nerrors.EUnknownKeys},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.manifest, nil)
			assert.ErrorIs(t, f.manifest(&prompt.RepeatReader{}).Load(), tt.code)
		})
	}
}

func TestLoadWithoutHooks(t *testing.T) {
	f := newFixture(t, "mutations: []\nhooks:\n", nil)
	m := f.manifest(&prompt.RepeatReader{})
	require.NoError(t, m.Load())
	assert.False(t, m.Hooks().HasBefore())
	assert.False(t, m.Hooks().HasAfter())
}

func TestValidate(t *testing.T) {
	f := newFixture(t, fullManifest, fullFiles())
	assert.NoError(t, f.manifest(&prompt.RepeatReader{}).Validate())
}

func TestValidateErrors(t *testing.T) {
	files := map[string]string{"a.txt": "FOO", "plain.txt": "nothing"}

	tests := []struct {
		name     string
		manifest string
		code     nerrors.Code
	}{
		{"missing manifest", "", nerrors.EUnableToOpenFile},
		{"no mutations key", "greeting: hi\n", nerrors.ENoMutations},
		{"empty mutations", "mutations: []\n", nerrors.ENoMutations},
		{
			"unknown mutation key",
			"mutations:\n  - name: foo\n    prompt: Foo\n    replce: FOO\n    files: [a.txt]\n",
			nerrors.EUnknownKeys,
		},
		{
			"unknown global key",
			"globals:\n  - name: g\n    prompt: G\n    default: x\nmutations:\n  - name: foo\n    prompt: Foo\n    replace: FOO\n    files: [a.txt]\n",
			nerrors.EUnknownKeys,
		},
		{
			"missing required key",
			"mutations:\n  - name: foo\n    replace: FOO\n    files: [a.txt]\n",
			nerrors.ERequiredKeysMissing,
		},
		{
			"empty files",
			"mutations:\n  - name: foo\n    prompt: Foo\n    replace: FOO\n    files: []\n",
			nerrors.EEmptyFiles,
		},
		{
			"missing file",
			"mutations:\n  - name: foo\n    prompt: Foo\n    replace: FOO\n    files: [nope.txt]\n",
			nerrors.EFileDoesNotExist,
		},
		{
			"token absent",
			"mutations:\n  - name: foo\n    prompt: Foo\n    replace: FOO\n    files: [plain.txt]\n",
			nerrors.EFileDoesNotContainReplacementString,
		},
		{
			"default references undeclared global",
			"mutations:\n  - name: foo\n    prompt: Foo\n    replace: FOO\n    default: \"{{nobody}}\"\n    files: [a.txt]\n",
			nerrors.EDefaultTemplateInvalid,
		},
		{
			"invalid validation",
			"mutations:\n  - name: foo\n    prompt: Foo\n    replace: FOO\n    validation: {regex: x, kind: slug}\n    files: [a.txt]\n",
			nerrors.EConfigInvalid,
		},
		{
			"entry is not a mapping",
			"mutations:\n  - just a string\n",
			nerrors.EInvalidYaml,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.manifest, files)
			assert.ErrorIs(t, f.manifest(&prompt.RepeatReader{}).Validate(), tt.code)
		})
	}
}

func TestValidateSuggestsKnownKey(t *testing.T) {
	f := newFixture(t, "mutations:\n  - name: foo\n    prompt: Foo\n    replce: FOO\n    files: [a.txt]\n", nil)

	err := f.manifest(&prompt.RepeatReader{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `replce (did you mean "replace"?)`)
	assert.Contains(t, err.Error(), `mutation "foo"`)
}

func TestRunInteractive(t *testing.T) {
	f := newFixture(t, fullManifest, fullFiles())
	reader := prompt.NewScriptedReader("Test App", "https://example.com", "", "")
	m := f.manifest(reader)

	report, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "# test-app\nSee https://example.com\n", f.read(t, "README.md"))
	assert.Equal(t, "package test-app", f.read(t, "src/main.txt"))
	assert.Equal(t, []string{"Application name", "Site URL", "Project slug", "Homepage"}, reader.Prompts)

	assert.True(t, report.BeforeHook)
	assert.True(t, report.AfterHook)
	require.Len(t, report.Mutations, 2)
	assert.Equal(t, 2, report.Mutations[0].Total())
	assert.Equal(t, "Test App", report.Globals["app_name"])

	assert.Equal(t, []string{"sh before.sh", "sh after.sh"}, f.runner.Lines())
	exists, _ := afero.Exists(f.fs, filepath.Join(dir, "before.sh"))
	assert.False(t, exists, "auto cleanup removes hook scripts")

	assert.Contains(t, f.printer.Messages, "Welcome to the test template")
	assert.Contains(t, f.printer.Joined(), "Default: test-app")

	value, err := m.GetGlobal("site")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", value)
	_, err = m.GetGlobal("nope")
	assert.ErrorIs(t, err, nerrors.EGlobalNotFound)
}

func TestRunLogsHooksAndGlobals(t *testing.T) {
	f := newFixture(t, fullManifest, fullFiles())
	core, logs := observer.New(zapcore.DebugLevel)
	c := prompt.NewCollector(prompt.NewScriptedReader("Test App", "https://example.com", "", ""), f.printer)
	m := New(dir, WithFs(f.fs), WithCommandRunner(f.runner), WithCollector(c), WithLogger(zap.New(core)))

	_, err := m.Run(context.Background())
	require.NoError(t, err)

	running := logs.FilterMessage("running manifest").All()
	require.Len(t, running, 1)
	fields := running[0].ContextMap()
	assert.Equal(t, true, fields["before_hook"])
	assert.Equal(t, true, fields["after_hook"])
	assert.Equal(t, true, fields["auto_cleanup"])

	collected := logs.FilterMessage("globals collected").All()
	require.Len(t, collected, 1)
	assert.Equal(t, []interface{}{"app_name", "site"}, collected[0].ContextMap()["names"])
}

func TestRunSilent(t *testing.T) {
	f := newFixture(t, fullManifest, fullFiles())
	reader := &prompt.RepeatReader{}
	m := f.manifest(reader, prompt.WithSilentValues(prompt.Values{
		"app_name": "Quiet App",
		"site":     "https://quiet.dev",
		"slug":     "quiet_slug",
	}))

	_, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, reader.Reads, "no interactive prompts in silent mode")
	assert.Empty(t, f.printer.Messages, "greeting is suppressed in silent mode")
	assert.Equal(t, "# quiet_slug\nSee https://quiet.dev\n", f.read(t, "README.md"))
}

func TestRunSilentMissingKey(t *testing.T) {
	f := newFixture(t, fullManifest, fullFiles())
	m := f.manifest(&prompt.RepeatReader{}, prompt.WithSilentValues(prompt.Values{"app_name": "Quiet App"}))

	_, err := m.Run(context.Background())
	assert.ErrorIs(t, err, nerrors.ESilentValueMissing)
	assert.Equal(t, "package bogus_slug", f.read(t, "src/main.txt"))
	assert.Equal(t, []string{"sh before.sh"}, f.runner.Lines(), "after hook does not run on failure")
}

func TestRunBeforeHookFailureStopsRun(t *testing.T) {
	f := newFixture(t, fullManifest, fullFiles())
	f.runner.Results["sh before.sh"] = exec.CmdResult{ExitCode: 2}
	reader := &prompt.RepeatReader{}

	_, err := f.manifest(reader).Run(context.Background())
	assert.ErrorIs(t, err, nerrors.EScriptExecutionFailed)
	assert.Zero(t, reader.Reads)
}

func TestRunRejectsInvalidConfigBeforeHooks(t *testing.T) {
	f := newFixture(t, "hooks:\n  before_script: before.sh\nmutations:\n  - name: foo\n", map[string]string{"before.sh": ""})

	_, err := f.manifest(&prompt.RepeatReader{}).Run(context.Background())
	assert.ErrorIs(t, err, nerrors.ERequiredKeysMissing)
	assert.Empty(t, f.runner.Calls)
}

func TestRunDefaultTemplateEndToEnd(t *testing.T) {
	manifest := `globals:
  - name: app_name
    prompt: App
mutations:
  - name: title
    prompt: Title
    replace: TITLE
    default: "{{app_name}}"
    files: [index.html]
`
	f := newFixture(t, manifest, map[string]string{"index.html": "<h1>TITLE</h1>"})

	_, err := f.manifest(prompt.NewScriptedReader("Test App", "")).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<h1>Test App</h1>", f.read(t, "index.html"))
}

func TestFindUnmentionedFiles(t *testing.T) {
	manifest := `mutations:
  - name: foo
    prompt: Foo
    replace: FOO
    files: [a.txt]
  - name: bar
    prompt: Bar
    replace: BAR
    files: [bar.txt]
  - name: broken
    replace: FOO
`
	f := newFixture(t, manifest, map[string]string{
		"a.txt":        "FOO",
		"b.txt":        "FOO",
		".hidden":      "FOO",
		"bar.txt":      "BAR",
		"nested/c.txt": "FOO and BAR",
	})

	report, err := f.manifest(&prompt.RepeatReader{}).FindUnmentionedFiles()
	require.NoError(t, err)
	assert.False(t, report.Empty())
	assert.Equal(t, []Finding{
		{Mutation: "foo", Files: []string{"b.txt", "nested/c.txt"}},
		{Mutation: "bar", Files: []string{"nested/c.txt"}},
	}, report.Findings)
	assert.Equal(t, "Mutation: foo\n  - b.txt\n  - nested/c.txt\nMutation: bar\n  - nested/c.txt\n", report.String())
}

func TestFindUnmentionedFilesEmpty(t *testing.T) {
	f := newFixture(t, "mutations:\n  - name: foo\n    prompt: Foo\n    replace: FOO\n    files: [a.txt]\n",
		map[string]string{"a.txt": "FOO", "b.txt": "clean"})

	report, err := f.manifest(&prompt.RepeatReader{}).FindUnmentionedFiles()
	require.NoError(t, err)
	assert.True(t, report.Empty())
	assert.Equal(t, "", report.String())
}

func TestFindUnmentionedFilesMissingManifest(t *testing.T) {
	f := newFixture(t, "", nil)
	_, err := f.manifest(&prompt.RepeatReader{}).FindUnmentionedFiles()
	assert.ErrorIs(t, err, nerrors.EUnableToOpenFile)
}
