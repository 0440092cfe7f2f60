package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nasti-scaffold/nasti/internal/cli/ui"
	"github.com/nasti-scaffold/nasti/internal/journal"
	"github.com/nasti-scaffold/nasti/internal/nasti"
	"github.com/nasti-scaffold/nasti/internal/prompt"
)

var (
	processOutput     string
	processGit        bool
	processSilent     map[string]string
	processSilentFile string
)

// helpText is printed when process is given no source, or "help"
const helpText = `Usage: nasti process SOURCE

SOURCE is either a git remote (git@host:org/repo.git, ssh://..., git://...,
or an http(s) URL ending in .git) or a path to a local template directory.

The template must contain a nasti.yaml at its root. Values can be supplied
without prompting through --silent key=value,... or --silent-file FILE.`

// cleanupNotice tells the operator what happens to a destination after a
// failed run
const cleanupNotice = "The partial destination was removed."

// NewProcessCommand creates the process command
func NewProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [source]",
		Short: "Create a project from a template",
		Long: `Copy a template to a new directory and apply its nasti.yaml.

Globals are collected first, then every mutation asks for its value and
rewrites its files. On failure the new directory is removed.

Examples:
  nasti process git@github.com:acme/service-template.git
  nasti process ./templates/cli --output ./my-cli --git
  nasti process ./templates/cli -o ./my-cli --silent app_name="My CLI",slug=my-cli
  nasti process ./templates/cli -o ./my-cli --silent-file answers.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runProcess,
	}

	cmd.Flags().StringVarP(&processOutput, "output", "o", "", "Destination directory (prompted for when omitted)")
	cmd.Flags().BoolVar(&processGit, "git", false, "Initialize a git repository with one commit in the destination")
	cmd.Flags().StringToStringVar(&processSilent, "silent", nil, "Run without prompts using key=value pairs")
	cmd.Flags().StringVar(&processSilentFile, "silent-file", "", "Run without prompts using a JSON or YAML file of values")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
	var source string
	if len(args) > 0 {
		source = args[0]
	}

	cfg := app.cfg
	logger := app.logger.With(zap.String("command", "process"))

	silent, err := silentValues(afero.NewOsFs(), processSilentFile, processSilent)
	if err != nil {
		return report(cmd, err, "")
	}

	out := cmd.OutOrStdout()
	opts := []nasti.Option{
		nasti.WithLogger(logger),
		nasti.WithPrinter(prompt.NewWriterPrinter(out, nil)),
		nasti.WithReader(lineReader(cmd)),
	}

	if cfg != nil && cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Warn("journal unavailable", zap.Error(err))
			fmt.Fprint(cmd.ErrOrStderr(), ui.Warning("Run journal unavailable, this run will not be recorded: "+err.Error(), nil, color.NoColor))
		} else {
			defer j.Close()
			opts = append(opts, nasti.WithRecorder(j))
		}
	}

	runOpts := nasti.Options{
		Source:   source,
		Output:   processOutput,
		GitInit:  processGit,
		HelpText: helpText,
		Silent:   silent,
	}
	if cfg != nil {
		runOpts.GitInit = runOpts.GitInit || cfg.Git.Init
		runOpts.CommitMessage = cfg.Git.CommitMessage
		runOpts.TmpDir = cfg.Source.TmpDir
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := nasti.New(opts...).Run(ctx, runOpts)
	if err != nil {
		return report(cmd, err, cleanupNotice)
	}
	if res.Help {
		return nil
	}

	printSummary(out, res)
	ui.WriteSuccess(out, fmt.Sprintf("Project ready in %s", res.Destination), color.NoColor)
	return nil
}

// silentValues merges the silent file with flag pairs; pairs win. Returns nil
// when neither is given, which keeps the run interactive.
func silentValues(fs afero.Fs, file string, pairs map[string]string) (prompt.Values, error) {
	if file == "" && len(pairs) == 0 {
		return nil, nil
	}

	values := prompt.Values{}
	if file != "" {
		fromFile, err := prompt.LoadValuesFile(fs, file)
		if err != nil {
			return nil, err
		}
		values = values.Merge(fromFile)
	}
	return values.Merge(prompt.ParsePairs(pairs)), nil
}

// lineReader uses an interactive prompt on a terminal stdin and a plain line
// reader for anything else, including input set on the command.
func lineReader(cmd *cobra.Command) prompt.LineReader {
	in := cmd.InOrStdin()
	if in == os.Stdin {
		return prompt.NewStdinReader()
	}
	return prompt.NewStreamReader(in, cmd.ErrOrStderr())
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printSummary(w io.Writer, res *nasti.Result) {
	if res.Report == nil || len(res.Report.Mutations) == 0 {
		return
	}
	section := ui.NewSection(w, "Applied mutations", color.NoColor)
	for _, mut := range res.Report.Mutations {
		section.AddLine(fmt.Sprintf("%s: %d files, %d replacements", mut.Name, len(mut.Files), mut.Total()))
	}
	section.Render()
}
