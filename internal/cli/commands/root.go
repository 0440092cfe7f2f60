package commands

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nasti-scaffold/nasti/internal/cli/config"
	"github.com/nasti-scaffold/nasti/internal/cli/ui"
	"github.com/nasti-scaffold/nasti/internal/logging"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	verbosity  int
	configPath string
	noColor    bool
)

// app holds what PersistentPreRunE resolved for the running command
var app = struct {
	cfg    *config.Config
	logger *zap.Logger
}{
	logger: logging.Nop(),
}

// reportedError marks an error whose message was already shown to the operator
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nasti",
		Short: "Scaffold projects from templates",
		Long: color.CyanString(`nasti - manifest driven project scaffolding

nasti copies a template (a git repository or a local directory) to a new
directory, then asks for the values declared in the template's nasti.yaml
and substitutes them into the copied files.

Commands:
  process   create a project from a template
  validate  check a template's nasti.yaml
  find      list files containing a token their mutation does not list`),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/nasti/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Add subcommands
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewProcessCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewFindCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// setup loads configuration and builds the logger shared by every command
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), nil, noColor || color.NoColor))
		return &reportedError{err: err}
	}
	if noColor || !cfg.Color {
		color.NoColor = true
	}

	logger, err := logging.New(logging.Options{
		Verbosity: verbosity,
		Level:     cfg.Log.Level,
		Output:    cmd.ErrOrStderr(),
		NoColor:   color.NoColor,
	})
	if err != nil {
		return err
	}

	app.cfg = cfg
	app.logger = logger
	return nil
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the nasti version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			table := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			table.AddRow("nasti version", Version)
			table.AddRow("Git commit", GitCommit)
			table.AddRow("Build date", BuildDate)
			table.AddRow("Go version", goVer)
			table.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()
	_ = app.logger.Sync()
	if err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			errorColor := color.New(color.FgRed, color.Bold)
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}

// report prints err in the standard format and marks it as shown.
// consequence is what the command did about a runtime failure, if anything.
func report(cmd *cobra.Command, err error, consequence string) error {
	fmt.Fprint(cmd.ErrOrStderr(), ui.FromError(err, consequence, color.NoColor))
	return &reportedError{err: err}
}
