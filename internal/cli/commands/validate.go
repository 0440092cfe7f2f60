package commands

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nasti-scaffold/nasti/internal/cli/ui"
	"github.com/nasti-scaffold/nasti/internal/manifest"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate a template's nasti.yaml",
		Long: `Check the nasti.yaml at the root of a template directory.

Every mutation must use known keys, list at least one existing file, and each
listed file must contain the mutation's replacement token. Defaults must render
against the declared globals.

Examples:
  nasti validate
  nasti validate ./templates/cli`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := templateDir(args)

	m := manifest.New(dir, manifest.WithLogger(app.logger.With(zap.String("command", "validate"))))
	if err := m.Validate(); err != nil {
		return report(cmd, err, "")
	}

	ui.WriteSuccess(cmd.OutOrStdout(), "Nastifile is valid.", color.NoColor)
	return nil
}

// NewFindCommand creates the find command
func NewFindCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find [dir]",
		Short: "List files containing a token their mutation does not list",
		Long: `Scan a template directory for files that contain a mutation's
replacement token but are missing from that mutation's files list.

Hidden files and directories and nasti.yaml itself are skipped. Nothing is
printed when every occurrence is accounted for.

Examples:
  nasti find
  nasti find ./templates/cli`,
		Args: cobra.MaximumNArgs(1),
		RunE: runFind,
	}

	return cmd
}

func runFind(cmd *cobra.Command, args []string) error {
	dir := templateDir(args)
	logger := app.logger.With(zap.String("command", "find"))

	m := manifest.New(dir, manifest.WithLogger(logger))
	rep, err := m.FindUnmentionedFiles()
	if err != nil {
		return report(cmd, err, "")
	}

	logger.Info("scan finished", zap.Int("mutations_with_findings", len(rep.Findings)))
	fmt.Fprint(cmd.OutOrStdout(), rep.String())
	return nil
}

func templateDir(args []string) string {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
