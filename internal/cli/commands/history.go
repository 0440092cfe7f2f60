package commands

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nasti-scaffold/nasti/internal/cli/ui"
	"github.com/nasti-scaffold/nasti/internal/journal"
)

var historyLimit int

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scaffolding runs",
		Long: `List the most recent runs recorded in the journal, newest first,
with their outcome and the number of substitutions applied.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := app.cfg
	out := cmd.OutOrStdout()

	if cfg == nil || !cfg.Journal.Enabled {
		fmt.Fprint(out, ui.Info("The run journal is disabled (journal.enabled: false).", color.NoColor))
		return nil
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Recent(commandContext(cmd), historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprint(out, ui.Info("No runs recorded yet.", color.NoColor))
		return nil
	}

	renderRuns(cmd, runs)
	return nil
}

func renderRuns(cmd *cobra.Command, runs []journal.Run) {
	table := ui.NewTable(cmd.OutOrStdout(),
		[]string{"STARTED", "STATUS", "SOURCE", "DESTINATION", "FILES", "REPLACEMENTS"},
		&ui.TableOptions{NoColor: color.NoColor, MaxCellWidth: 48})
	for _, r := range runs {
		status := string(r.Status)
		if r.Error != "" {
			status += ": " + r.Error
		}
		table.AddRow(
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status,
			r.Source,
			r.Destination,
			strconv.Itoa(r.Substitutions),
			strconv.Itoa(r.Replacements),
		)
	}
	table.Render()
}
