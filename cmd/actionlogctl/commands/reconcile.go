package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aquilhq/actionlog/cmd/actionlogctl/cmdutil"
	"github.com/aquilhq/actionlog/internal/cli/output"
	"github.com/aquilhq/actionlog/internal/cli/prompt"
	"github.com/aquilhq/actionlog/pkg/apiclient"
)

var (
	reconcileWindow  int
	reconcileExecute bool
	reconcileYes     bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check cross-store consistency",
	Long: `Trigger a reconciliation pass on the server (admin endpoint).

By default the pass is a dry run: it reports which secondary-store copies
are missing without writing anything. Use --execute to backfill the missing
copies from the relational ground truth.

Examples:
  # Dry run over the last 24 hours
  actionlogctl reconcile

  # Narrower window
  actionlogctl reconcile --window 6

  # Backfill missing copies (prompts for confirmation)
  actionlogctl reconcile --execute

  # Backfill without prompting
  actionlogctl reconcile --execute --yes`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().IntVar(&reconcileWindow, "window", 0, "Lookback window in hours (default: server default)")
	reconcileCmd.Flags().BoolVar(&reconcileExecute, "execute", false, "Backfill missing copies instead of a dry run")
	reconcileCmd.Flags().BoolVarP(&reconcileYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if reconcileExecute && !reconcileYes {
		confirmed, err := prompt.Confirm("Backfill missing store copies on the server?", false)
		if err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("\nAborted.")
				return nil
			}
			return err
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}

	req := &apiclient.ReconcileRequest{WindowHours: reconcileWindow}
	if reconcileExecute {
		dryRun := false
		req.DryRun = &dryRun
	}

	summary, err := cmdutil.GetClient().Reconcile(cmd.Context(), req)
	if err != nil {
		return err
	}

	table := output.NewTableData("FIELD", "VALUE")
	table.AddRow("Consistency", summary.Consistency)
	table.AddRow("Analyzed", fmt.Sprintf("%d", summary.Analyzed))
	table.AddRow("Backfilled", fmt.Sprintf("%d", summary.Backfilled))
	table.AddRow("Failed", fmt.Sprintf("%d", summary.Failed))
	table.AddRow("Dry run", fmt.Sprintf("%t", summary.DryRun))
	table.AddRow("Window (hours)", fmt.Sprintf("%d", summary.WindowHours))
	for store, count := range summary.Missing {
		table.AddRow(fmt.Sprintf("Missing in %s", store), fmt.Sprintf("%d", count))
	}

	return cmdutil.PrintResource(os.Stdout, summary, table)
}
