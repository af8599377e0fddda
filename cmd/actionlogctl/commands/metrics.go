package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aquilhq/actionlog/cmd/actionlogctl/cmdutil"
	"github.com/aquilhq/actionlog/internal/cli/output"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show the server's counter snapshot",
	Long: `Fetch the merged counter snapshot from the admin endpoint.

Examples:
  # Table of all counters
  actionlogctl metrics

  # Raw JSON for scripting
  actionlogctl metrics -o json`,
	RunE: runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	snap, err := cmdutil.GetClient().Metrics(cmd.Context())
	if err != nil {
		return err
	}

	names := make([]string, 0, len(snap.Counters))
	for name := range snap.Counters {
		names = append(names, name)
	}
	sort.Strings(names)

	table := output.NewTableData("COUNTER", "VALUE")
	for _, name := range names {
		table.AddRow(name, fmt.Sprintf("%d", snap.Counters[name]))
	}

	return cmdutil.PrintOutput(os.Stdout, snap, len(snap.Counters) == 0, "No counters recorded.", table)
}
