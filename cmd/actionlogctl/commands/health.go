package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aquilhq/actionlog/cmd/actionlogctl/cmdutil"
	"github.com/aquilhq/actionlog/internal/cli/output"
	"github.com/aquilhq/actionlog/internal/cli/timeutil"
)

var healthDeep bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show server health",
	Long: `Check the server's liveness and readiness probes.

Readiness reflects the relational binding, open circuit breakers, and the
recent write error rate. Use --stores for a deep per-store probe.

Examples:
  # Liveness + readiness
  actionlogctl health

  # Deep per-store check
  actionlogctl health --stores`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthDeep, "stores", false, "Run the deep per-store health check")
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := cmdutil.GetClient()

	if healthDeep {
		report, err := client.Stores(cmd.Context())
		if err != nil {
			return err
		}

		table := output.NewTableData("STORE", "BOUND", "HEALTHY", "LATENCY", "BREAKER", "ERROR")
		for store, check := range report.Stores {
			breakerState := "closed"
			if check.BreakerOpen {
				breakerState = "open"
			}
			table.AddRow(
				string(store),
				fmt.Sprintf("%t", check.Bound),
				fmt.Sprintf("%t", check.Healthy),
				fmt.Sprintf("%dms", check.LatencyMS),
				breakerState,
				check.Error,
			)
		}
		return cmdutil.PrintResource(os.Stdout, report, table)
	}

	live, err := client.Live(cmd.Context())
	if err != nil {
		return err
	}
	ready, err := client.Ready(cmd.Context())
	if err != nil {
		return err
	}

	combined := struct {
		Status       string   `json:"status" yaml:"status"`
		Version      string   `json:"version" yaml:"version"`
		Ready        bool     `json:"ready" yaml:"ready"`
		RecentErrors int      `json:"recent_errors" yaml:"recent_errors"`
		ErrorRate    float64  `json:"error_rate" yaml:"error_rate"`
		Reasons      []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	}{
		Status:       live.Status,
		Version:      live.Version,
		Ready:        ready.Ready,
		RecentErrors: ready.RecentErrors,
		ErrorRate:    ready.ErrorRate,
		Reasons:      ready.Reasons,
	}

	table := output.NewTableData("FIELD", "VALUE")
	table.AddRow("Status", live.Status)
	table.AddRow("Checked", timeutil.FormatTime(live.Timestamp))
	table.AddRow("Version", live.Version)
	table.AddRow("Ready", fmt.Sprintf("%t", ready.Ready))
	table.AddRow("Recent errors", fmt.Sprintf("%d", ready.RecentErrors))
	table.AddRow("Error rate", fmt.Sprintf("%.2f", ready.ErrorRate))
	for store, state := range ready.Stores {
		table.AddRow(fmt.Sprintf("Store %s", store), state)
	}
	if len(ready.Reasons) > 0 {
		table.AddRow("Reasons", strings.Join(ready.Reasons, "; "))
	}

	return cmdutil.PrintResource(os.Stdout, combined, table)
}
