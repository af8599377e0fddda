package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aquilhq/actionlog/cmd/actionlogctl/cmdutil"
	"github.com/aquilhq/actionlog/internal/cli/output"
	"github.com/aquilhq/actionlog/pkg/apiclient"
	"github.com/aquilhq/actionlog/pkg/models"
)

var (
	logsLimit   int
	logsSession string
	logsSince   string
)

var logsCmd = &cobra.Command{
	Use:   "logs [id]",
	Short: "Browse the unified log",
	Long: `List recent log entries, or fetch a single entry by id.

Examples:
  # Last 50 entries
  actionlogctl logs

  # A specific session's timeline
  actionlogctl logs --session sess-42

  # Entries since a timestamp
  actionlogctl logs --since "2026-08-25T00:00:00Z"

  # One entry, full detail
  actionlogctl logs log-1a2b3c -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 0, "Maximum entries to return (default: server default)")
	logsCmd.Flags().StringVar(&logsSession, "session", "", "Filter by session id")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Only entries after this RFC3339 timestamp")
}

func runLogs(cmd *cobra.Command, args []string) error {
	client := cmdutil.GetClient()

	if len(args) == 1 {
		entry, err := client.GetLog(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return cmdutil.PrintResource(os.Stdout, entry, envelopeDetail(entry))
	}

	params := apiclient.ListParams{
		Limit:     logsLimit,
		SessionID: logsSession,
	}
	if logsSince != "" {
		since, err := time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
		params.Since = since
	}

	list, err := client.ListLogs(cmd.Context(), params)
	if err != nil {
		return err
	}

	return cmdutil.PrintOutput(os.Stdout, list, len(list.Items) == 0, "No log entries found.", envelopeTable(list.Items))
}

// envelopeTable renders a log listing with one row per entry.
func envelopeTable(items []*models.Envelope) *output.TableData {
	table := output.NewTableData("ID", "TIMESTAMP", "OPERATION", "LEVEL", "SESSION", "TAGS")
	for _, e := range items {
		table.AddRow(
			e.ID,
			models.FormatTimestamp(e.Timestamp),
			e.OperationID,
			e.Level,
			e.SessionID,
			strings.Join(e.Tags, ","),
		)
	}
	return table
}

// envelopeDetail renders a single entry as field/value rows.
func envelopeDetail(e *models.Envelope) *output.TableData {
	table := output.NewTableData("FIELD", "VALUE")
	table.AddRow("ID", e.ID)
	table.AddRow("Timestamp", models.FormatTimestamp(e.Timestamp))
	table.AddRow("Operation", e.OperationID)
	table.AddRow("Kind", e.Kind)
	table.AddRow("Level", e.Level)
	table.AddRow("Session", e.SessionID)
	table.AddRow("Who", e.Who)
	table.AddRow("Tags", strings.Join(e.Tags, ","))
	table.AddRow("Stores", strings.Join(e.Stores, ","))
	if len(e.Payload) > 0 {
		table.AddRow("Payload", string(e.Payload))
	}
	if e.Backfilled {
		backfilledAt := ""
		if e.BackfilledAt != nil {
			backfilledAt = models.FormatTimestamp(*e.BackfilledAt)
		}
		table.AddRow("Backfilled", "true "+backfilledAt)
	}
	return table
}
