package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aquilhq/actionlog/cmd/actionlogctl/cmdutil"
	"github.com/aquilhq/actionlog/internal/cli/output"
	"github.com/aquilhq/actionlog/pkg/apiclient"
)

var (
	writeLevel   string
	writeWho     string
	writeSession string
	writeTags    []string
	writePayload string
	writeIdemKey string
)

var writeCmd = &cobra.Command{
	Use:   "write <operation>",
	Short: "Write an action to the unified log",
	Long: `Write a single action through the server's write pipeline.

The payload may be inline JSON or @file to read from a file. Passing the
same --idempotency-key twice returns the original result instead of
creating a duplicate.

Examples:
  # Minimal write
  actionlogctl write trustCheckIn

  # Full write with payload
  actionlogctl write addJournalEntry \
    --session sess-42 --who assistant \
    --payload '{"text":"met with the team"}'

  # Payload from file, with replay protection
  actionlogctl write addJournalEntry --payload @entry.json --idempotency-key entry-2026-08-25`,
	Args: cobra.ExactArgs(1),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVar(&writeLevel, "level", "", "Level (info|error)")
	writeCmd.Flags().StringVar(&writeWho, "who", "", "Acting identity")
	writeCmd.Flags().StringVar(&writeSession, "session", "", "Session id")
	writeCmd.Flags().StringSliceVar(&writeTags, "tags", nil, "Tags (comma-separated)")
	writeCmd.Flags().StringVar(&writePayload, "payload", "", "Payload JSON (inline or @file)")
	writeCmd.Flags().StringVar(&writeIdemKey, "idempotency-key", "", "Idempotency key for replay protection")
}

func runWrite(cmd *cobra.Command, args []string) error {
	payload, err := resolvePayload(writePayload)
	if err != nil {
		return err
	}

	req := &apiclient.ActionRequest{
		OperationID: args[0],
		Level:       writeLevel,
		Who:         writeWho,
		SessionID:   writeSession,
		Tags:        writeTags,
		Payload:     payload,
	}

	result, err := cmdutil.GetClient().WriteAction(cmd.Context(), req, writeIdemKey)
	if err != nil {
		return err
	}

	table := output.NewTableData("STORE", "OUTCOME")
	for store, outcome := range result.StoreResults {
		table.AddRow(string(store), string(outcome))
	}

	if err := cmdutil.PrintResource(os.Stdout, result, table); err != nil {
		return err
	}

	msg := fmt.Sprintf("Action written: %s (%s)", result.LogID, result.Status)
	if result.IdempotentHit {
		msg = fmt.Sprintf("Idempotent replay: %s (original result returned)", result.LogID)
	}
	cmdutil.PrintSuccess(msg)
	return nil
}

// resolvePayload accepts inline JSON or @file and validates the JSON.
func resolvePayload(arg string) (json.RawMessage, error) {
	if arg == "" {
		return nil, nil
	}

	data := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		var err error
		data, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}
