package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aquilhq/actionlog/cmd/actionlogctl/cmdutil"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the log",
	Long: `Run a semantic retrieval query against the vector index.

Examples:
  # Find related entries
  actionlogctl search "trust check-in with the team"

  # Limit result count
  actionlogctl search "journal" -n 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results to return (default: server default)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	list, err := cmdutil.GetClient().Search(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return err
	}

	return cmdutil.PrintOutput(os.Stdout, list, len(list.Items) == 0, "No matching entries.", envelopeTable(list.Items))
}
