// Package commands implements the CLI commands for the actionlogctl client.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aquilhq/actionlog/cmd/actionlogctl/cmdutil"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "actionlogctl",
	Short: "Actionlog Control - Remote management client",
	Long: `actionlogctl is the command-line client for managing actionlog servers.

Use this tool to write actions, browse and search the unified log, trigger
reconciliation, and inspect server health through the REST API.

The target server is taken from --server, the ACTIONLOG_SERVER environment
variable, or http://localhost:8080. Admin commands need a bearer token from
--token or ACTIONLOG_TOKEN when the server has a JWT secret configured.

Use "actionlogctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Sync flags to cmdutil.Flags for subcommands
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Token, _ = cmd.Flags().GetString("token")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().String("server", "", "Server URL (default: $ACTIONLOG_SERVER or http://localhost:8080)")
	rootCmd.PersistentFlags().String("token", "", "Bearer token for admin endpoints (default: $ACTIONLOG_TOKEN)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(healthCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
