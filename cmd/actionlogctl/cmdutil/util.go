// Package cmdutil provides shared utilities for actionlogctl commands.
package cmdutil

import (
	"fmt"
	"io"
	"os"

	"github.com/aquilhq/actionlog/internal/cli/output"
	"github.com/aquilhq/actionlog/pkg/apiclient"
)

// Environment variables consulted when the matching flag is not set.
const (
	EnvServer = "ACTIONLOG_SERVER"
	EnvToken  = "ACTIONLOG_TOKEN"
)

// DefaultServerURL is used when neither the flag nor the environment names
// a server.
const DefaultServerURL = "http://localhost:8080"

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ServerURL string
	Token     string
	Output    string
	NoColor   bool
	Verbose   bool
}

// ServerURL resolves the target server from the flag, the environment, or
// the default, in that order.
func ServerURL() string {
	if Flags.ServerURL != "" {
		return Flags.ServerURL
	}
	if env := os.Getenv(EnvServer); env != "" {
		return env
	}
	return DefaultServerURL
}

// Token resolves the admin bearer token from the flag or the environment.
// Empty is fine: only the admin endpoints require one.
func Token() string {
	if Flags.Token != "" {
		return Flags.Token
	}
	return os.Getenv(EnvToken)
}

// GetClient returns an API client for the resolved server.
func GetClient() *apiclient.Client {
	client := apiclient.New(ServerURL())
	if tok := Token(); tok != "" {
		client = client.WithToken(tok)
	}
	return client
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// IsVerbose returns whether verbose output is enabled.
func IsVerbose() bool {
	return Flags.Verbose
}

// PrintOutput prints data in the specified format (JSON, YAML, or table).
// For table format, it displays emptyMsg if data is empty, otherwise uses
// the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintResource prints a resource in the specified format. For table format,
// it uses the provided tableRenderer.
func PrintResource(w io.Writer, data any, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	printer := output.NewPrinter(os.Stdout, format, !IsColorDisabled())
	printer.Success(msg)
}
