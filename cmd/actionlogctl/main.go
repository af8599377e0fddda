// Command actionlogctl is the remote management client for actionlog servers.
package main

import (
	"os"

	"github.com/aquilhq/actionlog/cmd/actionlogctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
