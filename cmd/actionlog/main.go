// Command actionlog runs the unified action logging server.
package main

import (
	"os"

	"github.com/aquilhq/actionlog/cmd/actionlog/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
