package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aquilhq/actionlog/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the actionlog configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  actionlog config validate

  # Validate specific config file
  actionlog config validate --config /etc/actionlog/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string

	if !cfg.Admin.HasJWTSecret() {
		warnings = append(warnings, "Admin JWT secret not configured - admin endpoints will be open")
	}
	if !cfg.Stores.KV.Enabled {
		warnings = append(warnings, "KV store disabled - idempotency, rate limiting, and circuit breaking will fail open")
	}
	if cfg.Stores.Object.Enabled && cfg.Stores.Object.Bucket == "" {
		warnings = append(warnings, "Object store enabled without a bucket")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Database type:   %s\n", cfg.Database.Type)
	fmt.Printf("  API port:        %d\n", cfg.Server.Port)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)
	fmt.Printf("  GPT compat mode: %t\n", cfg.Compat.GPTMode)

	return nil
}
