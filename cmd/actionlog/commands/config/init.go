package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aquilhq/actionlog/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new configuration file",
	Long: `Create an actionlog configuration file populated with defaults.

By default, the configuration file is created at $XDG_CONFIG_HOME/actionlog/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  actionlog config init

  # Initialize with custom path
  actionlog config init --config /etc/actionlog/config.yaml

  # Force overwrite existing config
  actionlog config init --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: actionlog start")
	fmt.Printf("  3. Or specify custom config: actionlog start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  Admin endpoints are open until a JWT secret is configured.")
	fmt.Println("  For production, set one via an environment variable:")
	fmt.Printf("    export %s=$(openssl rand -hex 32)\n", config.EnvAdminSecret)

	return nil
}
