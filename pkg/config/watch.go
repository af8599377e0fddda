package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/aquilhq/actionlog/internal/logger"
)

// Watch re-loads the configuration whenever the config file changes and
// invokes onChange with the freshly validated result.
//
// Only the operational flags (ops.*) are meant to take effect live; store
// bindings and server settings require a restart. A change that fails
// validation is logged and ignored, keeping the previous snapshot active.
//
// When no config file exists there is nothing to watch and Watch returns nil
// without installing a watcher (environment-only deployments flip flags by
// restarting, which is cheap for this service).
func Watch(configPath string, onChange func(*Config)) error {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, loadErr := Load(v.ConfigFileUsed())
		if loadErr != nil {
			logger.Warn("Ignoring config file change, reload failed", "file", e.Name, "error", loadErr)
			return
		}
		logger.Info("Configuration file changed, applying operational flags", "file", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}
