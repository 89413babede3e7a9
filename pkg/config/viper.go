// Package config initializes the process-wide Viper instance used by the CLI.
// Settings come from an optional .env file, a config file, and environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	internalconfig "github.com/JakeFAU/trending-digest/internal/config"
	"github.com/JakeFAU/trending-digest/internal/logging"
)

// ConfigFileKey holds the path passed via --config, if any.
const ConfigFileKey = "config"

// InitConfig prepares the global Viper instance. It is meant to run once via
// cobra.OnInitialize, before any command reads configuration.
func InitConfig() {
	// Variables already present in the environment win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.L.Warn("Failed to load .env file", zap.Error(err))
	}

	v := viper.GetViper()
	internalconfig.Prepare(v)

	if path := v.GetString(ConfigFileKey); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/trending/")
		v.AddConfigPath("$HOME/.trending")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logging.L.Debug("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
		return
	}
	logging.L.Info("Using config file", zap.String("path", v.ConfigFileUsed()))
}
