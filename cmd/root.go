package cmd

import (
	"os"

	"github.com/mezonai/syncgate/config"
	"github.com/mezonai/syncgate/logx"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.ini"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "syncgate",
	Short: "Transaction admission and sync node",
	Long:  "Command line interface for running a syncgate node and working with its transactions and snapshots.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to config.ini")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed: ", err)
		os.Exit(1)
	}
}

// loadConfig reads configPath, falling back to defaults when the file is absent.
func loadConfig() (*config.NodeConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logx.Warn("CONFIG", "config file ", configPath, " not found, using defaults")
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadNodeConfig(configPath)
}
