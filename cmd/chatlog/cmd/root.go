/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/chatlog/pkg/archive"
	"github.com/ssargent/chatlog/pkg/config"
	"github.com/ssargent/chatlog/pkg/logger"
)

type configKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatlog",
	Short: "chatlog - binary chat-log decoder",
	Long: `chatlog decodes binary chat-log records into timestamped entries with
structured senders and messages, and archives them for search.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger.Init(logger.Options{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Service: "chatlog",
			Writer:  cmd.ErrOrStderr(),
		})
		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory for the archive")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (console, json)")
}

// loadConfig resolves configuration from the config file, the environment and flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	switch {
	case path != "":
		cfg, err = config.LoadConfig(path)
	case config.ConfigExists(config.GetDefaultConfigPath()):
		cfg, err = config.LoadConfig(config.GetDefaultConfigPath())
	default:
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configFrom returns the configuration stored by PersistentPreRunE
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// openArchive opens the archive under the configured data directory
func openArchive(cfg *config.Config) (*archive.Archive, error) {
	dir := filepath.Join(cfg.DataDir, "archive")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return archive.Open(dir, archive.Options{
		Compression: cfg.Compression,
		Logger:      logger.Named("archive"),
	})
}
