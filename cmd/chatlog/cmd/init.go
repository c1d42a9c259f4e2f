package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/chatlog/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with default settings and a generated API key.

The format follows the file extension: .toml for TOML, anything else YAML.

Examples:
  chatlog init
  chatlog init --config ./chatlog.toml --data-dir ./data --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")
		if path == "" {
			path = config.GetDefaultConfigPath()
		}

		apiKey, err := writeInitialConfig(path, dataDir, force)
		if err != nil {
			return err
		}

		cmd.Printf("Configuration written to %s\n", path)
		cmd.Printf("API key: %s\n", apiKey)
		cmd.Printf("\nYou can now start the server with:\n")
		cmd.Printf("  chatlog serve --config %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
	// The config file does not exist yet, so skip loading it.
	initCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil }
}

// writeInitialConfig writes default settings with a fresh API key to path
func writeInitialConfig(path, dataDir string, force bool) (string, error) {
	if config.ConfigExists(path) && !force {
		return "", fmt.Errorf("config file %s already exists, use --force to overwrite", path)
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return "", err
	}

	cfg := config.DefaultConfig()
	cfg.APIKey = apiKey
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return "", err
	}
	return apiKey, nil
}

// generateAPIKey generates a secure random API key
func generateAPIKey() (string, error) {
	bytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random API key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
