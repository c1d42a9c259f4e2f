package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "./data", config.DataDir)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "127.0.0.1", config.Bind)
	assert.Equal(t, 64*1024, config.MaxRecordSize)
	assert.Equal(t, "default", config.Compression)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "console", config.Logging.Format)
	assert.Equal(t, "127.0.0.1:8080", config.Address())
	assert.NoError(t, config.Validate())
}

func TestLoadConfig(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), name)
			expected := &Config{
				DataDir:       "/custom/data",
				Port:          9000,
				Bind:          "0.0.0.0",
				APIKey:        "test-key",
				MaxRecordSize: 4096,
				Workers:       4,
				Compression:   "best",
				Logging: Logging{
					Level:  "debug",
					Format: "json",
				},
			}

			require.NoError(t, SaveConfig(expected, configPath))

			loaded, err := LoadConfig(configPath)
			require.NoError(t, err)
			assert.Equal(t, expected, loaded)
		})
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("port: 9100\n"), 0600))

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 9100, loaded.Port)
	assert.Equal(t, "./data", loaded.DataDir)
	assert.Equal(t, "info", loaded.Logging.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveConfig(DefaultConfig(), configPath))

	t.Setenv("CHATLOG_PORT", "7000")
	t.Setenv("CHATLOG_LOG_LEVEL", "warn")

	loaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 7000, loaded.Port)
	assert.Equal(t, "warn", loaded.Logging.Level)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("port: [oops"), 0600))
		_, err := LoadConfig(configPath)
		assert.Error(t, err)
	})

	t.Run("validation failure", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("compression: maximum\n"), 0600))
		_, err := LoadConfig(configPath)
		assert.ErrorContains(t, err, "invalid config")
	})
}

func TestLoadDefault(t *testing.T) {
	t.Setenv("CHATLOG_DATA_DIR", "/env/data")

	config, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "/env/data", config.DataDir)
}

func TestSaveConfig_Permissions(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(DefaultConfig(), configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.True(t, ConfigExists(configPath))
	assert.False(t, ConfigExists(configPath+".missing"))
}

func TestGetDefaultConfigPath(t *testing.T) {
	assert.Contains(t, GetDefaultConfigPath(), "chatlog")
}
