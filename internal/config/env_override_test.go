package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Paths(t *testing.T) {
	t.Run("GLADE_PLUGINS_DIR replaces plugins dir", func(t *testing.T) {
		t.Setenv("GLADE_PLUGINS_DIR", "/env/plugins")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/env/plugins", cfg.Paths.PluginsDir)
	})

	t.Run("empty variables leave values alone", func(t *testing.T) {
		t.Setenv("GLADE_DATA_DIR", "")

		cfg := &Config{Paths: PathsConfig{DataDir: "/keep"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "/keep", cfg.Paths.DataDir)
	})

	t.Run("user config and modules dir", func(t *testing.T) {
		t.Setenv("GLADE_USER_CONFIG_DIR", "/env/home")
		t.Setenv("GLADE_MODULES_DIR", "/env/modules")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "/env/home", cfg.Paths.UserConfigDir)
		assert.Equal(t, "/env/modules", cfg.Paths.ModulesDir)
	})
}

func TestEnvOverrides_LoggingAndRuntime(t *testing.T) {
	t.Setenv("GLADE_LOG_LEVEL", "debug")
	t.Setenv("GLADE_YAEGI_GOPATH", "/env/gopath")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/env/gopath", cfg.Runtimes.Yaegi.GoPath)
}

func TestLoadAppliesEnvAfterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gladebind.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  plugins_dir: /file/plugins\n"), 0644))
	t.Setenv("GLADE_PLUGINS_DIR", "/env/plugins")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/env/plugins", cfg.Paths.PluginsDir)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GLADE_DATA_DIR=/dotenv/data\nGLADE_LOG_LEVEL=error\n"), 0644))

	// Real environment wins over .env.
	t.Setenv("GLADE_LOG_LEVEL", "warn")
	// Registers cleanup so the value set by LoadDotEnv does not leak.
	t.Setenv("GLADE_DATA_DIR", "")
	require.NoError(t, os.Unsetenv("GLADE_DATA_DIR"))

	require.NoError(t, LoadDotEnv(envFile))

	assert.Equal(t, "/dotenv/data", os.Getenv("GLADE_DATA_DIR"))
	assert.Equal(t, "warn", os.Getenv("GLADE_LOG_LEVEL"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}
