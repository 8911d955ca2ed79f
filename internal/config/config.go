package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ScriptDirName is the directory under each search root holding per-binding scripts.
const ScriptDirName = "scripts"

// Config holds all gladebind configuration.
type Config struct {
	// AppName names the per-user config subdirectory (<user-config-dir>/<app-name>).
	AppName string `yaml:"app_name"`

	Paths     PathsConfig     `yaml:"paths"`
	Runtimes  RuntimesConfig  `yaml:"runtimes"`
	Execution ExecutionConfig `yaml:"execution"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PathsConfig locates binding modules and script roots.
type PathsConfig struct {
	PluginsDir    string `yaml:"plugins_dir"`
	DataDir       string `yaml:"data_dir"`        // factory root parent
	UserConfigDir string `yaml:"user_config_dir"` // user-override root parent
	ModulesDir    string `yaml:"modules_dir"`     // added to each runtime's import path
}

// RuntimesConfig holds per-runtime settings handed to binding init.
type RuntimesConfig struct {
	Yaegi YaegiConfig `yaml:"yaegi"`
	Wasm  WasmConfig  `yaml:"wasm"`
}

// YaegiConfig configures the Go interpreter binding.
type YaegiConfig struct {
	GoPath          string   `yaml:"gopath"`
	AllowedPackages []string `yaml:"allowed_packages"`
	Unrestricted    bool     `yaml:"unrestricted"`
}

// WasmConfig configures the WASI binding.
type WasmConfig struct {
	// MemoryLimitPages caps guest memory in 64KiB pages. 0 means the runtime default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
}

// WatchConfig configures the script root watcher.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	userDir, err := os.UserConfigDir()
	if err != nil {
		userDir = filepath.Join(os.Getenv("HOME"), ".config")
	}

	return &Config{
		AppName: "glade",
		Paths: PathsConfig{
			PluginsDir:    "/usr/lib/glade/bindings",
			DataDir:       "/usr/share/glade",
			UserConfigDir: userDir,
			ModulesDir:    "/usr/lib/glade/modules",
		},
		Runtimes: RuntimesConfig{
			Yaegi: YaegiConfig{
				AllowedPackages: []string{
					"fmt", "strings", "strconv", "math", "sort",
					"time", "bytes", "errors", "unicode", "regexp",
					"path", "path/filepath", "encoding/json",
				},
			},
		},
		Watch: WatchConfig{
			Debounce: "300ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// LoadDotEnv seeds the process environment from a .env file. Variables
// already present in the environment are left untouched. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for k, v := range values {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("GLADE_PLUGINS_DIR"); dir != "" {
		c.Paths.PluginsDir = dir
	}
	if dir := os.Getenv("GLADE_DATA_DIR"); dir != "" {
		c.Paths.DataDir = dir
	}
	if dir := os.Getenv("GLADE_USER_CONFIG_DIR"); dir != "" {
		c.Paths.UserConfigDir = dir
	}
	if dir := os.Getenv("GLADE_MODULES_DIR"); dir != "" {
		c.Paths.ModulesDir = dir
	}
	if level := os.Getenv("GLADE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if gopath := os.Getenv("GLADE_YAEGI_GOPATH"); gopath != "" {
		c.Runtimes.Yaegi.GoPath = gopath
	}
}

// ScriptRoots returns the script search roots for a binding, factory root
// first and user-override root second.
func (p PathsConfig) ScriptRoots(appName, bindingName string) []string {
	return []string{
		filepath.Join(p.DataDir, ScriptDirName, bindingName),
		filepath.Join(p.UserConfigDir, appName, ScriptDirName, bindingName),
	}
}

// ScriptRoots returns the script search roots for a binding.
func (c *Config) ScriptRoots(bindingName string) []string {
	return c.Paths.ScriptRoots(c.AppName, bindingName)
}

// GetDebounce returns the watcher debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// RuntimeSettings flattens the runtime sections into the string map handed to
// binding init functions, keyed "<runtime>.<setting>".
func (c *Config) RuntimeSettings() map[string]string {
	return map[string]string{
		"yaegi.gopath":            c.Runtimes.Yaegi.GoPath,
		"yaegi.allowed_packages":  strings.Join(c.Runtimes.Yaegi.AllowedPackages, ","),
		"yaegi.unrestricted":      strconv.FormatBool(c.Runtimes.Yaegi.Unrestricted),
		"wasm.memory_limit_pages": strconv.FormatUint(uint64(c.Runtimes.Wasm.MemoryLimitPages), 10),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app_name must not be empty")
	}
	if c.Paths.PluginsDir == "" {
		return fmt.Errorf("paths.plugins_dir must not be empty")
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); c.Watch.Debounce != "" && err != nil {
		return fmt.Errorf("invalid watch.debounce %q: %w", c.Watch.Debounce, err)
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	return nil
}
