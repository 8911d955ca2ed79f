package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gladebind/internal/config"
	"gladebind/internal/logging"
)

var (
	// Global flags
	cfgPath     string
	verbose     bool
	useBuiltins bool
	pluginsDir  string
	format      string

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gladebind",
	Short: "Load Glade language bindings and run their scripts",
	Long: `gladebind loads language binding modules, indexes the scripts each
binding contributes from its factory and user script roots, and forwards
library loads, script runs and consoles into the binding's runtime.

Built-in bindings:
  go    Go source scripts on the yaegi interpreter
  wasm  WASI command modules on wazero`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		_, statErr := os.Stat(cfgPath)
		if pluginsDir != "" {
			loaded.Paths.PluginsDir = pluginsDir
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", cfgPath, err)
		}
		if err := logging.Initialize(loaded.Logging.Options()); err != nil {
			return err
		}
		cfg = loaded
		if statErr != nil {
			logging.BootWarn("config %s not found, using defaults", cfgPath)
		} else {
			logging.BootDebug("config loaded from %s", cfgPath)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded bindings and their capabilities",
	Args:  cobra.NoArgs,
	RunE:  listBindings,
}

var scriptsCmd = &cobra.Command{
	Use:   "scripts <binding>",
	Short: "List a binding's scripts",
	Long: `Lists the global scripts of a binding, or with --owner the scripts
attached to one widget class. User scripts follow factory scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: listScripts,
}

var runCmd = &cobra.Command{
	Use:   "run <binding> <path> [args...]",
	Short: "Run a script file through a binding",
	Long: `Runs the file with exactly the given arguments. The process exits
with the script's exit indication.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runScript,
}

var libraryCmd = &cobra.Command{
	Use:   "library <binding> <name>",
	Short: "Load a library into a binding's runtime",
	Args:  cobra.ExactArgs(2),
	RunE:  loadLibrary,
}

var actionsCmd = &cobra.Command{
	Use:   "actions <owner-class>",
	Short: "List the context-menu actions for a widget class",
	Args:  cobra.ExactArgs(1),
	RunE:  listActions,
}

var activateCmd = &cobra.Command{
	Use:   "activate <owner-class> <action-id> <widget>",
	Short: "Run an action's script on a widget",
	Args:  cobra.ExactArgs(3),
	RunE:  activateAction,
}

var consoleCmd = &cobra.Command{
	Use:   "console <binding>",
	Short: "Open a binding's interactive console",
	Args:  cobra.ExactArgs(1),
	RunE:  openConsole,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rescan script catalogs as script roots change",
	Args:  cobra.NoArgs,
	RunE:  watchScripts,
}

var typesCmd = &cobra.Command{
	Use:   "types <class>",
	Short: "Mirror a widget class into the go runtime and show its ancestry",
	Args:  cobra.ExactArgs(1),
	RunE:  showTypes,
}

var scriptsOwner string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "gladebind.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&useBuiltins, "builtin", true, "Load the built-in go and wasm bindings")
	rootCmd.PersistentFlags().StringVar(&pluginsDir, "plugins-dir", "", "Binding module directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "markdown", "Listing format: markdown or plain")

	scriptsCmd.Flags().StringVar(&scriptsOwner, "owner", "", "Widget class whose scripts to list")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(scriptsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(typesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
