// Command chattutor runs the tutoring orchestrator as an interactive chat,
// a connect service, or a session listing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/chattutor/kernel"
)

var (
	configFile string
	envFiles   []string
	storeFlag  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "chattutor",
	Short: "Turn-based tutoring orchestrator",
	Long: `chattutor plans each learner utterance, routes it through the tutor,
judge, inquiry and summary workers, and persists the session.

Run "chattutor chat" to start an interactive session.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, "Dotenv files to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Session store location: directory, sqlite:<path>, or redis://")
	rootCmd.PersistentFlags().BoolVar(&disableTools, "no-tools", false, "Do not offer builtin tools to the tutor")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(chatCmd, serveCmd, sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration from the config file, dotenv files,
// the environment and flags, in that order.
func loadConfig() (*kernel.Config, error) {
	var cfg *kernel.Config
	if configFile != "" {
		loaded, err := kernel.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := kernel.DefaultConfig()
		cfg = &def
	}

	if err := kernel.LoadEnv(cfg, envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	if storeFlag != "" {
		cfg.Memory.Merge(kernel.ParseStore(storeFlag))
	}
	if verbose {
		cfg.Observer = "zap"
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newKernel builds a kernel from cfg with the builtin tools registered.
func newKernel(cfg *kernel.Config) (*kernel.Kernel, error) {
	if err := registerBuiltinTools(); err != nil {
		return nil, err
	}
	k, err := kernel.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kernel: %w", err)
	}
	return k, nil
}
