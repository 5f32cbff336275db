package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"zepler/pkg/config"
	"zepler/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "zepler",
	Short: "Chat bot that hands out emoji rewards and lunch picks",
	Long: `zepler answers messages that mention it directly:

  @zepler give @someone <emoji name>   reward a teammate (dog fetches a picture)
  @zepler where                        pick a nearby restaurant`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if value := strings.TrimSpace(configPath); value != "" {
			return os.Setenv(config.EnvConfigPath, value)
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (overrides "+config.EnvConfigPath+")")
}

// loadRuntime loads configuration and installs the process logger.
func loadRuntime(component string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return cfg, appLogger.With("component", component), nil
}
