package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"zepler/pkg/channel"
	"zepler/pkg/channel/slack"
	"zepler/pkg/channel/telegram"
	"zepler/pkg/config"
	"zepler/pkg/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the enabled chat platforms",
	Long:  "Runs zepler on every enabled channel with health and readiness endpoints.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime("cmd.serve")
		if err != nil {
			return err
		}

		adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return err
		}

		router, err := gateway.NewRouter(cfg, log)
		if err != nil {
			return err
		}

		svc, err := gateway.NewService(cfg, router, adapters, log)
		if err != nil {
			return fmt.Errorf("initialize gateway service: %w", err)
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("Gateway started", "channels", enabledChannelNames(adapters), "commands", strings.Join(router.Prefixes(), ","))
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Gateway runtime failed", "error", err)
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 2)

	if cfg.Channels.Slack.Enabled {
		adapter, err := slack.NewAdapter(cfg.Channels.Slack, log)
		if err != nil {
			return nil, fmt.Errorf("configure slack channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure telegram channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
