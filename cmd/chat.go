package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"zepler/pkg/channel"
	"zepler/pkg/channel/console"
	"zepler/pkg/gateway"
	"zepler/pkg/logger"
)

var promptText string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to zepler in the terminal",
	Long:  "Starts a local console chat with zepler, or sends one message and prints the reply.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := resolvePrompt(args)

		cfg, log, err := loadRuntime("cmd.chat")
		if err != nil {
			return err
		}
		if prompt == "" {
			// The terminal UI owns the screen.
			log = logger.Discard()
			slog.SetDefault(log)
		}

		router, err := gateway.NewRouter(cfg, log)
		if err != nil {
			return err
		}

		adapter := console.NewAdapter(cfg.Bot.Name, log,
			console.WithPrompt(prompt),
			console.WithCommands(router.Prefixes()),
			console.WithOutput(cmd.OutOrStdout()),
		)

		svc, err := gateway.NewService(cfg, router, []channel.Adapter{adapter}, log)
		if err != nil {
			return err
		}

		return svc.RunChannels(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&promptText, "prompt", "p", "", "send one message and print the reply")
}

func resolvePrompt(args []string) string {
	if value := strings.TrimSpace(promptText); value != "" {
		return value
	}

	return strings.TrimSpace(strings.Join(args, " "))
}
