package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragsearch/internal/bot"
	"ragsearch/internal/client"
	"ragsearch/internal/config"
	"ragsearch/internal/ratelimiter"
)

func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram front-end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadBot()
			if err != nil {
				return err
			}

			log := newLogger(os.Stdout, cfg.LogLevel)
			c := client.New(client.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, nil, log)

			botInst, err := bot.New(cfg.Token, c, ratelimiter.New(cfg.QueryInterval), cfg.AllowedUsers, log)
			if err != nil {
				return fmt.Errorf("init bot: %w", err)
			}
			log.InfoContext(cmd.Context(), "Bot is initialized",
				"allowedUsersCount", len(cfg.AllowedUsers),
				"serverURL", cfg.BaseURL)

			botInst.Start(cmd.Context())

			return nil
		},
	}
}
