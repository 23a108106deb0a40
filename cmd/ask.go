package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ragsearch/internal/client"
	"ragsearch/internal/config"
)

func askCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask a running server a question",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Please enter a query.")

				return errReported
			}

			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}

			if baseURL != "" {
				cfg.BaseURL = baseURL
			}

			log := newLogger(os.Stderr, cfg.LogLevel)
			c := client.New(client.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, nil, log)

			answer, err := c.Ask(cmd.Context(), query)
			if err != nil {
				log.DebugContext(cmd.Context(), "Failed to ask",
					"error", err,
					"baseURL", cfg.BaseURL)

				fmt.Fprintln(cmd.ErrOrStderr(), client.FormatError(err))

				return errReported
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Answer:", answer)

			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "server base URL (overrides RAGSEARCH_URL)")

	return cmd
}
