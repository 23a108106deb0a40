package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ragsearch/internal/config"
	"ragsearch/internal/database"
)

func queriesCmd() *cobra.Command {
	var (
		path  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "queries",
		Short: "List the most recent entries of the query log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadQueryLog()
			if err != nil {
				return err
			}

			if path != "" {
				cfg.Path = path
			}

			if cfg.Path == "" {
				return errors.New("query log path is not set (QUERY_LOG_PATH or --path)")
			}

			log := newLogger(os.Stderr, slog.LevelWarn)

			db, err := database.New(cmd.Context(), cfg.Path, log)
			if err != nil {
				return fmt.Errorf("open query log: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.ErrorContext(cmd.Context(), "Failed to close db",
						"error", err,
						"dbPath", cfg.Path)
				}
			}()

			records, err := db.RecentQueries(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list queries: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tKIND\tSTATUS\tARTICLES\tDURATION\tQUERY")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%q\n",
					r.CreatedAt.Format(time.RFC3339),
					r.Kind,
					r.Status,
					r.ArticleCount,
					r.Duration.Round(time.Millisecond),
					r.Query)
			}

			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "query log SQLite file (overrides QUERY_LOG_PATH)")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")

	return cmd
}
