package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ragsearch/internal/config"
	"ragsearch/internal/database"
	"ragsearch/internal/extractor"
	"ragsearch/internal/generator"
	"ragsearch/internal/rag"
	"ragsearch/internal/scheduler"
	"ragsearch/internal/search"
	"ragsearch/internal/server"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP query API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}

			if addr != "" {
				cfg.Addr = addr
			}

			return runServe(cmd.Context(), cfg, newLogger(os.Stdout, cfg.LogLevel))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SERVER_ADDR)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	start := time.Now()

	searcher, err := search.NewSerper(search.SerperConfig{
		APIKey:  cfg.Search.SerperAPIKey,
		BaseURL: cfg.Search.BaseURL,
		GL:      cfg.Search.GL,
		HL:      cfg.Search.HL,
		Num:     cfg.Search.Num,
		Timeout: cfg.Search.Timeout,
	}, nil, log)
	if err != nil {
		return fmt.Errorf("create searcher: %w", err)
	}

	ext := extractor.New(extractor.Config{
		Timeout:      cfg.Fetch.Timeout,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Workers:      cfg.Fetch.Workers,
	}, nil, log)

	gen, err := generator.NewOpenAIGenerator(generator.OpenAIConfig{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		MaxRetries: cfg.LLM.MaxRetries,
		Timeout:    cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	log.InfoContext(ctx, "Generator is initialized",
		"model", cfg.LLM.Model,
		"maxRetries", cfg.LLM.MaxRetries)

	pipeline := rag.New(searcher, ext, gen, rag.Options{Timeout: cfg.PipelineTimeout}, log)

	var queryLog server.QueryLogger

	if cfg.QueryLog.Path != "" {
		db, dbErr := database.New(ctx, cfg.QueryLog.Path, log)
		if dbErr != nil {
			return fmt.Errorf("init query log: %w", dbErr)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.ErrorContext(ctx, "Failed to close db",
					"error", closeErr,
					"dbPath", cfg.QueryLog.Path)
			}
		}()
		log.InfoContext(ctx, "DB is initialized",
			"dbPath", cfg.QueryLog.Path)

		queryLog = db

		sched := scheduler.New(ctx, db, cfg.QueryLog.PruneSpec, cfg.QueryLog.Retention, log)
		if err = sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
		log.InfoContext(ctx, "Scheduler is started",
			"spec", sched.Spec(),
			"retention", cfg.QueryLog.Retention)
	}

	srv := server.New(server.Config{
		Addr:         cfg.Addr,
		RateLimit:    cfg.RateLimit,
		AllowOrigins: cfg.AllowOrigins,
	}, pipeline, queryLog, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	log.InfoContext(ctx, "Server is started",
		"addr", cfg.Addr,
		"rateLimit", cfg.RateLimit,
		"queryLog", cfg.QueryLog.Path != "")

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
	}

	log.InfoContext(ctx, "Shutdown signal is received",
		"uptimeSeconds", time.Since(start).Seconds())

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err = srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}

	if err = <-errCh; err != nil {
		errs = append(errs, err)
	}

	log.InfoContext(ctx, "Server is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	return errors.Join(errs...)
}
