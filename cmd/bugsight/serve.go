package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nordlys/bugsight/internal/api"
	"github.com/nordlys/bugsight/internal/config"
	"github.com/nordlys/bugsight/internal/enrich"
	"github.com/nordlys/bugsight/internal/pipeline"
	"github.com/nordlys/bugsight/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bugreport analysis API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfigFile)
		if err != nil {
			return err
		}

		rules, err := config.LoadRules(cfg.RulesFile)
		if err != nil {
			return err
		}
		rules.Apply()

		store, err := storage.NewStorage(storage.Config{
			Backend:    cfg.Storage.Backend,
			SQLitePath: cfg.Storage.SQLitePath,
			MaxRuns:    cfg.Storage.MaxRuns,
		}, log)
		if err != nil {
			return err
		}
		defer store.Close()

		p := pipeline.New(log)
		p.SetManufacturerResolver(rules.CanonicalManufacturer)

		var enricher *enrich.Enricher
		if cfg.Enrich.Enabled() {
			endpoints := make([]enrich.Endpoint, 0, len(cfg.Enrich.Endpoints))
			for _, url := range cfg.Enrich.Endpoints {
				endpoints = append(endpoints, enrich.Endpoint{
					URL:    url,
					Model:  cfg.Enrich.Model,
					APIKey: cfg.Enrich.APIKey,
				})
			}
			client := enrich.NewClient(endpoints, cfg.Enrich.Timeout, log)
			enricher = enrich.New(client, cfg.Enrich.MaxInsights)
			log.WithField("endpoints", len(endpoints)).Info("LLM enrichment enabled")
		}

		server := api.NewServer(cfg.Server, store, p, enricher, log)

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Info("shutting down")
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(ctx)
	},
}
