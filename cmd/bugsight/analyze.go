package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nordlys/bugsight/internal/config"
	"github.com/nordlys/bugsight/internal/enrich"
	"github.com/nordlys/bugsight/internal/pipeline"
	"github.com/nordlys/bugsight/pkg/models"
)

var (
	flagOutput string
	flagEnrich bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <bugreport.zip>",
	Short: "Analyze one bugreport and print the result as JSON",
	Args:  cobra.ExactArgs(1),
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

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			return err
		}

		p := pipeline.New(log)
		p.SetManufacturerResolver(rules.CanonicalManufacturer)

		progress := func(stage pipeline.Stage, done bool) {
			if done {
				log.WithField("stage", stage).Debug("stage complete")
			}
		}

		res, err := p.Run(cmd.Context(), f, st.Size(), progress)
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", args[0], err)
		}

		if flagEnrich && cfg.Enrich.Enabled() {
			if err := enrichResult(cmd.Context(), cfg.Enrich, res); err != nil {
				log.WithError(err).Warn("enrichment failed, emitting unenriched result")
			}
		}

		out := os.Stdout
		if flagOutput != "" && flagOutput != "-" {
			out, err = os.Create(flagOutput)
			if err != nil {
				return err
			}
			defer out.Close()
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write JSON to file instead of stdout")
	analyzeCmd.Flags().BoolVar(&flagEnrich, "enrich", false, "run LLM enrichment when configured")
}

func enrichResult(ctx context.Context, cfg config.EnrichConfig, res *models.AnalysisResult) error {
	endpoints := make([]enrich.Endpoint, 0, len(cfg.Endpoints))
	for _, url := range cfg.Endpoints {
		endpoints = append(endpoints, enrich.Endpoint{URL: url, Model: cfg.Model, APIKey: cfg.APIKey})
	}
	client := enrich.NewClient(endpoints, cfg.Timeout, log)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	return enrich.New(client, cfg.MaxInsights).Enrich(ctx, res)
}
