package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/review-tuner/internal/abtest"
	"github.com/danielpatrickdp/review-tuner/internal/codec"
	"github.com/danielpatrickdp/review-tuner/internal/config"
	"github.com/danielpatrickdp/review-tuner/internal/learning"
	"github.com/danielpatrickdp/review-tuner/internal/logging"
	"github.com/danielpatrickdp/review-tuner/internal/optimizer"
	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/patterns"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
	"github.com/danielpatrickdp/review-tuner/internal/rules"
	"github.com/danielpatrickdp/review-tuner/internal/store"
	"github.com/danielpatrickdp/review-tuner/internal/variation"
)

// #region app

// app is the wired engine behind every subcommand.
type app struct {
	cfg       *config.Config
	schema    params.Schema
	store     *store.Store
	prov      *logging.Provenance
	learner   *learning.Learner
	tracker   *patterns.Tracker
	optimizer *optimizer.Optimizer
	client    *codec.Client
}

// openApp opens the store, seeds the global settings on first use and wires
// the optimizer. The codec connection is opened on demand.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	schema := params.DefaultSchema()
	seed, err := cfg.SeedSettingsSet(schema)
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if _, err := st.EnsureGlobal(ctx, seed); err != nil {
		st.Close()
		return nil, err
	}

	pcfg := patterns.DefaultConfig()
	pcfg.HighScoreThreshold = cfg.HighScore

	a := &app{
		cfg:     cfg,
		schema:  schema,
		store:   st,
		prov:    logging.NewProvenance(st.DB()),
		learner: learning.NewLearner(st),
		tracker: patterns.NewTracker(st, pcfg),
	}
	a.optimizer = optimizer.NewOptimizer(rules.DefaultTable(schema), optimizer.Deps{
		Learner:          a.learner,
		Tracker:          a.tracker,
		Catalog:          variation.DefaultCatalog(),
		Sink:             a.prov,
		ChronicThreshold: cfg.ChronicThreshold,
	})
	return a, nil
}

func (a *app) Close() error {
	if a.client != nil {
		a.client.Close()
	}
	return a.store.Close()
}

func (a *app) codecClient() (*codec.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	c, err := codec.NewClient(a.cfg.CodecAddr)
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

// manager wires the A/B test orchestrator over the codec collaborators.
func (a *app) manager() (*abtest.Manager, error) {
	c, err := a.codecClient()
	if err != nil {
		return nil, err
	}
	return abtest.NewManager(abtest.Deps{
		Store:     a.store,
		Settings:  a.store,
		Generator: c,
		Analyzer:  c,
		Schema:    a.schema,
		Events:    a.prov,
	}, abtest.Config{
		Timeout: a.cfg.GenerateTimeout,
		Rate:    rate.Limit(a.cfg.ABRate),
		Burst:   a.cfg.ABBurst,
	}), nil
}

// #endregion app

// #region io

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readAnalysis decodes an analysis JSON document from path, or stdin for "-".
func readAnalysis(path string) (quality.Analysis, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return quality.Analysis{}, fmt.Errorf("open analysis: %w", err)
		}
		defer f.Close()
		r = f
	}
	var an quality.Analysis
	if err := json.NewDecoder(r).Decode(&an); err != nil {
		return quality.Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	return an, nil
}

// #endregion io
