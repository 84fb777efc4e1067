package main

import (
	"context"
	"fmt"
	"log/slog"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopquery/shopquery"
	"github.com/shopquery/shopquery/cart"
	"github.com/shopquery/shopquery/checkpoint"
	checkpointpg "github.com/shopquery/shopquery/checkpoint/postgres"
	"github.com/shopquery/shopquery/config"
	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/engine"
	"github.com/shopquery/shopquery/feedback"
	feedbackpg "github.com/shopquery/shopquery/feedback/postgres"
	"github.com/shopquery/shopquery/logging"
	"github.com/shopquery/shopquery/model"
	"github.com/shopquery/shopquery/model/anthropic"
	"github.com/shopquery/shopquery/model/openai"
	"github.com/shopquery/shopquery/planner"
	"github.com/shopquery/shopquery/prompt"
	"github.com/shopquery/shopquery/retrieval"
	"github.com/shopquery/shopquery/retrieval/pgvector"
	"github.com/shopquery/shopquery/router"
	"github.com/shopquery/shopquery/synth"
	"github.com/shopquery/shopquery/tool"
)

// app holds everything the serve and ask commands need.
type app struct {
	cfg       *config.Config
	logger    logging.Logger
	assistant *shopquery.ShopQuery
	pool      *pgxpool.Pool // nil when running in memory
}

// buildApp wires stores, model, tools and the façade from configuration.
func buildApp(ctx context.Context, cfg *config.Config, initSchema bool) (*app, error) {
	var logLevel slog.Level
	_ = logLevel.UnmarshalText([]byte(cfg.LogLevel))
	logger := logging.New(logging.Config{Level: logLevel, Format: cfg.LogFormat})

	prompts := prompt.NewLibrary()
	if cfg.PromptFile != "" {
		if err := prompts.Load(cfg.PromptFile); err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
	}

	var m model.Model
	switch cfg.Provider {
	case config.ProviderOpenAI:
		m = openai.NewModel(func(o *openai.Options) {
			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
			o.Temperature = cfg.Temperature
		})
	case config.ProviderAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.ModelName != "" {
				o.Model = anthropicsdk.Model(cfg.ModelName)
			}
			o.Temperature = cfg.Temperature
		})
	}

	var embedder retrieval.Embedder
	if cfg.Provider == config.ProviderOpenAI {
		embedder = openai.NewEmbedder()
	} else {
		embedder = retrieval.NewTokenEmbedder(768)
	}

	var (
		pool        *pgxpool.Pool
		checkpoints core.CheckpointStore
		feedbacks   core.FeedbackStore
		index       retrieval.Index
	)
	if cfg.PostgresDSN != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		ckpt := checkpointpg.New(pool, func(o *checkpointpg.Options) { o.Logger = logger })
		fbs := feedbackpg.New(pool)
		vindex := pgvector.New(pool, embedder)
		if initSchema {
			for _, init := range []func(context.Context) error{ckpt.InitSchema, fbs.InitSchema, vindex.InitSchema} {
				if err := init(ctx); err != nil {
					pool.Close()
					return nil, err
				}
			}
		}
		checkpoints, feedbacks, index = ckpt, fbs, vindex
	} else {
		checkpoints = checkpoint.NewInMemoryStore()
		feedbacks = feedback.NewInMemoryStore()
		index = retrieval.NewInMemoryIndex(embedder)
	}

	assistant := shopquery.New(func(o *shopquery.Options) {
		o.Checkpoints = checkpoints
		o.Feedback = feedbacks
		o.Logger = logger
		o.EngineConfig = engine.Config{
			MaxPlanIterations: cfg.MaxPlanIterations,
			ExecuteBudget:     cfg.ExecuteBudget,
			UnitBufferSize:    engine.DefaultConfig.UnitBufferSize,
			HistoryLimit:      engine.DefaultConfig.HistoryLimit,
		}
		if m != nil {
			o.Classifier = router.NewModelClassifier(m, func(ro *router.Options) {
				ro.Prompts = prompts
				ro.Logger = logger
			})
			o.Planner = planner.NewModelPlanner(m, func(po *planner.Options) {
				po.Prompts = prompts
				po.Logger = logger
			})
			o.Synthesizer = synth.New(m, func(so *synth.Options) {
				so.Prompts = prompts
				so.Logger = logger
			})
		}
	})

	carts := cart.NewService()
	assistant.RegisterTool(tool.NewProductSearchTool(index, 5))
	assistant.RegisterTool(tool.NewReviewLookupTool(index, 5))
	assistant.RegisterTool(tool.NewCartViewTool(carts))
	assistant.RegisterTool(tool.NewCartAddTool(carts))
	assistant.RegisterTool(tool.NewCartRemoveTool(carts))

	return &app{cfg: cfg, logger: logger, assistant: assistant, pool: pool}, nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
