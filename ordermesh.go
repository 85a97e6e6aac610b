// Package ordermesh assembles a complete ordering assistant from a
// config.Config: logger, chat model, embedder, vector index, product catalog,
// session store, the five stages and the engine that drives them.
//
// Most applications only need:
//
//	cfg, _ := config.Load("ordermesh.yaml")
//	app, err := ordermesh.New(ctx, cfg)
//	defer app.Close()
//	res, err := app.Engine.PostTurn(ctx, "session-1", "two lattes please")
//
// Every collaborator can be replaced through Options, which is how tests and
// embedding applications plug in their own catalog or model.
package ordermesh

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/ordermesh/agent"
	"github.com/hupe1980/ordermesh/catalog"
	"github.com/hupe1980/ordermesh/catalog/sqlite"
	"github.com/hupe1980/ordermesh/config"
	"github.com/hupe1980/ordermesh/core"
	"github.com/hupe1980/ordermesh/embedding"
	embopenai "github.com/hupe1980/ordermesh/embedding/openai"
	"github.com/hupe1980/ordermesh/engine"
	"github.com/hupe1980/ordermesh/logging"
	"github.com/hupe1980/ordermesh/model"
	modelanthropic "github.com/hupe1980/ordermesh/model/anthropic"
	modelopenai "github.com/hupe1980/ordermesh/model/openai"
	"github.com/hupe1980/ordermesh/session"
	"github.com/hupe1980/ordermesh/session/redis"
	"github.com/hupe1980/ordermesh/vector"
	"github.com/hupe1980/ordermesh/vector/inmem"
	"github.com/hupe1980/ordermesh/vector/pgvector"
	"github.com/hupe1980/ordermesh/vector/qdrant"
)

// Options override collaborators that would otherwise be built from the
// configuration.
type Options struct {
	Model        model.Model
	Embedder     core.Embedder
	Index        core.VectorIndex
	Catalog      core.Catalog
	Rules        core.RuleTable
	SessionStore core.SessionStore
	Callbacks    *engine.CallbackManager
	Logger       *logging.StructuredLogger
}

// App is an assembled ordering assistant.
type App struct {
	Engine  *engine.Engine
	Config  *config.Config
	Logger  *logging.StructuredLogger
	Catalog core.Catalog

	closers []func() error
}

// index is what a configured vector backend provides.
type index interface {
	core.VectorIndex
	vector.Writer
}

// New builds an App. Resources opened along the way are released again when
// construction fails.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (app *App, err error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	app = &App{Config: cfg, Logger: opts.Logger}
	if app.Logger == nil {
		app.Logger = logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, cfg.Logging.AddSource)
	}
	log := app.Logger.WithComponent("ordermesh")

	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	cat, rules := opts.Catalog, opts.Rules
	if rules == nil && cfg.Catalog.RulesPath != "" {
		if rules, err = loadRules(cfg.Catalog.RulesPath); err != nil {
			return app, err
		}
	}
	if cat == nil {
		if cat, rules, err = app.openCatalog(ctx, rules); err != nil {
			return app, err
		}
	}
	if rules == nil {
		return app, errors.New("ordermesh: no association rules configured")
	}
	app.Catalog = cat

	m := opts.Model
	if m == nil {
		m = newModel(cfg.LLM)
	}

	embedder := opts.Embedder
	if embedder == nil {
		embedder = newEmbedder(cfg.Embedding)
	}

	idx := opts.Index
	if idx == nil {
		built, err := app.openIndex(ctx)
		if err != nil {
			return app, err
		}
		if cfg.Vector.IndexOnStart {
			done := log.StartTimer("ordermesh.index")
			n, err := vector.IndexCatalog(ctx, cat, embedder, built)
			done()
			if err != nil {
				return app, err
			}
			log.Info("ordermesh.index.built", "products", n, "backend", cfg.Vector.Backend)
		}
		idx = built
	}

	store := opts.SessionStore
	if store == nil {
		if store, err = app.openSessionStore(ctx); err != nil {
			return app, err
		}
	}

	categories, err := cat.ListCategories(ctx)
	if err != nil {
		return app, fmt.Errorf("list categories: %w", err)
	}
	vars := map[string]any{"Store": cfg.Catalog.StoreName, "Categories": categories}
	ec := cfg.Engine
	timeout := cfg.LLM.Timeout

	guard := agent.NewGuard(m, func(o *agent.GuardOptions) {
		o.Vars = vars
		o.HistoryWindow = ec.HistoryWindow
		o.Timeout = timeout
		o.Logger = app.Logger.WithComponent("guard")
	})
	classifier := agent.NewClassifier(m, func(o *agent.ClassifierOptions) {
		o.Vars = vars
		o.HistoryWindow = ec.HistoryWindow
		o.Timeout = timeout
		o.Logger = app.Logger.WithComponent("classifier")
	})
	details := agent.NewDetails(m, embedder, idx, cat, func(o *agent.DetailsOptions) {
		o.Vars = vars
		o.TopK = ec.TopK
		o.HistoryWindow = ec.HistoryWindow
		o.Timeout = timeout
		o.Currency = cfg.Catalog.Currency
		o.Logger = app.Logger.WithComponent("details")
	})
	orderTaker := agent.NewOrderTaker(m, cat, func(o *agent.OrderTakerOptions) {
		o.Vars = vars
		o.HistoryWindow = ec.HistoryWindow
		o.Timeout = timeout
		o.Currency = cfg.Catalog.Currency
		o.Logger = app.Logger.WithComponent("order")
	})
	recommender := agent.NewRecommender(m, cat, rules, func(o *agent.RecommenderOptions) {
		o.Vars = vars
		o.Limit = ec.RecommendLimit
		o.HistoryWindow = ec.HistoryWindow
		o.Timeout = timeout
		o.Currency = cfg.Catalog.Currency
		o.Logger = app.Logger.WithComponent("recommend")
	})

	app.Engine, err = engine.New(func(o *engine.Options) {
		o.Config.MaxConcurrentTurns = ec.MaxConcurrentTurns
		o.Config.MaxCallsPerTurn = ec.MaxCallsPerTurn
		o.Guard = guard
		o.Classifier = classifier
		o.Details = details
		o.OrderTaker = orderTaker
		o.Recommender = recommender
		o.SessionStore = store
		o.Callbacks = opts.Callbacks
		o.Logger = app.Logger.WithComponent("engine")
	})
	if err != nil {
		return app, err
	}

	log.Info("ordermesh.ready",
		"model", m.Info().Name,
		"provider", m.Info().Provider,
		"catalog", cfg.Catalog.Source,
		"vector", cfg.Vector.Backend,
		"sessions", cfg.Session.Backend,
	)
	return app, nil
}

// Close releases every resource opened by New, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openCatalog(ctx context.Context, rules core.RuleTable) (core.Catalog, core.RuleTable, error) {
	cc := a.Config.Catalog
	switch cc.Source {
	case "sqlite":
		c, err := sqlite.Open(cc.Path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, c.Close)
		if rules == nil {
			rs, err := c.LoadRules(ctx)
			if err != nil {
				return nil, nil, err
			}
			rules = rs
		}
		return c, rules, nil
	default:
		f, err := os.Open(cc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()

		fixture, err := catalog.LoadYAML(f)
		if err != nil {
			return nil, nil, err
		}
		c, rs, err := fixture.Build()
		if err != nil {
			return nil, nil, err
		}
		if rules == nil {
			rules = rs
		}
		return c, rules, nil
	}
}

func loadRules(path string) (*catalog.RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return catalog.LoadRulesYAML(f)
}

func newModel(c config.LLMConfig) model.Model {
	switch c.Provider {
	case "openai":
		return modelopenai.NewModel(func(o *modelopenai.Options) {
			if c.Model != "" {
				o.Model = c.Model
			}
			o.APIKey = c.APIKey
			o.BaseURL = c.BaseURL
			if c.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(c.MaxTokens)
			}
		})
	case "anthropic":
		return modelanthropic.NewModel(func(o *modelanthropic.Options) {
			if c.Model != "" {
				o.Model = anthropic.Model(c.Model)
			}
			o.APIKey = c.APIKey
			if c.MaxTokens > 0 {
				o.MaxTokens = int64(c.MaxTokens)
			}
		})
	default:
		return model.NewOffline()
	}
}

func newEmbedder(c config.EmbeddingConfig) core.Embedder {
	if c.Provider == "openai" {
		return embopenai.New(func(o *embopenai.Options) {
			o.APIKey = c.APIKey
			o.BaseURL = c.BaseURL
			if c.Model != "" {
				o.Model = c.Model
			}
			o.Dimensions = c.Dimensions
		})
	}
	return embedding.NewHash(c.Dimensions)
}

func (a *App) openIndex(ctx context.Context) (index, error) {
	vc := a.Config.Vector
	switch vc.Backend {
	case "qdrant":
		x, err := qdrant.New(qdrant.Config{
			URL:        vc.URL,
			Collection: vc.Collection,
			APIKey:     vc.APIKey,
			Dimensions: a.Config.Embedding.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, x.Close)
		if err := x.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return x, nil
	case "pgvector":
		x, err := pgvector.Open(ctx, vc.DSN, vc.Table)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, x.Close)
		if err := x.Migrate(ctx, a.Config.Embedding.Dimensions); err != nil {
			return nil, err
		}
		return x, nil
	default:
		return inmem.New(), nil
	}
}

func (a *App) openSessionStore(ctx context.Context) (core.SessionStore, error) {
	sc := a.Config.Session
	if sc.Backend != "redis" {
		return session.NewInMemoryStore(), nil
	}
	s, err := redis.Open(ctx, sc.RedisURL, func(o *redis.Options) {
		if sc.TTL > 0 {
			o.TTL = sc.TTL
		}
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}
