package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/purplemerit/leadmesh/internal/agent"
	"github.com/purplemerit/leadmesh/internal/config"
	"github.com/purplemerit/leadmesh/internal/embedding"
	"github.com/purplemerit/leadmesh/internal/gentext"
	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/orchestrator"
	"github.com/purplemerit/leadmesh/internal/resource"
	"github.com/purplemerit/leadmesh/internal/rpc"
	"github.com/purplemerit/leadmesh/internal/store"
)

// app holds the wired service graph shared by the serve, rpc and consolidate
// commands.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	db           *store.DB
	short        *store.ShortTermStore
	profiles     *store.ProfileStore
	episodes     *store.EpisodeStore
	semantic     *store.SemanticStore
	actions      *store.ActionStore
	embedder     *embedding.Client
	svc          *memory.Service
	consolidator *memory.Consolidator
	res          *resource.Manager
	orch         *orchestrator.Orchestrator
	rpcServer    *rpc.Server
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		short:    store.NewShortTermStore(time.Duration(cfg.ShortTermTTLHours) * time.Hour),
		profiles: store.NewProfileStore(db),
		episodes: store.NewEpisodeStore(db, cfg.EpisodeCapacity),
		semantic: store.NewSemanticStore(db),
		actions:  store.NewActionStore(db),
	}

	strategy, err := a.buildStrategy()
	if err != nil {
		db.Close()
		return nil, err
	}

	a.svc = memory.NewService(a.short, a.profiles, a.episodes, a.semantic, a.actions, strategy, logger)
	a.consolidator = memory.NewConsolidator(a.short, a.profiles, a.episodes, a.semantic, strategy, logger)
	a.res = resource.NewManager(db, a.semantic, logger)

	var gen *gentext.Client
	if cfg.GentextBaseURL != "" {
		gen = gentext.NewClient(cfg.GentextBaseURL, time.Duration(cfg.GentextTimeoutSeconds)*time.Second, uint64(cfg.GentextMaxRetries))
	}

	rules, err := agent.LoadRules(cfg.RulesPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load rules: %w", err)
	}

	a.orch = orchestrator.New(a.svc, a.res, logger)
	a.orch.Register(agent.NewTriageRole("triage-1", rules.Triage, a.svc, logger))
	a.orch.Register(agent.NewEngagementRole("engagement-1", rules.Engagement, a.svc, gen, logger))
	a.orch.Register(agent.NewOptimizerRole("optimizer-1", rules.Optimizer, a.svc, gen, logger))
	a.orch.Register(agent.NewManagerRole("manager-1", a.svc, logger))

	a.rpcServer = rpc.NewServer(a.svc, a.orch, a.res, logger)

	return a, nil
}

func (a *app) buildStrategy() (memory.SimilarityStrategy, error) {
	if a.cfg.EpisodeSimilarity != "vector" {
		return memory.NewSubstringStrategy(a.episodes), nil
	}

	a.embedder = embedding.NewClient(a.cfg.EmbedBaseURL, a.cfg.EmbedModel)
	cached, err := embedding.NewCachedEmbedder(a.embedder, int64(a.cfg.EmbedCacheSize))
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	strategy, err := memory.NewVectorStrategy(a.episodes, cached)
	if err != nil {
		return nil, fmt.Errorf("vector strategy: %w", err)
	}
	return strategy, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("close database", "error", err)
	}
}
