package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/insightloop/engine/internal/config"
	"github.com/insightloop/engine/internal/llm"
	"github.com/insightloop/engine/internal/observability"
	"github.com/insightloop/engine/internal/orchestrator"
	"github.com/insightloop/engine/internal/session"
	"github.com/insightloop/engine/internal/tool"
	"github.com/insightloop/engine/internal/vectorstore"
)

// engine bundles everything build() constructs, so both ServeCmd and
// ReplayCmd share one construction path.
type engine struct {
	orc         *orchestrator.Orchestrator
	obs         *observability.Manager
	cfg         config.EngineConfig
	mcpCleanups []func() error
}

// Close shuts down observability and every MCP subprocess connection
// opened during build.
func (e *engine) Close(ctx context.Context) {
	for _, cleanup := range e.mcpCleanups {
		if err := cleanup(); err != nil {
			slog.Warn("enginectl: closing MCP connection", "error", err)
		}
	}
	_ = e.obs.Shutdown(ctx)
}

// build loads configuration, constructs every C1-C6 dependency, and
// registers every concrete tool adapter into one tool.Registry, the
// way cmd/hector's ServeCmd.Run builds a runtime from cfg before
// starting the server.
func build(ctx context.Context, configPath, envFile string) (*engine, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	obsCfg := observability.Config{
		ServiceName:          "insightloop-engine",
		OTLPEndpoint:         cfg.OTLPEndpoint,
		PrometheusListenAddr: cfg.PrometheusListenAddr,
		SamplingRate:         1.0,
	}
	obs, err := observability.NewManager(ctx, obsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}

	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building LLM providers: %w", err)
	}

	tools, cleanups, err := buildTools(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	store := session.NewMemoryStore()

	orc := orchestrator.New(orchestrator.Deps{
		Providers: providers,
		Tools:     tools,
		Sessions:  store,
		Config:    cfg,
		Logger:    logger,
	})

	return &engine{orc: orc, obs: obs, cfg: cfg, mcpCleanups: cleanups}, nil
}

// buildProviders resolves a single vendor backend from the environment
// (ANTHROPIC_API_KEY or GEMINI_API_KEY, checked in that order — no
// Go SDK for Anthropic exists anywhere in the example corpus, so that
// adapter is always available; Gemini is preferred only when its key
// is present and Anthropic's is not) and binds it to every model tier
// spec.md §6 names, via llm.WithModel.
func buildProviders(ctx context.Context, cfg config.EngineConfig) (*llm.Registry, error) {
	var base llm.Provider
	switch {
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		base = llm.NewAnthropicProvider(os.Getenv("ANTHROPIC_API_KEY"))
	case os.Getenv("GEMINI_API_KEY") != "":
		p, err := llm.NewGeminiProvider(ctx, os.Getenv("GEMINI_API_KEY"))
		if err != nil {
			return nil, fmt.Errorf("constructing Gemini provider: %w", err)
		}
		base = p
	default:
		return nil, fmt.Errorf("no LLM provider configured: set ANTHROPIC_API_KEY or GEMINI_API_KEY")
	}

	registry := llm.NewRegistry()
	tiers := map[string]string{
		"router":  cfg.RouterModel,
		"simple":  cfg.SimpleModel,
		"medium":  cfg.MediumModel,
		"default": cfg.DefaultModel,
	}
	for tier, model := range tiers {
		if err := registry.RegisterProvider(tier, llm.WithModel(base, model)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// buildTools registers every concrete tool adapter this engine ships,
// plus any configured MCP subprocess sources, into one shared registry
// — the per-turn dedup wrapper is layered on top of this inside the
// orchestrator, not here (this registry is the process-wide base).
func buildTools(ctx context.Context, cfg config.EngineConfig, logger *slog.Logger) (*tool.Registry, []func() error, error) {
	registry := tool.NewRegistry()

	vsProvider, err := buildVectorStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building vector store: %w", err)
	}

	descriptors := []tool.Descriptor{
		tool.NewVectorSearchDescriptor(vsProvider),
		tool.NewCitationDescriptor(),
		tool.NewDocumentIngestDescriptor(),
		tool.NewQueryPlannerDescriptor(),
		tool.NewSentimentAnalysisDescriptor(),
		tool.NewVisualizationDescriptor(),
	}

	if cfg.SQLDataSourceName != "" {
		db, err := sql.Open(cfg.SQLDriver, cfg.SQLDataSourceName)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s dataset database: %w", cfg.SQLDriver, err)
		}
		descriptors = append(descriptors, tool.NewSQLQueryDescriptor(db, 5000))
	}

	for _, d := range descriptors {
		if err := registry.Register(d); err != nil {
			return nil, nil, fmt.Errorf("registering tool %q: %w", d.Name, err)
		}
	}

	var cleanups []func() error
	for _, mcpCfg := range cfg.MCPServers {
		mcpDescriptors, closeFn, err := tool.ConnectMCPServer(ctx, tool.MCPServerConfig{
			Name:    mcpCfg.Name,
			Command: mcpCfg.Command,
			Args:    mcpCfg.Args,
			Env:     mcpCfg.Env,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting MCP server %q: %w", mcpCfg.Name, err)
		}
		cleanups = append(cleanups, closeFn)
		for _, d := range mcpDescriptors {
			if err := registry.Register(d); err != nil {
				return nil, nil, fmt.Errorf("registering MCP tool %q: %w", d.Name, err)
			}
		}
	}

	return registry, cleanups, nil
}

// buildVectorStore selects the DatabaseProvider backing the vector
// search tool per cfg.VectorProvider, defaulting to the embedded
// chromem store (no external service required for local development).
func buildVectorStore(cfg config.EngineConfig) (vectorstore.DatabaseProvider, error) {
	switch cfg.VectorProvider {
	case "", "chromem":
		return vectorstore.NewChromemProvider(".insightloop/vectors")
	case "qdrant":
		return vectorstore.NewQdrantProvider(os.Getenv("QDRANT_HOST"), 6334, os.Getenv("QDRANT_API_KEY"), false)
	case "pinecone":
		return vectorstore.NewPineconeProvider(os.Getenv("PINECONE_API_KEY"), "insightloop")
	default:
		return nil, fmt.Errorf("unknown vector_provider %q", cfg.VectorProvider)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
