package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/config"
	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/connectors/confluence"
	"github.com/kailas-cloud/talkdb/internal/connectors/msgraph"
	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	logpkg "github.com/kailas-cloud/talkdb/internal/logger"
	"github.com/kailas-cloud/talkdb/internal/metrics"
	"github.com/kailas-cloud/talkdb/internal/tokenizer"
	chiTransport "github.com/kailas-cloud/talkdb/internal/transport/chi"
	neo4jGraph "github.com/kailas-cloud/talkdb/internal/transport/neo4j"
	openaiTransport "github.com/kailas-cloud/talkdb/internal/transport/openai"
	"github.com/kailas-cloud/talkdb/internal/usecase/agent"
	embeddinguc "github.com/kailas-cloud/talkdb/internal/usecase/embedding"
	"github.com/kailas-cloud/talkdb/internal/usecase/export"
	"github.com/kailas-cloud/talkdb/internal/usecase/fusion"
	"github.com/kailas-cloud/talkdb/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/talkdb/internal/usecase/health"
	"github.com/kailas-cloud/talkdb/internal/usecase/indexing"
	"github.com/kailas-cloud/talkdb/internal/usecase/kg"
	"github.com/kailas-cloud/talkdb/internal/usecase/memory"
	"github.com/kailas-cloud/talkdb/internal/usecase/retriever"
	"github.com/kailas-cloud/talkdb/internal/usecase/router"
	"github.com/kailas-cloud/talkdb/internal/usecase/sqlengine"
	"github.com/kailas-cloud/talkdb/internal/usecase/synth"
	"github.com/kailas-cloud/talkdb/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting talkdb API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.Bool("kg_enabled", cfg.KG.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx := context.Background()
	vs, err := openVectorStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open vector store", zap.Error(err))
	}
	defer vs.close()
	logger.Info("Vector store ready", zap.String("backend", cfg.Vector.Backend))

	// Embedder chain: OpenAI -> Cached -> Instrumented -> Instruction (queries only)
	docEmbedder := buildEmbedder(cfg, vs, logger)
	var queryEmbedder domain.Embedder = docEmbedder
	if cfg.LLM.QueryInstruction != "" {
		queryEmbedder = domain.NewInstructionEmbedder(docEmbedder, cfg.LLM.QueryInstruction)
	}

	chat := generation.NewInstrumented(
		openaiTransport.NewChat(providerConfig(cfg, cfg.LLM.ChatModel, logger)),
		cfg.LLM.ChatModel,
		generation.Metrics{Requests: metrics.GenerationRequestsTotal, Duration: metrics.GenerationDuration},
		logger,
	)

	counter, err := tokenizer.New(cfg.LLM.ChatModel)
	if err != nil {
		logger.Warn("Tokenizer unavailable, using estimator", zap.Error(err))
	}

	fuserOpts := []fusion.Option{
		fusion.WithDepth(cfg.Retrieval.MaxTopK),
		fusion.WithMetrics(fusion.Metrics{
			Requests:    metrics.RetrieverRequestsTotal,
			Unavailable: metrics.RetrievalUnavailableTotal,
			Cache:       metrics.RetrievalCacheTotal,
		}),
	}
	if cfg.Retrieval.CacheTTLSec > 0 {
		fuserOpts = append(fuserOpts, fusion.WithCache(vs.cache(cfg.Retrieval.CacheTTL(), logger)))
	}
	fuser := fusion.New(cfg.Retrieval.RetrieverTimeout(), logger, fuserOpts...)
	synthesizer := synth.New(chat, counter, cfg.Retrieval.ContextTokenBudget, logger)

	sqlRegistry := sqlengine.NewRegistry(
		sqlengine.Open, chat, cfg.SQL.MaxRows, time.Duration(cfg.SQL.QueryTimeoutSec)*time.Second, logger,
	)
	defer sqlRegistry.Close()
	catalog := router.Catalog(sqlRegistry)

	graph, closeGraph := buildGraph(cfg, chat, synthesizer, logger)
	defer closeGraph()

	queryRouter := router.New(
		retriever.NewFactory(vs.chunks, queryEmbedder), fuser, synthesizer, catalog, logger,
		router.WithGraph(graph),
		router.WithFallbackCounter(metrics.ScopeFallbacksTotal),
	)

	sessions := memory.New(memory.Config{
		TokenLimit:  cfg.Memory.TokenLimit,
		IdleTTL:     time.Duration(cfg.Memory.SessionIdleTTL) * time.Second,
		MaxSessions: cfg.Memory.MaxSessions,
	}, counter, logger, memory.WithGauge(metrics.SessionsActive))
	defer sessions.Close()

	excel := export.NewExcel(cfg.Export.Dir)
	chatAgent := agent.New(chat, queryRouter, sessions, cfg.Agent.MaxIterations, logger,
		agent.WithSQL(catalog),
		agent.WithExporter(excel),
		agent.WithPlotter(export.NewPlotter(cfg.Export.Dir)),
	)

	indexer := indexing.New(
		buildConnectors(cfg), vs.chunks, docEmbedder, counter,
		cfg.Retrieval.ChunkTokenSize, cfg.Retrieval.EmbeddingBatchLimit, logger,
	)

	healthSvc := healthuc.New(vs.pinger, docEmbedder, logger, healthuc.WithGraph(graph))

	server := chiTransport.NewServer(chiTransport.Services{
		Router:   queryRouter,
		Agent:    chatAgent,
		Indexer:  indexer,
		Registry: sqlRegistry,
		Catalog:  catalog,
		Synth:    synthesizer,
		Exporter: excel,
		Memory:   sessions,
		Health:   healthSvc,
	}, chiTransport.Options{
		APIKeys:        cfg.Auth.APIKeys,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		MaxTopK:        cfg.Retrieval.MaxTopK,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func providerConfig(cfg config.Config, model string, logger *zap.Logger) *openaiTransport.Config {
	return &openaiTransport.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       model,
		Dimensions:  cfg.Vector.Dimensions,
		Temperature: cfg.LLM.Temperature,
		Provider:    cfg.LLM.Provider,
		Timeout:     time.Duration(cfg.LLM.RequestTimeout) * time.Second,
		Logger:      logger,
	}
}

// buildEmbedder assembles the document embedder: OpenAI -> Cached -> Instrumented.
func buildEmbedder(cfg config.Config, vs *vectorStore, logger *zap.Logger) *embeddinguc.InstrumentedEmbedder {
	var embedder domain.Embedder = openaiTransport.NewEmbedder(providerConfig(cfg, cfg.LLM.EmbedModel, logger))
	embedder = vs.cachedEmbedder(embedder, cfg.LLM.EmbedModel, logger)
	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.LLM.Provider, cfg.LLM.EmbedModel, cfg.Retrieval.EmbeddingBatchLimit, logger,
	)
}

// buildGraph returns a disabled engine unless kg.enabled is set. A driver
// that cannot be created also disables it, so kg requests fall back to vector.
func buildGraph(cfg config.Config, gen kg.Generator, s kg.Synthesizer, logger *zap.Logger) (*kg.Engine, func()) {
	pingTimeout := time.Duration(cfg.KG.PingTimeoutSec) * time.Second
	if !cfg.KG.Enabled {
		return kg.New(nil, gen, s, pingTimeout, logger), func() {}
	}

	g, err := neo4jGraph.New(neo4jGraph.Config{
		URI:      cfg.KG.URI,
		Username: cfg.KG.Username,
		Password: cfg.KG.Password,
		Database: cfg.KG.Database,
		MaxRows:  cfg.SQL.MaxRows,
	})
	if err != nil {
		logger.Error("Knowledge graph disabled", zap.Error(err))
		return kg.New(nil, gen, s, pingTimeout, logger), func() {}
	}
	logger.Info("Knowledge graph enabled", zap.String("uri", cfg.KG.URI))

	return kg.New(g, gen, s, pingTimeout, logger), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.Close(ctx); err != nil {
			logger.Warn("Failed to close graph driver", zap.Error(err))
		}
	}
}

func buildConnectors(cfg config.Config) *connectors.Registry {
	timeout := time.Duration(cfg.Connectors.HTTPTimeoutSec) * time.Second
	graphOpts := msgraph.Options{BaseURL: cfg.Connectors.GraphBaseURL, Timeout: timeout}

	reg := connectors.NewRegistry()
	reg.Register(source.Confluence, confluence.New(&http.Client{Timeout: timeout}))
	reg.Register(source.SharePoint, msgraph.NewSharePoint(graphOpts))
	reg.Register(source.OneDrive, msgraph.NewOneDrive(graphOpts))
	reg.Register(source.Teams, msgraph.NewTeams(graphOpts))
	return reg
}
