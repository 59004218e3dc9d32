package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"healthchat/internal/cache"
	"healthchat/internal/config"
	"healthchat/internal/core"
	"healthchat/internal/db"
	httpserver "healthchat/internal/http"
	"healthchat/internal/llm"
	"healthchat/internal/logging"
	"healthchat/internal/search"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "healthchat",
	Short: "Healthcare assistant chat service",
	Long: `healthchat answers health questions through a completion provider.

Every message is persisted, the conversation is kept within its token
budget, and each reply is classified for urgency and product mentions.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yaml")
	rootCmd.AddCommand(serveCmd, checkCmd, watchCmd)
}

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    httpserver.Store
	notifier *db.Notifier
	pipeline *core.Pipeline
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warnw("close failed")
		}
	}
	_ = a.logger.Sync()
}

// newApp loads configuration and wires the store, cache, providers and
// pipeline.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	switch cfg.Database.Driver {
	case "memory":
		logger.Warnw("using in-memory store; conversations are lost on restart")
		a.store = db.NewMemoryStore(nil)
	case "postgres", "":
		if cfg.Database.URL == "" {
			return nil, errors.New("DATABASE_URL must be set")
		}
		conn, err := db.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		if err := db.Migrate(ctx, conn); err != nil {
			a.Close()
			return nil, err
		}
		a.store = db.NewRepository(conn)
		a.notifier = db.NewNotifier(conn, cfg.Database.URL, cfg.Database.NotifyChannel, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	var shared core.Cache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		shared = rc
	} else {
		shared = cache.NewMemoryCache(nil)
	}

	// A nil *db.Notifier must not reach the pipeline as a non-nil interface.
	var notifier core.Notifier
	if a.notifier != nil {
		notifier = a.notifier
	}

	a.pipeline = buildPipeline(cfg, a.store, shared, notifier, logger)
	return a, nil
}

func buildPipeline(cfg *config.Config, store core.Store, shared core.Cache, notifier core.Notifier, logger *logging.Logger) *core.Pipeline {
	vocab := core.DefaultVocabulary()
	keywords := core.NewKeywordExtractor(vocab.StopWords)
	p := cfg.Pipeline

	return core.NewPipeline(core.PipelineDeps{
		Store: store,
		Summarizer: core.NewSummarizer(core.CompressorConfig{
			MaxConversationTokens: p.MaxConversationTokens,
			PriorityMessages:      p.PriorityMessages,
			SummaryTokenThreshold: p.SummaryTokenThreshold,
		}, keywords, store, nil, logger.WithField("component", "summarizer")),
		Context: core.NewContextBuilder(p.SystemPrompt, keywords, shared, p.ContextCacheTTL,
			logger.WithField("component", "context")),
		Chat: core.NewChatService(llm.NewOpenAIProvider(cfg.OpenAI), core.ChatConfig{
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
		}, nil, logger.WithField("component", "chat")),
		Classifier: core.NewClassifier(vocab),
		Recommender: core.NewRecommender(vocab, search.NewBraveClient(cfg.Search), shared, core.RecommenderConfig{
			CacheTTL:      p.ProductCacheTTL,
			SearchTimeout: cfg.Search.Timeout,
			MaxResults:    cfg.Search.MaxResults,
		}, logger.WithField("component", "products")),
		Notifier: notifier,
	}, logger.WithField("component", "pipeline"))
}
