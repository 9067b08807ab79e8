package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/analyze"
	"github.com/zegh6389/news-instagram-mcp/internal/db"
	"github.com/zegh6389/news-instagram-mcp/internal/fetch"
	"github.com/zegh6389/news-instagram-mcp/internal/pipeline"
	"github.com/zegh6389/news-instagram-mcp/internal/publish"
	"github.com/zegh6389/news-instagram-mcp/internal/rate"
	"github.com/zegh6389/news-instagram-mcp/internal/render"
	"github.com/zegh6389/news-instagram-mcp/internal/schedule"
	"github.com/zegh6389/news-instagram-mcp/internal/sources"
	"github.com/zegh6389/news-instagram-mcp/pkg/config"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

const userAgent = "news-pipeline/1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting News Pipeline")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Rate ledger: Redis-backed when configured, in-process otherwise
	limits := rate.Limits{PerHour: cfg.Publisher.HourlyCap, PerDay: cfg.Publisher.DailyCap}
	var ledger rate.Ledger
	if cfg.Redis.Enabled {
		redisLedger, err := rate.NewRedisLedger(&cfg.Redis, limits)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisLedger.Close()
		ledger = redisLedger
	} else {
		logger.Warn("No Redis configured, using in-process rate ledger")
		ledger = rate.NewMemoryLedger(limits)
	}

	// Load source and template configuration
	registry, err := sources.Load(cfg.Pipeline.SourcesFile)
	if err != nil {
		logger.Fatal("Failed to load sources", zap.Error(err))
	}

	templates, err := render.LoadTemplateSet(cfg.Pipeline.TemplatesFile)
	if err != nil {
		logger.Fatal("Failed to load templates", zap.Error(err))
	}

	// Publisher client and gate
	publisher, err := publish.NewClient(&cfg.Publisher)
	if err != nil {
		logger.Fatal("Failed to create publisher client", zap.Error(err))
	}
	gate := publish.NewGate(publisher, ledger, &cfg.Publisher)

	// Scheduler
	schedOpts, err := schedule.NewOptions(&cfg.Posting)
	if err != nil {
		logger.Fatal("Failed to build scheduler options", zap.Error(err))
	}

	repo := db.NewRepository(database.DB)
	articles := db.NewArticleRepository(repo)
	posts := db.NewPostRepository(repo)
	runs := db.NewFetchRunRepository(repo)

	scheduler := schedule.NewScheduler(schedOpts, posts)

	orchestrator := pipeline.New(&cfg.Pipeline, &cfg.Posting, pipeline.Deps{
		Registry: registry,
		Fetcher:  fetch.NewFeedFetcher(cfg.Pipeline.CallTimeout, userAgent),
		Analyzer: analyze.NewHeuristicAnalyzer(),
		Renderer: render.NewTemplateRenderer(templates),
		Articles: articles,
		Posts:    posts,
		Runs:     runs,
		Sched:    scheduler,
		Gate:     gate,
	})

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Pipeline stopped with error", zap.Error(err))
	}

	logger.Info("Pipeline exited")
}
