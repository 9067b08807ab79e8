package pipeline

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/analyze"
	"github.com/zegh6389/news-instagram-mcp/internal/fetch"
	"github.com/zegh6389/news-instagram-mcp/internal/render"
	"github.com/zegh6389/news-instagram-mcp/internal/sources"
	"github.com/zegh6389/news-instagram-mcp/pkg/config"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// Orchestrator drives every article and post through the pipeline state
// machine. It runs independent periodic sweeps; entity transitions
// within a sweep run concurrently, but transitions on the same entity
// are serialized.
type Orchestrator struct {
	cfg     *config.PipelineConfig
	posting *config.PostingConfig

	registry *sources.Registry
	fetcher  fetch.Fetcher
	analyzer analyze.Analyzer
	renderer render.Renderer

	articles ArticleStore
	posts    PostStore
	runs     FetchRunStore
	sched    Assigner
	gate     Gate

	locks  *keyedMutex
	now    func() time.Time
	logger *zap.Logger

	discoveredCounter metric.Int64Counter
	dedupedCounter    metric.Int64Counter
	publishedCounter  metric.Int64Counter
	failedCounter     metric.Int64Counter
}

// Deps bundles the orchestrator's collaborators
type Deps struct {
	Registry *sources.Registry
	Fetcher  fetch.Fetcher
	Analyzer analyze.Analyzer
	Renderer render.Renderer
	Articles ArticleStore
	Posts    PostStore
	Runs     FetchRunStore
	Sched    Assigner
	Gate     Gate
}

// New creates an orchestrator
func New(cfg *config.PipelineConfig, posting *config.PostingConfig, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:               cfg,
		posting:           posting,
		registry:          deps.Registry,
		fetcher:           deps.Fetcher,
		analyzer:          deps.Analyzer,
		renderer:          deps.Renderer,
		articles:          deps.Articles,
		posts:             deps.Posts,
		runs:              deps.Runs,
		sched:             deps.Sched,
		gate:              deps.Gate,
		locks:             newKeyedMutex(),
		now:               time.Now,
		logger:            logging.WithComponent("orchestrator"),
		discoveredCounter: telemetry.Counter("pipeline_articles_discovered_total", "Articles accepted by the fingerprint index"),
		dedupedCounter:    telemetry.Counter("pipeline_articles_deduped_total", "Discoveries discarded as duplicates"),
		publishedCounter:  telemetry.Counter("pipeline_posts_published_total", "Posts published successfully"),
		failedCounter:     telemetry.Counter("pipeline_posts_failed_total", "Posts moved to the failed state"),
	}
}

type sweep struct {
	name     string
	interval time.Duration
	run      func(context.Context)
}

// Run starts the sweep loops and blocks until the context is cancelled
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("Starting pipeline orchestrator",
		zap.Int("sources", o.registry.Len()),
		zap.Int("workers", o.cfg.WorkerCount))

	sweeps := []sweep{
		{"discovery", o.cfg.DiscoveryInterval, o.discoverySweep},
		{"analysis", o.cfg.AnalysisInterval, o.analysisSweep},
		{"render", o.cfg.RenderInterval, o.renderSweep},
		{"schedule", o.cfg.ScheduleInterval, o.scheduleSweep},
		{"publish", o.cfg.PublishInterval, o.publishSweep},
		{"expiry", o.cfg.ExpiryInterval, o.expirySweep},
	}

	var wg sync.WaitGroup
	for _, s := range sweeps {
		wg.Add(1)
		go func(s sweep) {
			defer wg.Done()
			o.sweepLoop(ctx, s)
		}(s)
	}
	wg.Wait()

	o.logger.Info("Pipeline orchestrator stopped")
	return ctx.Err()
}

// sweepLoop runs a sweep once at startup, then on every tick
func (o *Orchestrator) sweepLoop(ctx context.Context, s sweep) {
	logger := o.logger.With(zap.String("sweep", s.name))
	logger.Debug("Sweep loop started", zap.Duration("interval", s.interval))

	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Sweep loop stopped")
			return
		case <-ticker.C:
			start := o.now()
			s.run(ctx)
			logger.Debug("Sweep completed", zap.Duration("took", o.now().Sub(start)))
		}
	}
}

// maxRetryDelay caps the doubling backoff for analysis and render
// retries.
const maxRetryDelay = 30 * time.Minute

// retryDelay returns the backoff delay after the given failure number
// (1-based): the configured base doubled per failure, capped.
func (o *Orchestrator) retryDelay(failure int) time.Duration {
	delay := o.cfg.RetryBackoff
	for i := 1; i < failure; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

// forEach processes items with bounded concurrency. fn receives the
// item index; per-entity locks are taken inside the callbacks.
func (o *Orchestrator) forEach(ctx context.Context, n int, fn func(i int)) {
	sem := make(chan struct{}, o.cfg.WorkerCount)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}
