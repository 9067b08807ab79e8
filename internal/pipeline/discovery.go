package pipeline

import (
	"context"
	"database/sql"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/fingerprint"
	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// excerptLimit bounds the body text carried through the pipeline
const excerptLimit = 2000

// discoverySweep fetches every enabled source and registers new
// articles through the fingerprint index. A failing source is skipped
// and retried next cycle; it never aborts the sweep.
func (o *Orchestrator) discoverySweep(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.discovery_sweep")
	defer span.End()

	for _, src := range o.registry.Enabled() {
		if ctx.Err() != nil {
			return
		}
		o.discoverSource(ctx, src.ID)
	}
}

func (o *Orchestrator) discoverSource(ctx context.Context, sourceID string) {
	logger := o.logger.With(zap.String("source_id", sourceID))
	src, ok := o.registry.Get(sourceID)
	if !ok {
		return
	}

	run := &models.FetchRun{SourceID: src.ID, StartedAt: o.now().UTC()}
	if err := o.runs.Create(ctx, run); err != nil {
		logger.Error("Failed to create fetch run", zap.Error(err))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	raws, err := o.fetcher.Fetch(fetchCtx, src)
	cancel()

	if err != nil {
		logger.Warn("Source unavailable, skipping until next cycle", zap.Error(err))
		run.Error = sql.NullString{String: err.Error(), Valid: true}
		o.completeRun(ctx, run, logger)
		return
	}

	run.ArticlesFound = len(raws)
	for _, raw := range raws {
		canonical, err := fingerprint.CanonicalURL(raw.CanonicalURL)
		if err != nil {
			logger.Debug("Skipping item with invalid url", zap.Error(err))
			run.ArticlesFailed++
			continue
		}
		fp, err := fingerprint.Derive(raw.CanonicalURL, raw.Headline)
		if err != nil {
			run.ArticlesFailed++
			continue
		}

		article := &models.Article{
			ID:           uuid.NewString(),
			SourceID:     src.ID,
			CanonicalURL: canonical,
			Fingerprint:  fp,
			Headline:     strings.TrimSpace(raw.Headline),
			BodyExcerpt:  truncate(raw.Body, excerptLimit),
			DiscoveredAt: o.now().UTC(),
			State:        models.ArticleDiscovered,
		}
		if !raw.PublishedAt.IsZero() {
			article.PublishedAt = sql.NullTime{Time: raw.PublishedAt, Valid: true}
		}

		accepted, err := o.articles.RegisterDiscovery(ctx, article)
		switch {
		case err != nil:
			logger.Error("Failed to register discovery", zap.Error(err))
			run.ArticlesFailed++
		case accepted:
			o.discoveredCounter.Add(ctx, 1)
			run.ArticlesNew++
		default:
			// Same story already live in the ledger; discard without
			// touching the existing article.
			o.dedupedCounter.Add(ctx, 1)
			run.ArticlesDuplicate++
			logger.Debug("Duplicate discovery discarded",
				zap.String("fingerprint", fp),
				zap.String("url", canonical))
		}
	}

	o.completeRun(ctx, run, logger)
	logger.Info("Source fetched",
		zap.Int("found", run.ArticlesFound),
		zap.Int("new", run.ArticlesNew),
		zap.Int("duplicate", run.ArticlesDuplicate),
		zap.Int("failed", run.ArticlesFailed))
}

func (o *Orchestrator) completeRun(ctx context.Context, run *models.FetchRun, logger *zap.Logger) {
	run.CompletedAt = sql.NullTime{Time: o.now().UTC(), Valid: true}
	if err := o.runs.Complete(ctx, run); err != nil {
		logger.Error("Failed to complete fetch run", zap.Error(err))
	}
}

// truncate cuts s to at most limit bytes, backing up to a rune
// boundary so a multi-byte character is never split.
func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
