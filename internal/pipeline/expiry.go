package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// expirySweep retires articles older than the freshness window and
// cancels any candidate still waiting on them. Expiry releases the
// article's fingerprint, so a later re-discovery of the same story is
// treated as new.
func (o *Orchestrator) expirySweep(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.expiry_sweep")
	defer span.End()

	cutoff := o.now().UTC().Add(-o.cfg.MaxArticleAge)
	articles, err := o.articles.ListStale(ctx, cutoff, o.cfg.BatchSize)
	if err != nil {
		o.logger.Error("Failed to list stale articles", zap.Error(err))
		return
	}

	o.forEach(ctx, len(articles), func(i int) {
		o.expireArticle(ctx, articles[i])
	})
}

func (o *Orchestrator) expireArticle(ctx context.Context, article *models.Article) {
	release := o.locks.Lock("article:" + article.ID)
	defer release()

	logger := o.logger.With(zap.String("article_id", article.ID))

	ok, err := o.articles.MarkExpired(ctx, article.ID)
	if err != nil {
		logger.Error("Failed to expire article", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	cancelled, err := o.posts.CancelActiveForArticle(ctx, article.ID, "article expired before publication")
	if err != nil {
		logger.Error("Failed to cancel posts for expired article", zap.Error(err))
		return
	}

	logger.Info("Article expired",
		zap.Time("discovered_at", article.DiscoveredAt),
		zap.Int64("posts_cancelled", cancelled))
}
