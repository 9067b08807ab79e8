package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/analyze"
	"github.com/zegh6389/news-instagram-mcp/internal/db"
	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/internal/render"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// analysisSweep picks up discovered articles, scores them and spawns
// post candidates for the ones that clear the importance threshold.
func (o *Orchestrator) analysisSweep(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.analysis_sweep")
	defer span.End()

	articles, err := o.articles.ListReady(ctx, models.ArticleDiscovered, o.now().UTC(), o.cfg.BatchSize)
	if err != nil {
		o.logger.Error("Failed to list discovered articles", zap.Error(err))
		return
	}

	o.forEach(ctx, len(articles), func(i int) {
		o.analyzeArticle(ctx, articles[i])
	})
}

func (o *Orchestrator) analyzeArticle(ctx context.Context, article *models.Article) {
	release := o.locks.Lock("article:" + article.ID)
	defer release()

	logger := o.logger.With(zap.String("article_id", article.ID))

	// Claim the article. Losing the claim means another worker got
	// here first; the list snapshot was stale.
	claimed, err := o.articles.Transition(ctx, article.ID, models.ArticleDiscovered, models.ArticleAnalyzing)
	if err != nil {
		logger.Error("Failed to claim article for analysis", zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	result, err := o.analyzer.Analyze(callCtx, article)
	cancel()

	if err != nil {
		if errors.Is(err, analyze.ErrAnalysisRejected) {
			logger.Info("Article rejected by analysis", zap.Error(err))
			if _, rerr := o.articles.MarkRejected(ctx, article.ID, err.Error()); rerr != nil {
				logger.Error("Failed to mark article rejected", zap.Error(rerr))
			}
			return
		}
		// Transient analysis failure. Send the article back to
		// discovered for another pass unless retries are exhausted.
		if article.RetryCount+1 >= o.cfg.MaxRetries {
			logger.Warn("Analysis retries exhausted, rejecting article",
				zap.Int("retries", article.RetryCount+1), zap.Error(err))
			if _, rerr := o.articles.MarkRejected(ctx, article.ID, "analysis retries exhausted: "+err.Error()); rerr != nil {
				logger.Error("Failed to mark article rejected", zap.Error(rerr))
			}
			return
		}
		nextAttempt := o.now().UTC().Add(o.retryDelay(article.RetryCount + 1))
		logger.Warn("Analysis failed, will retry",
			zap.Time("next_attempt_at", nextAttempt), zap.Error(err))
		if _, rerr := o.articles.RecordAnalysisFailure(ctx, article.ID, nextAttempt, err.Error()); rerr != nil {
			logger.Error("Failed to record analysis failure", zap.Error(rerr))
		}
		return
	}

	keywords, err := json.Marshal(result.Keywords)
	if err != nil {
		keywords = []byte("[]")
	}

	ok, err := o.articles.MarkAnalyzed(ctx, article.ID, result.Category, result.ImportanceScore, string(keywords))
	if err != nil {
		logger.Error("Failed to mark article analyzed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	logger.Info("Article analyzed",
		zap.String("category", result.Category),
		zap.Float64("score", result.ImportanceScore))

	if result.ImportanceScore >= o.posting.ImportanceThreshold {
		o.spawnPost(ctx, article.ID, result.ImportanceScore, logger)
	}
}

// spawnPost creates the post candidate for an analyzed article. The
// partial unique index on active posts makes this idempotent: a second
// spawn for the same article is a no-op.
func (o *Orchestrator) spawnPost(ctx context.Context, articleID string, score float64, logger *zap.Logger) {
	kind := render.KindStandard
	if score >= 0.8 {
		kind = render.KindBreaking
	}

	post := &models.Post{
		ID:           uuid.NewString(),
		ArticleID:    articleID,
		TemplateKind: kind,
		State:        models.PostDrafted,
		IsActive:     true,
		CreatedAt:    o.now().UTC(),
	}

	err := o.posts.Spawn(ctx, post)
	switch {
	case errors.Is(err, db.ErrActiveCandidateExists):
		logger.Debug("Active post candidate already exists")
	case err != nil:
		logger.Error("Failed to spawn post candidate", zap.Error(err))
	default:
		logger.Info("Post candidate spawned",
			zap.String("post_id", post.ID),
			zap.String("template_kind", kind))
	}
}
