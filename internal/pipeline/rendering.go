package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// renderSweep turns drafted posts into rendered captions and media refs
func (o *Orchestrator) renderSweep(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.render_sweep")
	defer span.End()

	posts, err := o.posts.ListReady(ctx, models.PostDrafted, o.now().UTC(), o.cfg.BatchSize)
	if err != nil {
		o.logger.Error("Failed to list drafted posts", zap.Error(err))
		return
	}

	o.forEach(ctx, len(posts), func(i int) {
		o.renderPost(ctx, posts[i])
	})
}

func (o *Orchestrator) renderPost(ctx context.Context, post *models.Post) {
	release := o.locks.Lock("post:" + post.ID)
	defer release()

	logger := o.logger.With(
		zap.String("post_id", post.ID),
		zap.String("article_id", post.ArticleID))

	article, err := o.articles.GetByID(ctx, post.ArticleID)
	if err != nil {
		logger.Error("Failed to load article for rendering", zap.Error(err))
		return
	}
	if article == nil || article.State.Terminal() {
		// The source article fell out of the pipeline; the candidate
		// has nothing to render from.
		if _, cerr := o.posts.Cancel(ctx, post.ID, "source article no longer available"); cerr != nil {
			logger.Error("Failed to cancel orphaned post", zap.Error(cerr))
		}
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	out, err := o.renderer.Render(callCtx, article, post.TemplateKind)
	cancel()

	if err != nil {
		if post.RetryCount+1 >= o.cfg.MaxRetries {
			logger.Warn("Render retries exhausted, failing post",
				zap.Int("retries", post.RetryCount+1), zap.Error(err))
			if _, ferr := o.posts.MarkFailed(ctx, post.ID, "render retries exhausted: "+err.Error(), false); ferr != nil {
				logger.Error("Failed to mark post failed", zap.Error(ferr))
			}
			o.failedCounter.Add(ctx, 1)
			return
		}
		nextAttempt := o.now().UTC().Add(o.retryDelay(post.RetryCount + 1))
		logger.Warn("Render failed, will retry",
			zap.Time("next_attempt_at", nextAttempt), zap.Error(err))
		if _, rerr := o.posts.RecordRenderFailure(ctx, post.ID, nextAttempt, err.Error()); rerr != nil {
			logger.Error("Failed to record render failure", zap.Error(rerr))
		}
		return
	}

	ok, err := o.posts.MarkRendered(ctx, post.ID, out.MediaRef, out.Caption)
	if err != nil {
		logger.Error("Failed to mark post rendered", zap.Error(err))
		return
	}
	if ok {
		logger.Info("Post rendered",
			zap.String("media_ref", out.MediaRef),
			zap.Int("caption_len", len(out.Caption)))
	}
}
