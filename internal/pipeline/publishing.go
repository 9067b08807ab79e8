package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/internal/publish"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// publishSweep pushes due posts through the publish gate
func (o *Orchestrator) publishSweep(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.publish_sweep")
	defer span.End()

	now := o.now().UTC()
	posts, err := o.posts.ListDue(ctx, now, o.cfg.BatchSize)
	if err != nil {
		o.logger.Error("Failed to list due posts", zap.Error(err))
		return
	}

	o.forEach(ctx, len(posts), func(i int) {
		o.publishPost(ctx, posts[i])
	})

	// A healthy attempt holds the publishing state for at most two
	// call windows (attempt plus verification); anything older was
	// interrupted and must be resolved so no post is stranded.
	stuck, err := o.posts.ListStuckPublishing(ctx, now.Add(-2*o.cfg.CallTimeout), o.cfg.BatchSize)
	if err != nil {
		o.logger.Error("Failed to list interrupted posts", zap.Error(err))
		return
	}

	o.forEach(ctx, len(stuck), func(i int) {
		o.recoverPost(ctx, stuck[i])
	})
}

// recoverPost resolves a post left in the publishing state by an
// interrupted attempt (process crash, or a failed outcome write). The
// gate asks the service about the post's idempotency key before
// deciding between completion and a retry.
func (o *Orchestrator) recoverPost(ctx context.Context, post *models.Post) {
	release := o.locks.Lock("post:" + post.ID)
	defer release()

	logger := o.logger.With(
		zap.String("post_id", post.ID),
		zap.String("article_id", post.ArticleID))

	// Re-read under the lock; an in-process attempt may have finished
	// while the list snapshot was in flight.
	current, err := o.posts.GetByID(ctx, post.ID)
	if err != nil {
		logger.Error("Failed to load post for recovery", zap.Error(err))
		return
	}
	if current == nil || current.State != models.PostPublishing {
		return
	}

	attempt, err := o.gate.Recover(ctx, current)
	if err != nil {
		logger.Warn("Recovery lookup failed, leaving post for next sweep", zap.Error(err))
		return
	}

	switch attempt.Outcome {
	case publish.OutcomePublished:
		ok, err := o.posts.MarkPublished(ctx, post.ID, attempt.PublishedAt, attempt.ExternalRef)
		if err != nil {
			logger.Error("Failed to mark recovered post published", zap.Error(err))
			return
		}
		if ok {
			o.publishedCounter.Add(ctx, 1)
			logger.Info("Interrupted publish completed",
				zap.String("external_ref", attempt.ExternalRef))
		}

	case publish.OutcomeTransient:
		if _, rerr := o.posts.RecordPublishFailure(ctx, post.ID, attempt.NextAttemptAt, attempt.Reason); rerr != nil {
			logger.Error("Failed to record interrupted attempt", zap.Error(rerr))
			return
		}
		logger.Warn("Interrupted publish returned to schedule",
			zap.Time("next_attempt_at", attempt.NextAttemptAt))

	case publish.OutcomeFailed:
		if _, ferr := o.posts.MarkFailed(ctx, post.ID, attempt.Reason, true); ferr != nil {
			logger.Error("Failed to mark recovered post failed", zap.Error(ferr))
			return
		}
		o.failedCounter.Add(ctx, 1)
		logger.Error("Post failed permanently", zap.String("reason", attempt.Reason))
	}
}

func (o *Orchestrator) publishPost(ctx context.Context, post *models.Post) {
	release := o.locks.Lock("post:" + post.ID)
	defer release()

	logger := o.logger.With(
		zap.String("post_id", post.ID),
		zap.String("article_id", post.ArticleID))

	// Claim the post. A cancelled or rescheduled post loses the claim
	// and drops out here.
	claimed, err := o.posts.Transition(ctx, post.ID, models.PostScheduled, models.PostPublishing)
	if err != nil {
		logger.Error("Failed to claim post for publishing", zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	attempt := o.gate.Do(ctx, post)

	switch attempt.Outcome {
	case publish.OutcomePublished:
		ok, err := o.posts.MarkPublished(ctx, post.ID, attempt.PublishedAt, attempt.ExternalRef)
		if err != nil {
			logger.Error("Failed to mark post published", zap.Error(err))
			return
		}
		if ok {
			o.publishedCounter.Add(ctx, 1)
			logger.Info("Post published",
				zap.String("external_ref", attempt.ExternalRef),
				zap.Time("published_at", attempt.PublishedAt))
		}

	case publish.OutcomeDeferred:
		// Rate ceiling reached before the attempt; no attempt was
		// consumed. Push the post back to scheduled with a retry time.
		if _, derr := o.posts.DeferPublish(ctx, post.ID, attempt.NextAttemptAt); derr != nil {
			logger.Error("Failed to defer post", zap.Error(derr))
			return
		}
		logger.Info("Publish deferred by rate ceiling",
			zap.Time("next_attempt_at", attempt.NextAttemptAt))

	case publish.OutcomeTransient:
		if _, rerr := o.posts.RecordPublishFailure(ctx, post.ID, attempt.NextAttemptAt, attempt.Reason); rerr != nil {
			logger.Error("Failed to record publish failure", zap.Error(rerr))
			return
		}
		logger.Warn("Publish attempt failed, will retry",
			zap.String("reason", attempt.Reason),
			zap.Time("next_attempt_at", attempt.NextAttemptAt))

	case publish.OutcomeFailed:
		if _, ferr := o.posts.MarkFailed(ctx, post.ID, attempt.Reason, true); ferr != nil {
			logger.Error("Failed to mark post failed", zap.Error(ferr))
			return
		}
		o.failedCounter.Add(ctx, 1)
		logger.Error("Post failed permanently", zap.String("reason", attempt.Reason))
	}
}
