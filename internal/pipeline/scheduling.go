package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/internal/schedule"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// scheduleSweep assigns publish times to rendered posts. Posts are
// processed one at a time in importance order so that competing
// candidates resolve deterministically: each assignment sees the slots
// taken by the ones before it.
func (o *Orchestrator) scheduleSweep(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.schedule_sweep")
	defer span.End()

	posts, err := o.posts.ListSchedulable(ctx, o.cfg.BatchSize)
	if err != nil {
		o.logger.Error("Failed to list schedulable posts", zap.Error(err))
		return
	}

	for _, post := range posts {
		if ctx.Err() != nil {
			return
		}
		o.schedulePost(ctx, post)
	}
}

func (o *Orchestrator) schedulePost(ctx context.Context, post *models.Post) {
	release := o.locks.Lock("post:" + post.ID)
	defer release()

	logger := o.logger.With(zap.String("post_id", post.ID))

	at, err := o.sched.Assign(ctx, post)
	if err != nil {
		if errors.Is(err, schedule.ErrNoSlotAvailable) {
			// The calendar is full through the lookahead window. The
			// post stays rendered and competes again next sweep.
			logger.Debug("No slot available, deferring to next sweep")
			return
		}
		logger.Error("Failed to assign publish time", zap.Error(err))
		return
	}

	ok, err := o.posts.SetSchedule(ctx, post.ID, at)
	if err != nil {
		logger.Error("Failed to set schedule", zap.Error(err))
		return
	}
	if ok {
		logger.Info("Post scheduled", zap.Time("scheduled_at", at))
	}
}
