package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/pkg/config"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
)

// ErrNoSlotAvailable means no slot exists within the look-ahead window.
// A deferral, not a failure: the post stays rendered and is retried on
// the next scheduling pass.
var ErrNoSlotAvailable = errors.New("no publish slot available within look-ahead window")

// Options are the scheduling policy knobs
type Options struct {
	PreferredTimes []TimeOfDay
	MinInterval    time.Duration
	DailyCap       int
	LookaheadDays  int
	Location       *time.Location
}

// NewOptions resolves the posting configuration into scheduler options
func NewOptions(cfg *config.PostingConfig) (*Options, error) {
	times, err := ParseTimes(cfg.PreferredTimes)
	if err != nil {
		return nil, fmt.Errorf("invalid preferred_times: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid posting_timezone: %w", err)
	}
	return &Options{
		PreferredTimes: times,
		MinInterval:    cfg.MinInterval,
		DailyCap:       cfg.MaxPostsPerDay,
		LookaheadDays:  cfg.LookaheadDays,
		Location:       loc,
	}, nil
}

// PostTimes supplies the occupied publish times that constrain a slot
// decision. The constraint set can change between calls, so the
// scheduler queries it fresh for every decision and never caches slots.
type PostTimes interface {
	ActiveTimes(ctx context.Context, from, to time.Time, excludeID string) ([]time.Time, error)
}

// Scheduler assigns publish times to rendered posts
type Scheduler struct {
	opts   *Options
	posts  PostTimes
	now    func() time.Time
	logger *zap.Logger
}

// NewScheduler creates a scheduler
func NewScheduler(opts *Options, posts PostTimes) *Scheduler {
	return &Scheduler{
		opts:   opts,
		posts:  posts,
		now:    time.Now,
		logger: logging.WithComponent("scheduler"),
	}
}

// Assign picks the earliest preferred slot that satisfies the minimum
// interval and daily cap, looking ahead a bounded number of days.
// Re-assignment is monotonic: an already-scheduled post never moves to
// an earlier time.
func (s *Scheduler) Assign(ctx context.Context, post *models.Post) (time.Time, error) {
	now := s.now().In(s.opts.Location)

	floor := now
	if post.ScheduledAt.Valid {
		if cur := post.ScheduledAt.Time.In(s.opts.Location); cur.After(floor) {
			floor = cur
		}
	}

	from := startOfDay(now)
	to := from.AddDate(0, 0, s.opts.LookaheadDays+1)

	existing, err := s.posts.ActiveTimes(ctx, from, to, post.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load occupied slots: %w", err)
	}

	slot, err := s.pick(now, floor, existing)
	if err != nil {
		return time.Time{}, err
	}

	s.logger.Debug("Slot assigned",
		zap.String("post_id", post.ID),
		zap.Time("slot", slot))
	return slot, nil
}

// pick is the pure slot search over a fixed constraint set
func (s *Scheduler) pick(now, floor time.Time, existing []time.Time) (time.Time, error) {
	dayCounts := make(map[string]int)
	for _, t := range existing {
		dayCounts[dayKey(t.In(s.opts.Location))]++
	}

	base := startOfDay(now)
	for day := 0; day <= s.opts.LookaheadDays; day++ {
		date := base.AddDate(0, 0, day)
		if dayCounts[dayKey(date)] >= s.opts.DailyCap {
			continue
		}
		for _, tod := range s.opts.PreferredTimes {
			slot := tod.At(date)
			if !slot.After(now) {
				continue
			}
			if slot.Before(floor) {
				continue
			}
			if s.conflicts(slot, existing) {
				continue
			}
			return slot, nil
		}
	}

	return time.Time{}, ErrNoSlotAvailable
}

func (s *Scheduler) conflicts(slot time.Time, existing []time.Time) bool {
	for _, t := range existing {
		delta := slot.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if delta < s.opts.MinInterval {
			return true
		}
	}
	return false
}
