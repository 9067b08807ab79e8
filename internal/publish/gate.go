package publish

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/internal/rate"
	"github.com/zegh6389/news-instagram-mcp/pkg/config"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
)

// Outcome is the result class of one gate attempt
type Outcome int

const (
	// OutcomePublished: the post went out; ref and publish time are set.
	OutcomePublished Outcome = iota
	// OutcomeDeferred: a rate ceiling was reached before the attempt;
	// nothing was consumed and no attempt was counted.
	OutcomeDeferred
	// OutcomeTransient: the attempt failed but will be retried after
	// the backoff window.
	OutcomeTransient
	// OutcomeFailed: permanent failure or attempts exhausted; terminal.
	OutcomeFailed
)

// Attempt is the full result of one pass through the gate
type Attempt struct {
	Outcome       Outcome
	ExternalRef   string
	PublishedAt   time.Time
	NextAttemptAt time.Time
	Reason        string
}

// Gate is the only component that talks to the publisher. It consults
// the rate ledger before every attempt and consumes a ledger slot for
// every attempt made, successful or not.
type Gate struct {
	publisher   Publisher
	ledger      rate.Ledger
	account     string
	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int
	callTimeout time.Duration
	deferDelay  time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewGate creates a publish gate
func NewGate(publisher Publisher, ledger rate.Ledger, cfg *config.PublisherConfig) *Gate {
	return &Gate{
		publisher:   publisher,
		ledger:      ledger,
		account:     cfg.Account,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		maxAttempts: cfg.MaxAttempts,
		callTimeout: cfg.RequestTimeout,
		deferDelay:  5 * time.Minute,
		now:         time.Now,
		logger:      logging.WithComponent("publish-gate"),
	}
}

// Do runs one publish attempt for a post already in the publishing
// state. The caller persists the resulting transition.
func (g *Gate) Do(ctx context.Context, post *models.Post) Attempt {
	now := g.now().UTC()

	allowed, err := g.ledger.Reserve(ctx, g.account, now)
	if err != nil {
		// Ledger trouble must not bypass the ceiling; defer instead.
		g.logger.Warn("Rate ledger unavailable, deferring attempt",
			zap.String("post_id", post.ID), zap.Error(err))
		return Attempt{
			Outcome:       OutcomeDeferred,
			NextAttemptAt: now.Add(g.deferDelay),
			Reason:        "rate ledger unavailable: " + err.Error(),
		}
	}
	if !allowed {
		g.logger.Info("Rate ceiling reached, deferring attempt",
			zap.String("post_id", post.ID))
		return Attempt{
			Outcome:       OutcomeDeferred,
			NextAttemptAt: now.Add(g.deferDelay),
			Reason:        "rate ceiling reached",
		}
	}

	attemptNum := post.AttemptCount + 1

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	result, err := g.publisher.Publish(callCtx, post.MediaRef, post.Caption, post.ID)
	cancel()

	if err == nil {
		return Attempt{
			Outcome:     OutcomePublished,
			ExternalRef: result.ExternalRef,
			PublishedAt: g.now().UTC(),
		}
	}

	// A timed-out attempt may still have gone through. Ask the service
	// before classifying, to avoid a blind retry double-posting.
	if errors.Is(err, context.DeadlineExceeded) {
		if found := g.verify(ctx, post.ID); found != nil {
			g.logger.Info("Timed-out attempt had succeeded",
				zap.String("post_id", post.ID),
				zap.String("external_ref", found.ExternalRef))
			return Attempt{
				Outcome:     OutcomePublished,
				ExternalRef: found.ExternalRef,
				PublishedAt: g.now().UTC(),
			}
		}
	}

	if IsPermanent(err) {
		return Attempt{
			Outcome: OutcomeFailed,
			Reason:  err.Error(),
		}
	}

	if attemptNum >= g.maxAttempts {
		return Attempt{
			Outcome: OutcomeFailed,
			Reason:  "max publish attempts reached: " + err.Error(),
		}
	}

	return Attempt{
		Outcome:       OutcomeTransient,
		NextAttemptAt: g.now().UTC().Add(g.Backoff(attemptNum)),
		Reason:        err.Error(),
	}
}

// Recover resolves a post stranded in the publishing state by an
// interrupted attempt (process crash, or a failed outcome write). The
// service is asked for the post's idempotency key first, so an attempt
// that went out before the interruption completes instead of
// double-posting. A lookup error returns the post to the next sweep.
func (g *Gate) Recover(ctx context.Context, post *models.Post) (Attempt, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	found, err := g.publisher.Lookup(lookupCtx, post.ID)
	cancel()
	if err != nil {
		return Attempt{}, err
	}

	now := g.now().UTC()
	if found != nil {
		g.logger.Info("Interrupted attempt had succeeded",
			zap.String("post_id", post.ID),
			zap.String("external_ref", found.ExternalRef))
		return Attempt{
			Outcome:     OutcomePublished,
			ExternalRef: found.ExternalRef,
			PublishedAt: now,
		}, nil
	}

	attemptNum := post.AttemptCount + 1
	if attemptNum >= g.maxAttempts {
		return Attempt{
			Outcome: OutcomeFailed,
			Reason:  "max publish attempts reached: interrupted attempt left no record",
		}, nil
	}
	return Attempt{
		Outcome:       OutcomeTransient,
		NextAttemptAt: now.Add(g.Backoff(attemptNum)),
		Reason:        "publish attempt interrupted before completion",
	}, nil
}

func (g *Gate) verify(ctx context.Context, idempotencyKey string) *Result {
	verifyCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	found, err := g.publisher.Lookup(verifyCtx, idempotencyKey)
	if err != nil {
		g.logger.Warn("Post-timeout verification failed",
			zap.String("idempotency_key", idempotencyKey), zap.Error(err))
		return nil
	}
	return found
}

// Backoff returns the delay after the given attempt number (1-based):
// base doubled per attempt, capped.
func (g *Gate) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := g.backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= g.backoffCap {
			return g.backoffCap
		}
	}
	if delay > g.backoffCap {
		return g.backoffCap
	}
	return delay
}
