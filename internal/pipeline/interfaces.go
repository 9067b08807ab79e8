package pipeline

import (
	"context"
	"time"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
	"github.com/zegh6389/news-instagram-mcp/internal/publish"
)

// ArticleStore is the article ledger surface the orchestrator drives
type ArticleStore interface {
	RegisterDiscovery(ctx context.Context, article *models.Article) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Article, error)
	ListReady(ctx context.Context, state models.ArticleState, now time.Time, limit int) ([]*models.Article, error)
	Transition(ctx context.Context, id string, from, to models.ArticleState) (bool, error)
	MarkAnalyzed(ctx context.Context, id, category string, score float64, keywords string) (bool, error)
	MarkRejected(ctx context.Context, id, reason string) (bool, error)
	RecordAnalysisFailure(ctx context.Context, id string, nextAttempt time.Time, reason string) (bool, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Article, error)
	MarkExpired(ctx context.Context, id string) (bool, error)
}

// PostStore is the post ledger surface the orchestrator drives
type PostStore interface {
	Spawn(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListReady(ctx context.Context, state models.PostState, now time.Time, limit int) ([]*models.Post, error)
	ListSchedulable(ctx context.Context, limit int) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	ListStuckPublishing(ctx context.Context, cutoff time.Time, limit int) ([]*models.Post, error)
	Transition(ctx context.Context, id string, from, to models.PostState) (bool, error)
	MarkRendered(ctx context.Context, id, mediaRef, caption string) (bool, error)
	RecordRenderFailure(ctx context.Context, id string, nextAttempt time.Time, reason string) (bool, error)
	SetSchedule(ctx context.Context, id string, at time.Time) (bool, error)
	MarkPublished(ctx context.Context, id string, at time.Time, externalRef string) (bool, error)
	RecordPublishFailure(ctx context.Context, id string, nextAttempt time.Time, reason string) (bool, error)
	DeferPublish(ctx context.Context, id string, nextAttempt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id, reason string, countAttempt bool) (bool, error)
	Cancel(ctx context.Context, id, reason string) (bool, error)
	CancelActiveForArticle(ctx context.Context, articleID, reason string) (int64, error)
}

// FetchRunStore records discovery pass bookkeeping
type FetchRunStore interface {
	Create(ctx context.Context, run *models.FetchRun) error
	Complete(ctx context.Context, run *models.FetchRun) error
}

// Assigner assigns publish times to rendered posts
type Assigner interface {
	Assign(ctx context.Context, post *models.Post) (time.Time, error)
}

// Gate runs rate-limited publish attempts and resolves interrupted ones
type Gate interface {
	Do(ctx context.Context, post *models.Post) publish.Attempt
	Recover(ctx context.Context, post *models.Post) (publish.Attempt, error)
}
