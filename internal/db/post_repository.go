package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
)

var preTerminalPostStates = []models.PostState{
	models.PostDrafted,
	models.PostRendered,
	models.PostScheduled,
	models.PostPublishing,
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// Spawn creates a new post candidate. The partial unique index on
// (article_id) where is_active rejects a second live candidate for the
// same article, which makes spawning idempotent under concurrency.
func (r *PostRepository) Spawn(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrActiveCandidateExists
		}
		return err
	}
	return nil
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// ListReady retrieves posts in a given state whose retry backoff window
// has passed, oldest first
func (r *PostRepository) ListReady(ctx context.Context, state models.PostState, now time.Time, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// List retrieves posts with optional state filter, newest first
func (r *PostRepository) List(ctx context.Context, state models.PostState, limit, offset int) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var posts []*models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ListSchedulable retrieves rendered posts ordered by the owning
// article's importance score, highest first. The ordering is the
// tie-break between posts competing for the same slot.
func (r *PostRepository) ListSchedulable(ctx context.Context, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Joins("JOIN news_articles ON news_articles.id = instagram_posts.article_id").
		Where("instagram_posts.state = ?", models.PostRendered).
		Order("news_articles.importance_score DESC").
		Order("instagram_posts.created_at ASC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ListDue retrieves scheduled posts whose publish time and backoff
// window have both passed
func (r *PostRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("state = ? AND scheduled_at <= ?", models.PostScheduled, now).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ListStuckPublishing retrieves posts sitting in the publishing state
// since before the cutoff. An attempt holds that state only for the
// duration of the external call, so anything older was interrupted
// mid-attempt and needs recovery.
func (r *PostRepository) ListStuckPublishing(ctx context.Context, cutoff time.Time, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", models.PostPublishing, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// Transition moves a post from one state to another with a guard on the
// current state
func (r *PostRepository) Transition(ctx context.Context, id string, from, to models.PostState) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("invalid post transition %s -> %s", from, to)
	}
	updates := map[string]interface{}{"state": to}
	if to.Terminal() {
		updates["is_active"] = false
	}
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRendered records the render output and advances to rendered
func (r *PostRepository) MarkRendered(ctx context.Context, id, mediaRef, caption string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state = ?", id, models.PostDrafted).
		Updates(map[string]interface{}{
			"state":           models.PostRendered,
			"media_ref":       mediaRef,
			"caption":         caption,
			"next_attempt_at": nil,
			"last_error":      nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordRenderFailure counts a failed render attempt and arms the
// backoff window; the post stays drafted for a later render sweep
func (r *PostRepository) RecordRenderFailure(ctx context.Context, id string, nextAttempt time.Time, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state = ?", id, models.PostDrafted).
		Updates(map[string]interface{}{
			"retry_count":     gorm.Expr("retry_count + 1"),
			"next_attempt_at": nextAttempt,
			"last_error":      reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetSchedule assigns a publish time. Valid from rendered (first
// assignment) and from scheduled (monotonic re-assignment).
func (r *PostRepository) SetSchedule(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state IN ?", id, []models.PostState{models.PostRendered, models.PostScheduled}).
		Updates(map[string]interface{}{
			"state":        models.PostScheduled,
			"scheduled_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPublished records a successful publish. published_at is the
// actual publish time, not the scheduled time.
func (r *PostRepository) MarkPublished(ctx context.Context, id string, at time.Time, externalRef string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state = ?", id, models.PostPublishing).
		Updates(map[string]interface{}{
			"state":             models.PostPublished,
			"published_at":      at,
			"external_post_ref": externalRef,
			"is_active":         false,
			"last_error":        nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordPublishFailure returns a publishing post to scheduled after a
// transient failure, counting the attempt and arming the backoff window
func (r *PostRepository) RecordPublishFailure(ctx context.Context, id string, nextAttempt time.Time, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state = ?", id, models.PostPublishing).
		Updates(map[string]interface{}{
			"state":           models.PostScheduled,
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"next_attempt_at": nextAttempt,
			"last_error":      reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeferPublish returns a publishing post to scheduled without counting
// an attempt; used when the rate ceiling is already reached
func (r *PostRepository) DeferPublish(ctx context.Context, id string, nextAttempt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state = ?", id, models.PostPublishing).
		Updates(map[string]interface{}{
			"state":           models.PostScheduled,
			"next_attempt_at": nextAttempt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed moves a post to the failed terminal state with a reason.
// countAttempt is set when the failure came from a publish attempt.
func (r *PostRepository) MarkFailed(ctx context.Context, id, reason string, countAttempt bool) (bool, error) {
	updates := map[string]interface{}{
		"state":      models.PostFailed,
		"is_active":  false,
		"last_error": reason,
	}
	if countAttempt {
		updates["attempt_count"] = gorm.Expr("attempt_count + 1")
	}
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state IN ?", id, preTerminalPostStates).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Cancel moves a post to the cancelled terminal state
func (r *PostRepository) Cancel(ctx context.Context, id, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state IN ?", id, preTerminalPostStates).
		Updates(map[string]interface{}{
			"state":      models.PostCancelled,
			"is_active":  false,
			"last_error": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CancelActiveForArticle cancels every non-terminal post belonging to an
// article; used when the article expires or is rejected after spawn
func (r *PostRepository) CancelActiveForArticle(ctx context.Context, articleID, reason string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("article_id = ? AND state IN ?", articleID, preTerminalPostStates).
		Updates(map[string]interface{}{
			"state":      models.PostCancelled,
			"is_active":  false,
			"last_error": reason,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ActiveTimes returns the occupied publish times in [from, to): the
// scheduled times of scheduled/publishing posts and the actual publish
// times of published posts. excludeID removes the post being scheduled
// from its own constraint set.
func (r *PostRepository) ActiveTimes(ctx context.Context, from, to time.Time, excludeID string) ([]time.Time, error) {
	var scheduled []time.Time
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("state IN ? AND scheduled_at >= ? AND scheduled_at < ?",
			[]models.PostState{models.PostScheduled, models.PostPublishing}, from, to).
		Where("id <> ?", excludeID).
		Pluck("scheduled_at", &scheduled).Error; err != nil {
		return nil, err
	}

	var published []time.Time
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("state = ? AND published_at >= ? AND published_at < ?", models.PostPublished, from, to).
		Where("id <> ?", excludeID).
		Pluck("published_at", &published).Error; err != nil {
		return nil, err
	}

	times := append(scheduled, published...)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

// CountByState returns post counts grouped by state
func (r *PostRepository) CountByState(ctx context.Context) (map[models.PostState]int64, error) {
	type row struct {
		State models.PostState
		Count int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[models.PostState]int64, len(rows))
	for _, rw := range rows {
		counts[rw.State] = rw.Count
	}
	return counts, nil
}
