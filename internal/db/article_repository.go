package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
)

// ArticleRepository provides article-related database operations
type ArticleRepository struct {
	*Repository
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(repo *Repository) *ArticleRepository {
	return &ArticleRepository{Repository: repo}
}

// RegisterDiscovery inserts a newly discovered article unless a live
// article already holds the same fingerprint. Returns false when the
// fingerprint is a duplicate; the caller discards the discovery without
// touching the existing article.
func (r *ArticleRepository) RegisterDiscovery(ctx context.Context, article *models.Article) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(article)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetByID retrieves an article by ID
func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	var article models.Article
	if err := r.db.WithContext(ctx).First(&article, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &article, nil
}

// ListReady retrieves articles in a given state whose retry backoff
// window has passed, oldest first
func (r *ArticleRepository) ListReady(ctx context.Context, state models.ArticleState, now time.Time, limit int) ([]*models.Article, error) {
	var articles []*models.Article
	if err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("discovered_at ASC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// List retrieves articles with optional state filter, newest first
func (r *ArticleRepository) List(ctx context.Context, state models.ArticleState, limit, offset int) ([]*models.Article, error) {
	q := r.db.WithContext(ctx).Order("discovered_at DESC").Limit(limit).Offset(offset)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var articles []*models.Article
	if err := q.Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// Transition moves an article from one state to another with a guard on
// the current state. Returns false when the article was not in the
// expected state (another worker moved it first).
func (r *ArticleRepository) Transition(ctx context.Context, id string, from, to models.ArticleState) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("invalid article transition %s -> %s", from, to)
	}
	res := r.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkAnalyzed records the analysis result and advances to analyzed
func (r *ArticleRepository) MarkAnalyzed(ctx context.Context, id, category string, score float64, keywords string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ? AND state = ?", id, models.ArticleAnalyzing).
		Updates(map[string]interface{}{
			"state":            models.ArticleAnalyzed,
			"category":         category,
			"importance_score": score,
			"keywords":         keywords,
			"next_attempt_at":  nil,
			"last_error":       nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkRejected moves an article to the rejected terminal state with a reason
func (r *ArticleRepository) MarkRejected(ctx context.Context, id, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ? AND state IN ?", id, []models.ArticleState{models.ArticleDiscovered, models.ArticleAnalyzing}).
		Updates(map[string]interface{}{
			"state":      models.ArticleRejected,
			"last_error": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordAnalysisFailure returns an analyzing article to discovered for a
// later retry, recording the failure reason and arming the backoff window
func (r *ArticleRepository) RecordAnalysisFailure(ctx context.Context, id string, nextAttempt time.Time, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ? AND state = ?", id, models.ArticleAnalyzing).
		Updates(map[string]interface{}{
			"state":           models.ArticleDiscovered,
			"retry_count":     gorm.Expr("retry_count + 1"),
			"next_attempt_at": nextAttempt,
			"last_error":      reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListStale retrieves articles stuck in pre-analysis states since before
// the cutoff; the expiry sweep marks them expired
func (r *ArticleRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Article, error) {
	var articles []*models.Article
	if err := r.db.WithContext(ctx).
		Where("state IN ? AND discovered_at < ?", []models.ArticleState{models.ArticleDiscovered, models.ArticleAnalyzing}, cutoff).
		Order("discovered_at ASC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// MarkExpired moves a stale article to the expired terminal state
func (r *ArticleRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ? AND state IN ?", id, []models.ArticleState{models.ArticleDiscovered, models.ArticleAnalyzing}).
		Updates(map[string]interface{}{
			"state":      models.ArticleExpired,
			"last_error": "exceeded max article age before analysis",
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountByState returns article counts grouped by state
func (r *ArticleRepository) CountByState(ctx context.Context) (map[models.ArticleState]int64, error) {
	type row struct {
		State models.ArticleState
		Count int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.Article{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[models.ArticleState]int64, len(rows))
	for _, rw := range rows {
		counts[rw.State] = rw.Count
	}
	return counts, nil
}
