package db

import (
	"context"

	"github.com/zegh6389/news-instagram-mcp/internal/models"
)

// FetchRunRepository provides fetch-run bookkeeping operations
type FetchRunRepository struct {
	*Repository
}

// NewFetchRunRepository creates a new fetch run repository
func NewFetchRunRepository(repo *Repository) *FetchRunRepository {
	return &FetchRunRepository{Repository: repo}
}

// Create inserts a new fetch run record
func (r *FetchRunRepository) Create(ctx context.Context, run *models.FetchRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Complete writes the final counters of a fetch run
func (r *FetchRunRepository) Complete(ctx context.Context, run *models.FetchRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// ListRecent retrieves the most recent fetch runs
func (r *FetchRunRepository) ListRecent(ctx context.Context, limit int) ([]*models.FetchRun, error) {
	var runs []*models.FetchRun
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
