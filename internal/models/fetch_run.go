package models

import (
	"database/sql"
	"time"
)

// FetchRun records one discovery pass over a single source
type FetchRun struct {
	ID                int64          `gorm:"primaryKey;autoIncrement;column:id"`
	SourceID          string         `gorm:"type:varchar(64);not null;index;column:source_id"`
	StartedAt         time.Time      `gorm:"not null;index;column:started_at"`
	CompletedAt       sql.NullTime   `gorm:"column:completed_at"`
	ArticlesFound     int            `gorm:"not null;default:0;column:articles_found"`
	ArticlesNew       int            `gorm:"not null;default:0;column:articles_new"`
	ArticlesDuplicate int            `gorm:"not null;default:0;column:articles_duplicate"`
	ArticlesFailed    int            `gorm:"not null;default:0;column:articles_failed"`
	Error             sql.NullString `gorm:"type:text;column:error"`
}

// TableName specifies the table name for FetchRun
func (FetchRun) TableName() string {
	return "fetch_runs"
}
