package models

import (
	"database/sql"
	"time"
)

// Article represents a discovered news article
type Article struct {
	ID              string          `gorm:"primaryKey;type:varchar(36);column:id"`
	SourceID        string          `gorm:"type:varchar(64);not null;index;column:source_id"`
	CanonicalURL    string          `gorm:"type:varchar(500);not null;column:canonical_url"`
	Fingerprint     string          `gorm:"type:varchar(64);not null;column:fingerprint"`
	Headline        string          `gorm:"type:varchar(500);not null;column:headline"`
	BodyExcerpt     string          `gorm:"type:text;column:body_excerpt"`
	PublishedAt     sql.NullTime    `gorm:"column:published_at"`
	DiscoveredAt    time.Time       `gorm:"not null;index;column:discovered_at"`
	Category        sql.NullString  `gorm:"type:varchar(50);column:category"`
	ImportanceScore sql.NullFloat64 `gorm:"type:decimal(4,3);column:importance_score"`
	Keywords        string          `gorm:"type:text;column:keywords"` // JSON-encoded list
	State           ArticleState    `gorm:"type:varchar(20);not null;index;column:state"`
	RetryCount      int             `gorm:"not null;default:0;column:retry_count"`
	NextAttemptAt   sql.NullTime    `gorm:"column:next_attempt_at"`
	LastError       sql.NullString  `gorm:"type:text;column:last_error"`

	// Relationships
	Posts []Post `gorm:"foreignKey:ArticleID;references:ID"`
}

// TableName specifies the table name for Article
func (Article) TableName() string {
	return "news_articles"
}

// Live reports whether the article still counts for fingerprint
// uniqueness. Rejected and expired articles release their fingerprint.
func (a *Article) Live() bool {
	return !a.State.Terminal()
}
