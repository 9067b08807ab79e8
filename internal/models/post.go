package models

import (
	"database/sql"
	"time"
)

// Post represents a social post candidate generated from an article
type Post struct {
	ID            string         `gorm:"primaryKey;type:varchar(36);column:id"`
	ArticleID     string         `gorm:"type:varchar(36);not null;index;column:article_id"`
	TemplateKind  string         `gorm:"type:varchar(50);not null;column:template_kind"`
	Caption       string         `gorm:"type:text;column:caption"`
	MediaRef      string         `gorm:"type:varchar(500);column:media_ref"`
	ScheduledAt   sql.NullTime   `gorm:"index;column:scheduled_at"`
	PublishedAt   sql.NullTime   `gorm:"index;column:published_at"`
	ExternalRef   sql.NullString `gorm:"type:varchar(200);column:external_post_ref"`
	AttemptCount  int            `gorm:"not null;default:0;column:attempt_count"`
	RetryCount    int            `gorm:"not null;default:0;column:retry_count"`
	NextAttemptAt sql.NullTime   `gorm:"column:next_attempt_at"`
	LastError     sql.NullString `gorm:"type:text;column:last_error"`
	State         PostState      `gorm:"type:varchar(20);not null;index;column:state"`
	// IsActive is true from creation until a terminal state. A partial
	// unique index on (article_id) where is_active enforces one live
	// candidate per article across concurrent workers.
	IsActive  bool      `gorm:"not null;default:true;column:is_active"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;index;column:updated_at"`

	// Relationships
	Article *Article `gorm:"foreignKey:ArticleID;references:ID"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "instagram_posts"
}
