package db

import (
	"errors"

	"gorm.io/gorm"
)

// ErrActiveCandidateExists is returned when spawning a post for an
// article that already has a live candidate.
var ErrActiveCandidateExists = errors.New("article already has an active post candidate")

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}
