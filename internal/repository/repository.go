// Package repository contains the PostgreSQL and Redis data access layer.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"storyweaver-server/internal/models"
)

// StoryRepository manages the story and chapter records.
type StoryRepository interface {
	// Create persists a new story shell (no chapters yet) and fills in its ID.
	Create(ctx context.Context, story *models.Story) error

	// GetByID returns a story with its full ordered chapter history.
	// Returns models.ErrNotFound when no such story exists.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error)

	// ListByOwner returns the owner's stories, most recently updated first,
	// without chapter bodies.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Story, error)

	// AppendChapter durably appends a chapter and upserts the progress row in
	// one transaction. A sequence-number collision from a concurrent append
	// maps to models.ErrConflict.
	AppendChapter(ctx context.Context, chapter *models.Chapter, progress *models.StoryProgress) error
}

// StoryProgressRepository reads the denormalized dashboard view.
type StoryProgressRepository interface {
	// GetByStoryID returns the progress row for a story, or models.ErrNotFound.
	GetByStoryID(ctx context.Context, storyID uuid.UUID) (*models.StoryProgress, error)

	// ListProgressByOwner returns progress rows keyed by story ID for
	// dashboard joins.
	ListProgressByOwner(ctx context.Context, ownerID uuid.UUID) (map[uuid.UUID]models.StoryProgress, error)
}

// UserRepository manages registered accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// TokenRepository stores issued token identifiers so refresh tokens can be
// validated and revoked.
type TokenRepository interface {
	// SetToken records both halves of a token pair with their TTLs.
	SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error

	// GetUserIDByRefresh resolves a refresh token UUID to its user, or
	// models.ErrTokenNotFound when it was never issued or already revoked.
	GetUserIDByRefresh(ctx context.Context, refreshUUID string) (uuid.UUID, error)

	// DeleteTokens revokes a token pair. Returns the number of keys removed.
	DeleteTokens(ctx context.Context, accessUUID, refreshUUID string) (int64, error)
}

// nowUTC keeps persistence timestamps uniform.
func nowUTC() time.Time {
	return time.Now().UTC()
}
