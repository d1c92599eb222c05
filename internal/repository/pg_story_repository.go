package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"storyweaver-server/internal/models"
)

// uniqueViolationCode is the PostgreSQL error code for unique constraint
// violations; on the chapter sequence constraint it signals a lost race
// between two concurrent appends.
const uniqueViolationCode = "23505"

// Compile-time checks to ensure implementations satisfy the interfaces.
var (
	_ StoryRepository         = (*pgStoryRepository)(nil)
	_ StoryProgressRepository = (*pgStoryRepository)(nil)
)

type pgStoryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgStoryRepository creates the PostgreSQL-backed story repository. The
// returned value implements both StoryRepository and StoryProgressRepository,
// since the progress row lives in the same write transaction as the chapter
// log.
func NewPgStoryRepository(pool *pgxpool.Pool, logger *zap.Logger) *pgStoryRepository {
	return &pgStoryRepository{
		pool:   pool,
		logger: logger.Named("PgStoryRepo"),
	}
}

const createStoryQuery = `
INSERT INTO stories (owner_id, genre, title, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
RETURNING id`

const getStoryQuery = `
SELECT id, owner_id, genre, title, last_emotion, is_completed, created_at, updated_at
FROM stories
WHERE id = $1`

const listStoriesQuery = `
SELECT id, owner_id, genre, title, last_emotion, is_completed, created_at, updated_at
FROM stories
WHERE owner_id = $1
ORDER BY updated_at DESC
LIMIT $2`

const listChaptersQuery = `
SELECT id, story_id, sequence_number, content, user_input, emotion, choices, created_at
FROM chapters
WHERE story_id = $1
ORDER BY sequence_number ASC`

const insertChapterQuery = `
INSERT INTO chapters (story_id, sequence_number, content, user_input, emotion, choices, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

const touchStoryQuery = `
UPDATE stories SET last_emotion = COALESCE($2, last_emotion), updated_at = $3
WHERE id = $1`

const upsertProgressQuery = `
INSERT INTO story_progress (story_id, owner_id, current_chapter, emotional_state, last_interaction_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (story_id, owner_id) DO UPDATE SET
    current_chapter = EXCLUDED.current_chapter,
    emotional_state = EXCLUDED.emotional_state,
    last_interaction_at = EXCLUDED.last_interaction_at`

const getProgressQuery = `
SELECT story_id, owner_id, current_chapter, emotional_state, last_interaction_at
FROM story_progress
WHERE story_id = $1`

const listProgressQuery = `
SELECT story_id, owner_id, current_chapter, emotional_state, last_interaction_at
FROM story_progress
WHERE owner_id = $1`

// storyRow mirrors one stories row with DB-native column types.
type storyRow struct {
	ID          uuid.UUID `db:"id"`
	OwnerID     uuid.UUID `db:"owner_id"`
	Genre       string    `db:"genre"`
	Title       string    `db:"title"`
	LastEmotion []byte    `db:"last_emotion"`
	IsCompleted bool      `db:"is_completed"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// chapterRow mirrors one chapters row with DB-native column types.
type chapterRow struct {
	ID             uuid.UUID      `db:"id"`
	StoryID        uuid.UUID      `db:"story_id"`
	SequenceNumber int            `db:"sequence_number"`
	Content        string         `db:"content"`
	UserInput      string         `db:"user_input"`
	Emotion        []byte         `db:"emotion"`
	Choices        pq.StringArray `db:"choices"`
	CreatedAt      time.Time      `db:"created_at"`
}

// progressRow mirrors one story_progress row.
type progressRow struct {
	StoryID           uuid.UUID `db:"story_id"`
	OwnerID           uuid.UUID `db:"owner_id"`
	CurrentChapter    int       `db:"current_chapter"`
	EmotionalState    []byte    `db:"emotional_state"`
	LastInteractionAt time.Time `db:"last_interaction_at"`
}

// Create implements StoryRepository.
func (r *pgStoryRepository) Create(ctx context.Context, story *models.Story) error {
	now := nowUTC()
	story.CreatedAt = now
	story.UpdatedAt = now

	err := r.pool.QueryRow(ctx, createStoryQuery, story.OwnerID, string(story.Genre), story.Title, now).Scan(&story.ID)
	if err != nil {
		r.logger.Error("Failed to create story", zap.Error(err), zap.Stringer("ownerID", story.OwnerID))
		return fmt.Errorf("failed to create story: %w", err)
	}

	r.logger.Debug("Story created", zap.Stringer("storyID", story.ID), zap.String("genre", string(story.Genre)))
	return nil
}

// GetByID implements StoryRepository.
func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var row storyRow
	if err := pgxscan.Get(ctx, r.pool, &row, getStoryQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story", zap.Error(err), zap.Stringer("storyID", id))
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	story, err := row.toModel()
	if err != nil {
		return nil, err
	}

	var chapterRows []chapterRow
	if err := pgxscan.Select(ctx, r.pool, &chapterRows, listChaptersQuery, id); err != nil {
		r.logger.Error("Failed to list chapters", zap.Error(err), zap.Stringer("storyID", id))
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}

	story.Chapters = make([]models.Chapter, 0, len(chapterRows))
	for _, cr := range chapterRows {
		chapter, err := cr.toModel()
		if err != nil {
			return nil, err
		}
		story.Chapters = append(story.Chapters, chapter)
	}

	return story, nil
}

// ListByOwner implements StoryRepository.
func (r *pgStoryRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Story, error) {
	if limit <= 0 {
		limit = 5
	}

	var rows []storyRow
	if err := pgxscan.Select(ctx, r.pool, &rows, listStoriesQuery, ownerID, limit); err != nil {
		r.logger.Error("Failed to list stories", zap.Error(err), zap.Stringer("ownerID", ownerID))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	stories := make([]models.Story, 0, len(rows))
	for _, row := range rows {
		story, err := row.toModel()
		if err != nil {
			return nil, err
		}
		stories = append(stories, *story)
	}
	return stories, nil
}

// AppendChapter implements StoryRepository. The chapter insert, the story
// touch and the progress upsert happen inside one transaction so the
// dashboard view can never drift from the chapter log.
func (r *pgStoryRepository) AppendChapter(ctx context.Context, chapter *models.Chapter, progress *models.StoryProgress) error {
	emotionJSON, err := marshalEmotion(chapter.Emotion)
	if err != nil {
		return err
	}
	stateJSON, err := marshalEmotion(progress.EmotionalState)
	if err != nil {
		return err
	}

	logFields := []zap.Field{
		zap.Stringer("storyID", chapter.StoryID),
		zap.Int("sequenceNumber", chapter.SequenceNumber),
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin transaction", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	err = tx.QueryRow(ctx, insertChapterQuery,
		chapter.StoryID,
		chapter.SequenceNumber,
		chapter.Content,
		chapter.UserInput,
		emotionJSON,
		pq.StringArray(chapter.Choices),
		chapter.CreatedAt,
	).Scan(&chapter.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			r.logger.Warn("Concurrent chapter append detected", logFields...)
			return models.ErrConflict
		}
		r.logger.Error("Failed to insert chapter", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to insert chapter: %w", err)
	}

	if _, err := tx.Exec(ctx, touchStoryQuery, chapter.StoryID, emotionJSON, chapter.CreatedAt); err != nil {
		r.logger.Error("Failed to update story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to update story: %w", err)
	}

	if _, err := tx.Exec(ctx, upsertProgressQuery,
		progress.StoryID,
		progress.OwnerID,
		progress.CurrentChapter,
		stateJSON,
		progress.LastInteractionAt,
	); err != nil {
		r.logger.Error("Failed to upsert progress", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit chapter append", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to commit chapter append: %w", err)
	}

	r.logger.Debug("Chapter appended", logFields...)
	return nil
}

// GetByStoryID implements StoryProgressRepository.
func (r *pgStoryRepository) GetByStoryID(ctx context.Context, storyID uuid.UUID) (*models.StoryProgress, error) {
	var row progressRow
	if err := pgxscan.Get(ctx, r.pool, &row, getProgressQuery, storyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get progress", zap.Error(err), zap.Stringer("storyID", storyID))
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	progress, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// ListProgressByOwner implements StoryProgressRepository.
func (r *pgStoryRepository) ListProgressByOwner(ctx context.Context, ownerID uuid.UUID) (map[uuid.UUID]models.StoryProgress, error) {
	var rows []progressRow
	if err := pgxscan.Select(ctx, r.pool, &rows, listProgressQuery, ownerID); err != nil {
		r.logger.Error("Failed to list progress", zap.Error(err), zap.Stringer("ownerID", ownerID))
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	result := make(map[uuid.UUID]models.StoryProgress, len(rows))
	for _, row := range rows {
		progress, err := row.toModel()
		if err != nil {
			return nil, err
		}
		result[row.StoryID] = *progress
	}
	return result, nil
}

func (row storyRow) toModel() (*models.Story, error) {
	emotion, err := unmarshalEmotion(row.LastEmotion)
	if err != nil {
		return nil, err
	}
	return &models.Story{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Genre:       models.Genre(row.Genre),
		Title:       row.Title,
		LastEmotion: emotion,
		Completed:   row.IsCompleted,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (row chapterRow) toModel() (models.Chapter, error) {
	emotion, err := unmarshalEmotion(row.Emotion)
	if err != nil {
		return models.Chapter{}, err
	}
	return models.Chapter{
		ID:             row.ID,
		StoryID:        row.StoryID,
		SequenceNumber: row.SequenceNumber,
		Content:        row.Content,
		UserInput:      row.UserInput,
		Emotion:        emotion,
		Choices:        []string(row.Choices),
		CreatedAt:      row.CreatedAt,
	}, nil
}

func (row progressRow) toModel() (*models.StoryProgress, error) {
	state, err := unmarshalEmotion(row.EmotionalState)
	if err != nil {
		return nil, err
	}
	return &models.StoryProgress{
		StoryID:           row.StoryID,
		OwnerID:           row.OwnerID,
		CurrentChapter:    row.CurrentChapter,
		EmotionalState:    state,
		LastInteractionAt: row.LastInteractionAt,
	}, nil
}

// marshalEmotion serializes an optional emotion result for a JSONB column;
// nil stays NULL.
func marshalEmotion(e *models.EmotionResult) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal emotion: %w", err)
	}
	return data, nil
}

func unmarshalEmotion(data []byte) (*models.EmotionResult, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var e models.EmotionResult
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal emotion: %w", err)
	}
	return &e, nil
}
