package models

import (
	"time"

	"github.com/google/uuid"
)

// Genre identifies one of the fixed story genres offered to the user.
type Genre string

const (
	GenreFantasy   Genre = "fantasy"
	GenreAdventure Genre = "adventure"
	GenreRomance   Genre = "romance"
	GenreSciFi     Genre = "scifi"
	GenreMystery   Genre = "mystery"
	GenreNature    Genre = "nature"
)

// AllGenres lists every supported genre in display order.
var AllGenres = []Genre{
	GenreFantasy,
	GenreAdventure,
	GenreRomance,
	GenreSciFi,
	GenreMystery,
	GenreNature,
}

// IsValidGenre reports whether g belongs to the fixed genre set.
func IsValidGenre(g Genre) bool {
	for _, known := range AllGenres {
		if g == known {
			return true
		}
	}
	return false
}

// Chapter is a single narrative segment together with the user input and
// emotional signal that produced it. Chapters are immutable once created and
// only ever appended to a story, never edited or reordered.
type Chapter struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	StoryID        uuid.UUID      `db:"story_id" json:"storyId"`
	SequenceNumber int            `db:"sequence_number" json:"sequenceNumber"`
	Content        string         `db:"content" json:"content"`
	UserInput      string         `db:"user_input" json:"userInput"`
	Emotion        *EmotionResult `db:"emotion" json:"emotion,omitempty"`
	Choices        []string       `db:"choices" json:"choices"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// Story is one interactive story owned by a single user. It is created on
// genre selection, receives a system-authored first chapter, then grows by
// one chapter per user turn.
type Story struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	OwnerID     uuid.UUID      `db:"owner_id" json:"ownerId"`
	Genre       Genre          `db:"genre" json:"genre"`
	Title       string         `db:"title" json:"title"`
	Chapters    []Chapter      `db:"-" json:"chapters,omitempty"`
	LastEmotion *EmotionResult `db:"last_emotion" json:"lastEmotion,omitempty"`
	Completed   bool           `db:"is_completed" json:"isCompleted"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// StoryProgress is the denormalized per-story view shown on the dashboard.
// It is written in the same transaction that appends a chapter, so it never
// drifts from the chapter log.
type StoryProgress struct {
	StoryID           uuid.UUID      `db:"story_id" json:"storyId"`
	OwnerID           uuid.UUID      `db:"owner_id" json:"ownerId"`
	CurrentChapter    int            `db:"current_chapter" json:"currentChapter"`
	EmotionalState    *EmotionResult `db:"emotional_state" json:"emotionalState,omitempty"`
	LastInteractionAt time.Time      `db:"last_interaction_at" json:"lastInteractionAt"`
}

// GeneratedChapter is the parsed result of one text-generation call: the
// chapter body plus a bounded list of suggested continuations.
type GeneratedChapter struct {
	Content string   `json:"content"`
	Choices []string `json:"choices"`
}

// MaxChoices bounds the number of suggested continuations kept per chapter.
const MaxChoices = 4
