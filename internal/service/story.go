package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyweaver-server/internal/emotion"
	"storyweaver-server/internal/generator"
	"storyweaver-server/internal/messaging"
	"storyweaver-server/internal/models"
	"storyweaver-server/internal/prompt"
	"storyweaver-server/internal/repository"
)

// defaultDashboardLimit bounds the story list when the client does not ask
// for a specific page size.
const defaultDashboardLimit = 5

// Notifier pushes a JSON payload to a connected user. Delivery is
// best-effort.
type Notifier interface {
	NotifyJSON(userID string, payload interface{}) bool
}

// ChapterAppendedEvent is pushed over WebSocket after a successful append.
type ChapterAppendedEvent struct {
	Type    string         `json:"type"`
	StoryID uuid.UUID      `json:"storyId"`
	Chapter models.Chapter `json:"chapter"`
}

// AdvanceResult is the outcome of one story turn. Saved is false when the
// chapter was generated but could not be persisted; the chapter is still
// returned so the user's turn is not lost.
type AdvanceResult struct {
	Chapter models.Chapter
	Saved   bool
}

// DashboardEntry pairs a story with its progress row for the story list.
type DashboardEntry struct {
	Story    models.Story          `json:"story"`
	Progress *models.StoryProgress `json:"progress,omitempty"`
}

// StoryService drives the turn loop: create a story, advance it one chapter
// at a time, and read it back.
type StoryService interface {
	CreateStory(ctx context.Context, ownerID uuid.UUID, genre models.Genre) (*models.Story, error)
	GetStory(ctx context.Context, ownerID, storyID uuid.UUID) (*models.Story, error)
	ListStories(ctx context.Context, ownerID uuid.UUID, limit int) ([]DashboardEntry, error)
	Advance(ctx context.Context, ownerID, storyID uuid.UUID, userInput string) (*AdvanceResult, error)

	// GenerateOnce runs compose+generate without touching storage.
	GenerateOnce(ctx context.Context, in prompt.Input) (models.GeneratedChapter, error)
}

// Compile-time check to ensure storyService implements StoryService.
var _ StoryService = (*storyService)(nil)

type storyService struct {
	storyRepo    repository.StoryRepository
	progressRepo repository.StoryProgressRepository
	classifier   emotion.Classifier
	generator    generator.StoryGenerator
	notifier     Notifier
	publisher    messaging.ChapterEventPublisher
	logger       *zap.Logger

	// locks serializes turns per story within this process. The DB unique
	// constraint on (story_id, sequence_number) backstops cross-process races.
	locks   map[uuid.UUID]*sync.Mutex
	locksMu sync.Mutex
}

// NewStoryService wires the turn pipeline together. notifier and publisher
// may be no-op implementations but must not be nil.
func NewStoryService(
	storyRepo repository.StoryRepository,
	progressRepo repository.StoryProgressRepository,
	classifier emotion.Classifier,
	gen generator.StoryGenerator,
	notifier Notifier,
	publisher messaging.ChapterEventPublisher,
	logger *zap.Logger,
) StoryService {
	return &storyService{
		storyRepo:    storyRepo,
		progressRepo: progressRepo,
		classifier:   classifier,
		generator:    gen,
		notifier:     notifier,
		publisher:    publisher,
		logger:       logger.Named("StoryService"),
		locks:        make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *storyService) storyLock(storyID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[storyID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[storyID] = mu
	}
	return mu
}

// CreateStory validates the genre, persists a new story and generates its
// opening chapter.
func (s *storyService) CreateStory(ctx context.Context, ownerID uuid.UUID, genre models.Genre) (*models.Story, error) {
	log := s.logger.With(zap.Stringer("ownerID", ownerID), zap.String("genre", string(genre)))

	if !models.IsValidGenre(genre) {
		log.Warn("Story creation with unknown genre")
		return nil, models.ErrInvalidGenre
	}

	// Generate the opening before creating any rows, so a generation
	// failure leaves no half-built story behind.
	generated, err := s.generator.Generate(ctx, prompt.Build(prompt.Input{
		Genre:         genre,
		IsInitialTurn: true,
	}))
	if err != nil {
		log.Error("Opening chapter generation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	story := &models.Story{
		OwnerID: ownerID,
		Genre:   genre,
		Title:   storyTitle(genre),
	}
	if err := s.storyRepo.Create(ctx, story); err != nil {
		log.Error("Failed to create story", zap.Error(err))
		return nil, err
	}

	now := time.Now().UTC()
	chapter := models.Chapter{
		ID:             uuid.New(),
		StoryID:        story.ID,
		SequenceNumber: 1,
		Content:        generated.Content,
		Choices:        generated.Choices,
		CreatedAt:      now,
	}
	progress := models.StoryProgress{
		StoryID:           story.ID,
		OwnerID:           ownerID,
		CurrentChapter:    1,
		LastInteractionAt: now,
	}
	if err := s.storyRepo.AppendChapter(ctx, &chapter, &progress); err != nil {
		// The opening chapter is still handed back; the user can keep
		// reading even though the save failed.
		log.Error("Failed to persist opening chapter", zap.Error(err), zap.Stringer("storyID", story.ID))
	}
	story.Chapters = []models.Chapter{chapter}

	log.Info("Story created", zap.Stringer("storyID", story.ID))
	return story, nil
}

// GetStory returns the full story after an ownership check.
func (s *storyService) GetStory(ctx context.Context, ownerID, storyID uuid.UUID) (*models.Story, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.OwnerID != ownerID {
		s.logger.Warn("Story access denied",
			zap.Stringer("storyID", storyID),
			zap.Stringer("requestedBy", ownerID))
		return nil, models.ErrForbidden
	}
	return story, nil
}

// ListStories returns the owner's dashboard: recent stories joined with
// their progress rows.
func (s *storyService) ListStories(ctx context.Context, ownerID uuid.UUID, limit int) ([]DashboardEntry, error) {
	if limit <= 0 {
		limit = defaultDashboardLimit
	}

	stories, err := s.storyRepo.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}
	progressByStory, err := s.progressRepo.ListProgressByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	entries := make([]DashboardEntry, 0, len(stories))
	for _, story := range stories {
		entry := DashboardEntry{Story: story}
		if p, ok := progressByStory[story.ID]; ok {
			progress := p
			entry.Progress = &progress
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Advance runs one story turn: classify the input, compose the prompt,
// generate the next chapter and append it. Turns for the same story are
// serialized.
func (s *storyService) Advance(ctx context.Context, ownerID, storyID uuid.UUID, userInput string) (*AdvanceResult, error) {
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return nil, models.ErrNoTextProvided
	}

	mu := s.storyLock(storyID)
	mu.Lock()
	defer mu.Unlock()

	log := s.logger.With(zap.Stringer("storyID", storyID), zap.Stringer("ownerID", ownerID))

	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.OwnerID != ownerID {
		log.Warn("Advance denied: story owned by another user")
		return nil, models.ErrForbidden
	}

	// A classification failure never blocks the turn; the chapter simply
	// carries no emotional signal.
	var result *models.EmotionResult
	if classified, cerr := s.classifier.Classify(ctx, userInput); cerr != nil {
		log.Warn("Emotion classification failed, continuing without emotion", zap.Error(cerr))
	} else {
		result = classified
	}

	chapters := make([]prompt.ChapterContext, 0, len(story.Chapters))
	for _, ch := range story.Chapters {
		chapters = append(chapters, prompt.ChapterContext{Content: ch.Content, UserInput: ch.UserInput})
	}

	generated, err := s.generator.Generate(ctx, prompt.Build(prompt.Input{
		Genre:     story.Genre,
		Chapters:  chapters,
		UserInput: userInput,
		Emotion:   result,
	}))
	if err != nil {
		log.Error("Chapter generation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	sequence := 1
	if n := len(story.Chapters); n > 0 {
		sequence = story.Chapters[n-1].SequenceNumber + 1
	}

	now := time.Now().UTC()
	chapter := models.Chapter{
		ID:             uuid.New(),
		StoryID:        storyID,
		SequenceNumber: sequence,
		Content:        generated.Content,
		UserInput:      userInput,
		Emotion:        result,
		Choices:        generated.Choices,
		CreatedAt:      now,
	}

	emotionalState := result
	if emotionalState == nil {
		emotionalState = story.LastEmotion
	}
	progress := models.StoryProgress{
		StoryID:           storyID,
		OwnerID:           ownerID,
		CurrentChapter:    sequence,
		EmotionalState:    emotionalState,
		LastInteractionAt: now,
	}

	if err := s.storyRepo.AppendChapter(ctx, &chapter, &progress); err != nil {
		if errors.Is(err, models.ErrConflict) {
			log.Warn("Concurrent append detected", zap.Int("sequenceNumber", sequence))
			return nil, models.ErrConflict
		}
		// The chapter was generated but not saved. Hand it back anyway so
		// the turn is not lost on the reader's side.
		log.Error("Failed to persist chapter", zap.Error(err), zap.Int("sequenceNumber", sequence))
		return &AdvanceResult{Chapter: chapter, Saved: false}, nil
	}

	s.notifyChapterAppended(ctx, story, chapter)

	log.Info("Chapter appended", zap.Int("sequenceNumber", sequence))
	return &AdvanceResult{Chapter: chapter, Saved: true}, nil
}

// GenerateOnce implements the stateless generation endpoint.
func (s *storyService) GenerateOnce(ctx context.Context, in prompt.Input) (models.GeneratedChapter, error) {
	if !models.IsValidGenre(in.Genre) {
		return models.GeneratedChapter{}, models.ErrInvalidGenre
	}
	generated, err := s.generator.Generate(ctx, prompt.Build(in))
	if err != nil {
		s.logger.Error("Stateless generation failed", zap.Error(err), zap.String("genre", string(in.Genre)))
		return models.GeneratedChapter{}, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	return generated, nil
}

// notifyChapterAppended fans the event out to the owner's WebSocket and the
// event queue. Both are best-effort.
func (s *storyService) notifyChapterAppended(ctx context.Context, story *models.Story, chapter models.Chapter) {
	s.notifier.NotifyJSON(story.OwnerID.String(), ChapterAppendedEvent{
		Type:    "chapter.appended",
		StoryID: story.ID,
		Chapter: chapter,
	})

	event := messaging.ChapterEvent{
		StoryID:        story.ID,
		OwnerID:        story.OwnerID,
		SequenceNumber: chapter.SequenceNumber,
		Genre:          string(story.Genre),
		CreatedAt:      chapter.CreatedAt,
	}
	if chapter.Emotion != nil {
		event.DominantEmotion = chapter.Emotion.DominantEmotion
	}
	if err := s.publisher.PublishChapterEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish chapter event", zap.Error(err), zap.Stringer("storyID", story.ID))
	}
}

// storyTitle builds the default display title for a new story.
func storyTitle(genre models.Genre) string {
	g := string(genre)
	if g == "" {
		return "Adventure"
	}
	return strings.ToUpper(g[:1]) + g[1:] + " Adventure"
}
