package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/docker/docker/client"

	"storyweaver-server/internal/models"
	"storyweaver-server/internal/repository"
	"storyweaver-server/migrations"
	"storyweaver-server/pkg/migration"
)

// RepositoryTestSuite runs the data access layer against real PostgreSQL and
// Redis containers.
type RepositoryTestSuite struct {
	suite.Suite
	ctx          context.Context
	pgContainer  *postgres.PostgresContainer
	rdContainer  *tcredis.RedisContainer
	pgPool       *pgxpool.Pool
	redisClient  *redis.Client
	storyRepo    repository.StoryRepository
	progressRepo repository.StoryProgressRepository
	userRepo     repository.UserRepository
	tokenRepo    repository.TokenRepository
	logger       *zap.Logger
}

func (s *RepositoryTestSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.logger, err = zap.NewDevelopment()
	require.NoError(s.T(), err, "Failed to create logger for tests")

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	pgConnStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get postgres connection string")

	s.pgPool, err = pgxpool.New(s.ctx, pgConnStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, s.pgPool, s.logger)
	require.NoError(s.T(), migrator.Up(s.ctx), "Failed to run migrations")

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")

	redisHost, err := s.rdContainer.Host(s.ctx)
	require.NoError(s.T(), err)
	redisPort, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)

	s.redisClient = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	_, err = s.redisClient.Ping(s.ctx).Result()
	require.NoError(s.T(), err, "Failed to connect to test redis")

	pgRepo := repository.NewPgStoryRepository(s.pgPool, s.logger)
	s.storyRepo = pgRepo
	s.progressRepo = pgRepo
	s.userRepo = repository.NewPgUserRepository(s.pgPool, s.logger)
	s.tokenRepo = repository.NewRedisTokenRepository(s.redisClient, s.logger)
}

func (s *RepositoryTestSuite) TearDownSuite() {
	if s.pgPool != nil {
		s.pgPool.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate postgres container", zap.Error(err))
		}
	}
	if s.rdContainer != nil {
		if err := s.rdContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate redis container", zap.Error(err))
		}
	}
}

func (s *RepositoryTestSuite) SetupTest() {
	require.NoError(s.T(), s.redisClient.FlushDB(s.ctx).Err(), "Failed to flush Redis DB")

	// users cascades to stories, chapters and story_progress.
	_, err := s.pgPool.Exec(s.ctx, "TRUNCATE TABLE users RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate users table")
}

func TestRepositoryTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Fatalf("Docker client init error: %v. Ensure Docker is running and accessible.", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		t.Fatalf("Docker daemon is not running or accessible: %v", err)
	}
	cli.Close()

	suite.Run(t, new(RepositoryTestSuite))
}

// --- helpers ---

func (s *RepositoryTestSuite) createUser(username string) *models.User {
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$fakehashfortesting000000000000000000000000000000000000",
	}
	require.NoError(s.T(), s.userRepo.Create(s.ctx, user))
	return user
}

func (s *RepositoryTestSuite) createStory(ownerID uuid.UUID, genre models.Genre) *models.Story {
	story := &models.Story{
		OwnerID: ownerID,
		Genre:   genre,
		Title:   "Test Adventure",
	}
	require.NoError(s.T(), s.storyRepo.Create(s.ctx, story))
	return story
}

func (s *RepositoryTestSuite) appendChapter(story *models.Story, seq int, emotion *models.EmotionResult) *models.Chapter {
	now := time.Now().UTC()
	chapter := &models.Chapter{
		StoryID:        story.ID,
		SequenceNumber: seq,
		Content:        fmt.Sprintf("Chapter %d content", seq),
		UserInput:      fmt.Sprintf("input %d", seq),
		Emotion:        emotion,
		Choices:        []string{"Go left", "Go right"},
		CreatedAt:      now,
	}
	progress := &models.StoryProgress{
		StoryID:           story.ID,
		OwnerID:           story.OwnerID,
		CurrentChapter:    seq,
		EmotionalState:    emotion,
		LastInteractionAt: now,
	}
	require.NoError(s.T(), s.storyRepo.AppendChapter(s.ctx, chapter, progress))
	return chapter
}

// --- user repository ---

func (s *RepositoryTestSuite) TestUserRepo_CreateAndGet() {
	t := s.T()

	created := s.createUser("alice")
	require.NotEqual(t, uuid.Nil, created.ID, "Create should assign an ID")
	require.False(t, created.CreatedAt.IsZero())

	byName, err := s.userRepo.GetByUsername(s.ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, created.ID, byName.ID)
	require.Equal(t, "alice@example.com", byName.Email)

	byID, err := s.userRepo.GetByID(s.ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)
}

func (s *RepositoryTestSuite) TestUserRepo_DuplicateUsername() {
	t := s.T()

	s.createUser("bob")

	dup := &models.User{
		Username:     "bob",
		Email:        "other@example.com",
		PasswordHash: "hash",
	}
	err := s.userRepo.Create(s.ctx, dup)
	require.ErrorIs(t, err, models.ErrUserAlreadyExists)
}

func (s *RepositoryTestSuite) TestUserRepo_DuplicateEmail() {
	t := s.T()

	s.createUser("carol")

	dup := &models.User{
		Username:     "carol2",
		Email:        "carol@example.com",
		PasswordHash: "hash",
	}
	err := s.userRepo.Create(s.ctx, dup)
	require.ErrorIs(t, err, models.ErrEmailAlreadyExists)
}

func (s *RepositoryTestSuite) TestUserRepo_NotFound() {
	t := s.T()

	_, err := s.userRepo.GetByUsername(s.ctx, "nobody")
	require.ErrorIs(t, err, models.ErrUserNotFound)

	_, err = s.userRepo.GetByID(s.ctx, uuid.New())
	require.ErrorIs(t, err, models.ErrUserNotFound)
}

// --- story repository ---

func (s *RepositoryTestSuite) TestStoryRepo_CreateAndGetWithChapters() {
	t := s.T()

	owner := s.createUser("storyowner")
	story := s.createStory(owner.ID, models.GenreFantasy)
	require.NotEqual(t, uuid.Nil, story.ID)

	emotion := &models.EmotionResult{
		DominantEmotion: "joy",
		Confidence:      0.87,
		AllEmotions:     map[string]float64{"joy": 0.87, "fear": 0.05},
	}
	s.appendChapter(story, 1, nil)
	s.appendChapter(story, 2, emotion)

	loaded, err := s.storyRepo.GetByID(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, loaded.OwnerID)
	require.Equal(t, models.GenreFantasy, loaded.Genre)
	require.Len(t, loaded.Chapters, 2)
	require.Equal(t, 1, loaded.Chapters[0].SequenceNumber)
	require.Equal(t, 2, loaded.Chapters[1].SequenceNumber)
	require.Equal(t, []string{"Go left", "Go right"}, loaded.Chapters[1].Choices)

	require.Nil(t, loaded.Chapters[0].Emotion)
	require.NotNil(t, loaded.Chapters[1].Emotion)
	require.Equal(t, "joy", loaded.Chapters[1].Emotion.DominantEmotion)

	// The last chapter's emotion is denormalized onto the story.
	require.NotNil(t, loaded.LastEmotion)
	require.Equal(t, "joy", loaded.LastEmotion.DominantEmotion)
}

func (s *RepositoryTestSuite) TestStoryRepo_GetByID_NotFound() {
	_, err := s.storyRepo.GetByID(s.ctx, uuid.New())
	require.ErrorIs(s.T(), err, models.ErrNotFound)
}

func (s *RepositoryTestSuite) TestStoryRepo_DuplicateSequenceIsConflict() {
	t := s.T()

	owner := s.createUser("raceowner")
	story := s.createStory(owner.ID, models.GenreMystery)
	s.appendChapter(story, 1, nil)

	now := time.Now().UTC()
	duplicate := &models.Chapter{
		StoryID:        story.ID,
		SequenceNumber: 1,
		Content:        "The losing side of the race",
		CreatedAt:      now,
	}
	progress := &models.StoryProgress{
		StoryID:           story.ID,
		OwnerID:           owner.ID,
		CurrentChapter:    1,
		LastInteractionAt: now,
	}
	err := s.storyRepo.AppendChapter(s.ctx, duplicate, progress)
	require.ErrorIs(t, err, models.ErrConflict)

	// The losing append must leave no trace.
	loaded, err := s.storyRepo.GetByID(s.ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Chapters, 1)
	require.Equal(t, "Chapter 1 content", loaded.Chapters[0].Content)
}

func (s *RepositoryTestSuite) TestStoryRepo_ListByOwner_OrderAndLimit() {
	t := s.T()

	owner := s.createUser("listowner")
	other := s.createUser("otherowner")

	first := s.createStory(owner.ID, models.GenreFantasy)
	time.Sleep(10 * time.Millisecond)
	second := s.createStory(owner.ID, models.GenreSciFi)
	time.Sleep(10 * time.Millisecond)
	third := s.createStory(owner.ID, models.GenreRomance)
	s.createStory(other.ID, models.GenreNature)

	// Appending to the oldest story bumps it to the top.
	time.Sleep(10 * time.Millisecond)
	s.appendChapter(first, 1, nil)

	stories, err := s.storyRepo.ListByOwner(s.ctx, owner.ID, 2)
	require.NoError(t, err)
	require.Len(t, stories, 2)
	require.Equal(t, first.ID, stories[0].ID)
	require.Equal(t, third.ID, stories[1].ID)
	require.Empty(t, stories[0].Chapters, "List view carries no chapter bodies")

	all, err := s.storyRepo.ListByOwner(s.ctx, owner.ID, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, second.ID, all[2].ID)
}

func (s *RepositoryTestSuite) TestProgress_UpsertFollowsChapterLog() {
	t := s.T()

	owner := s.createUser("progressowner")
	story := s.createStory(owner.ID, models.GenreAdventure)

	s.appendChapter(story, 1, nil)

	progress, err := s.progressRepo.GetByStoryID(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, 1, progress.CurrentChapter)
	require.Nil(t, progress.EmotionalState)

	emotion := &models.EmotionResult{DominantEmotion: "fear", Confidence: 0.91}
	s.appendChapter(story, 2, emotion)

	progress, err = s.progressRepo.GetByStoryID(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, 2, progress.CurrentChapter)
	require.NotNil(t, progress.EmotionalState)
	require.Equal(t, "fear", progress.EmotionalState.DominantEmotion)

	byOwner, err := s.progressRepo.ListProgressByOwner(s.ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	require.Equal(t, 2, byOwner[story.ID].CurrentChapter)
}

func (s *RepositoryTestSuite) TestProgress_GetByStoryID_NotFound() {
	_, err := s.progressRepo.GetByStoryID(s.ctx, uuid.New())
	require.ErrorIs(s.T(), err, models.ErrNotFound)
}

// --- token repository ---

func (s *RepositoryTestSuite) TestTokenRepo_SetGetDelete() {
	t := s.T()

	userID := uuid.New()
	td := &models.TokenDetails{
		AccessUUID:  uuid.NewString(),
		RefreshUUID: uuid.NewString(),
		AtExpires:   time.Now().Add(5 * time.Minute).Unix(),
		RtExpires:   time.Now().Add(1 * time.Hour).Unix(),
	}
	require.NoError(t, s.tokenRepo.SetToken(s.ctx, userID, td))

	resolved, err := s.tokenRepo.GetUserIDByRefresh(s.ctx, td.RefreshUUID)
	require.NoError(t, err)
	require.Equal(t, userID, resolved)

	deleted, err := s.tokenRepo.DeleteTokens(s.ctx, td.AccessUUID, td.RefreshUUID)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	_, err = s.tokenRepo.GetUserIDByRefresh(s.ctx, td.RefreshUUID)
	require.ErrorIs(t, err, models.ErrTokenNotFound)
}

func (s *RepositoryTestSuite) TestTokenRepo_DeleteUnknownIsIdempotent() {
	t := s.T()

	deleted, err := s.tokenRepo.DeleteTokens(s.ctx, uuid.NewString(), uuid.NewString())
	require.NoError(t, err)
	require.Equal(t, int64(0), deleted)

	deleted, err = s.tokenRepo.DeleteTokens(s.ctx, "", "")
	require.NoError(t, err)
	require.Equal(t, int64(0), deleted)
}
