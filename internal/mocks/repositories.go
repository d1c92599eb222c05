package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"storyweaver-server/internal/models"
	"storyweaver-server/internal/repository"
)

// MockStoryRepository is a mock type for the repository.StoryRepository type
type MockStoryRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, story
func (_m *MockStoryRepository) Create(ctx context.Context, story *models.Story) error {
	ret := _m.Called(ctx, story)
	return ret.Error(0)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.Story
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID) *models.Story); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}

	return r0, ret.Error(1)
}

// ListByOwner provides a mock function with given fields: ctx, ownerID, limit
func (_m *MockStoryRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Story, error) {
	ret := _m.Called(ctx, ownerID, limit)

	var r0 []models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Story)
	}

	return r0, ret.Error(1)
}

// AppendChapter provides a mock function with given fields: ctx, chapter, progress
func (_m *MockStoryRepository) AppendChapter(ctx context.Context, chapter *models.Chapter, progress *models.StoryProgress) error {
	ret := _m.Called(ctx, chapter, progress)
	return ret.Error(0)
}

// NewMockStoryRepository creates a new instance of MockStoryRepository.
func NewMockStoryRepository(t interface {
	mock.TestingT
	Helper()
}) *MockStoryRepository {
	m := &MockStoryRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.StoryRepository = (*MockStoryRepository)(nil)

// MockStoryProgressRepository is a mock type for the
// repository.StoryProgressRepository type
type MockStoryProgressRepository struct {
	mock.Mock
}

// GetByStoryID provides a mock function with given fields: ctx, storyID
func (_m *MockStoryProgressRepository) GetByStoryID(ctx context.Context, storyID uuid.UUID) (*models.StoryProgress, error) {
	ret := _m.Called(ctx, storyID)

	var r0 *models.StoryProgress
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryProgress)
	}

	return r0, ret.Error(1)
}

// ListProgressByOwner provides a mock function with given fields: ctx, ownerID
func (_m *MockStoryProgressRepository) ListProgressByOwner(ctx context.Context, ownerID uuid.UUID) (map[uuid.UUID]models.StoryProgress, error) {
	ret := _m.Called(ctx, ownerID)

	var r0 map[uuid.UUID]models.StoryProgress
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[uuid.UUID]models.StoryProgress)
	}

	return r0, ret.Error(1)
}

// NewMockStoryProgressRepository creates a new instance of MockStoryProgressRepository.
func NewMockStoryProgressRepository(t interface {
	mock.TestingT
	Helper()
}) *MockStoryProgressRepository {
	m := &MockStoryProgressRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.StoryProgressRepository = (*MockStoryProgressRepository)(nil)

// MockUserRepository is a mock type for the repository.UserRepository type
type MockUserRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, user
func (_m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	ret := _m.Called(ctx, user)
	return ret.Error(0)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.User)
	}

	return r0, ret.Error(1)
}

// GetByUsername provides a mock function with given fields: ctx, username
func (_m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ret := _m.Called(ctx, username)

	var r0 *models.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.User)
	}

	return r0, ret.Error(1)
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository(t interface {
	mock.TestingT
	Helper()
}) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

// MockTokenRepository is a mock type for the repository.TokenRepository type
type MockTokenRepository struct {
	mock.Mock
}

// SetToken provides a mock function with given fields: ctx, userID, td
func (_m *MockTokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	ret := _m.Called(ctx, userID, td)
	return ret.Error(0)
}

// GetUserIDByRefresh provides a mock function with given fields: ctx, refreshUUID
func (_m *MockTokenRepository) GetUserIDByRefresh(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	ret := _m.Called(ctx, refreshUUID)

	var r0 uuid.UUID
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(uuid.UUID)
	}

	return r0, ret.Error(1)
}

// DeleteTokens provides a mock function with given fields: ctx, accessUUID, refreshUUID
func (_m *MockTokenRepository) DeleteTokens(ctx context.Context, accessUUID string, refreshUUID string) (int64, error) {
	ret := _m.Called(ctx, accessUUID, refreshUUID)
	return ret.Get(0).(int64), ret.Error(1)
}

// NewMockTokenRepository creates a new instance of MockTokenRepository.
func NewMockTokenRepository(t interface {
	mock.TestingT
	Helper()
}) *MockTokenRepository {
	m := &MockTokenRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.TokenRepository = (*MockTokenRepository)(nil)
