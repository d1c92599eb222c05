package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"storyweaver-server/internal/models"
	"storyweaver-server/internal/prompt"
	"storyweaver-server/internal/service"
)

// MockStoryService is a mock type for the service.StoryService type
type MockStoryService struct {
	mock.Mock
}

// CreateStory provides a mock function with given fields: ctx, ownerID, genre
func (_m *MockStoryService) CreateStory(ctx context.Context, ownerID uuid.UUID, genre models.Genre) (*models.Story, error) {
	ret := _m.Called(ctx, ownerID, genre)

	var r0 *models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}

	return r0, ret.Error(1)
}

// GetStory provides a mock function with given fields: ctx, ownerID, storyID
func (_m *MockStoryService) GetStory(ctx context.Context, ownerID uuid.UUID, storyID uuid.UUID) (*models.Story, error) {
	ret := _m.Called(ctx, ownerID, storyID)

	var r0 *models.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Story)
	}

	return r0, ret.Error(1)
}

// ListStories provides a mock function with given fields: ctx, ownerID, limit
func (_m *MockStoryService) ListStories(ctx context.Context, ownerID uuid.UUID, limit int) ([]service.DashboardEntry, error) {
	ret := _m.Called(ctx, ownerID, limit)

	var r0 []service.DashboardEntry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]service.DashboardEntry)
	}

	return r0, ret.Error(1)
}

// Advance provides a mock function with given fields: ctx, ownerID, storyID, userInput
func (_m *MockStoryService) Advance(ctx context.Context, ownerID uuid.UUID, storyID uuid.UUID, userInput string) (*service.AdvanceResult, error) {
	ret := _m.Called(ctx, ownerID, storyID, userInput)

	var r0 *service.AdvanceResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.AdvanceResult)
	}

	return r0, ret.Error(1)
}

// GenerateOnce provides a mock function with given fields: ctx, in
func (_m *MockStoryService) GenerateOnce(ctx context.Context, in prompt.Input) (models.GeneratedChapter, error) {
	ret := _m.Called(ctx, in)

	var r0 models.GeneratedChapter
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(models.GeneratedChapter)
	}

	return r0, ret.Error(1)
}

// NewMockStoryService creates a new instance of MockStoryService.
func NewMockStoryService(t interface {
	mock.TestingT
	Helper()
}) *MockStoryService {
	m := &MockStoryService{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.StoryService = (*MockStoryService)(nil)

// MockAuthService is a mock type for the service.AuthService type
type MockAuthService struct {
	mock.Mock
}

// Register provides a mock function with given fields: ctx, username, email, password
func (_m *MockAuthService) Register(ctx context.Context, username string, email string, password string) (*models.User, error) {
	ret := _m.Called(ctx, username, email, password)

	var r0 *models.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.User)
	}

	return r0, ret.Error(1)
}

// Login provides a mock function with given fields: ctx, username, password
func (_m *MockAuthService) Login(ctx context.Context, username string, password string) (*models.TokenDetails, error) {
	ret := _m.Called(ctx, username, password)

	var r0 *models.TokenDetails
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.TokenDetails)
	}

	return r0, ret.Error(1)
}

// Refresh provides a mock function with given fields: ctx, refreshToken
func (_m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	ret := _m.Called(ctx, refreshToken)

	var r0 *models.TokenDetails
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.TokenDetails)
	}

	return r0, ret.Error(1)
}

// Logout provides a mock function with given fields: ctx, accessUUID, refreshUUID
func (_m *MockAuthService) Logout(ctx context.Context, accessUUID string, refreshUUID string) error {
	ret := _m.Called(ctx, accessUUID, refreshUUID)
	return ret.Error(0)
}

// GetUser provides a mock function with given fields: ctx, userID
func (_m *MockAuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	ret := _m.Called(ctx, userID)

	var r0 *models.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.User)
	}

	return r0, ret.Error(1)
}

// VerifyAccessToken provides a mock function with given fields: tokenString
func (_m *MockAuthService) VerifyAccessToken(tokenString string) (*models.Claims, error) {
	ret := _m.Called(tokenString)

	var r0 *models.Claims
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Claims)
	}

	return r0, ret.Error(1)
}

// VerifyRefreshToken provides a mock function with given fields: tokenString
func (_m *MockAuthService) VerifyRefreshToken(tokenString string) (*models.Claims, error) {
	ret := _m.Called(tokenString)

	var r0 *models.Claims
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Claims)
	}

	return r0, ret.Error(1)
}

// NewMockAuthService creates a new instance of MockAuthService.
func NewMockAuthService(t interface {
	mock.TestingT
	Helper()
}) *MockAuthService {
	m := &MockAuthService{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.AuthService = (*MockAuthService)(nil)
