// Package mocks contains testify mocks for the service and repository
// interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storyweaver-server/internal/emotion"
	"storyweaver-server/internal/generator"
	"storyweaver-server/internal/messaging"
	"storyweaver-server/internal/models"
	"storyweaver-server/internal/service"
)

// MockClassifier is a mock type for the emotion.Classifier type
type MockClassifier struct {
	mock.Mock
}

// Classify provides a mock function with given fields: ctx, text
func (_m *MockClassifier) Classify(ctx context.Context, text string) (*models.EmotionResult, error) {
	ret := _m.Called(ctx, text)

	var r0 *models.EmotionResult
	if rf, ok := ret.Get(0).(func(context.Context, string) *models.EmotionResult); ok {
		r0 = rf(ctx, text)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.EmotionResult)
	}

	return r0, ret.Error(1)
}

// NewMockClassifier creates a new instance of MockClassifier.
func NewMockClassifier(t interface {
	mock.TestingT
	Helper()
}) *MockClassifier {
	m := &MockClassifier{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ emotion.Classifier = (*MockClassifier)(nil)

// MockStoryGenerator is a mock type for the generator.StoryGenerator type
type MockStoryGenerator struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, prompt
func (_m *MockStoryGenerator) Generate(ctx context.Context, prompt string) (models.GeneratedChapter, error) {
	ret := _m.Called(ctx, prompt)

	var r0 models.GeneratedChapter
	if rf, ok := ret.Get(0).(func(context.Context, string) models.GeneratedChapter); ok {
		r0 = rf(ctx, prompt)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(models.GeneratedChapter)
	}

	return r0, ret.Error(1)
}

// NewMockStoryGenerator creates a new instance of MockStoryGenerator.
func NewMockStoryGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockStoryGenerator {
	m := &MockStoryGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ generator.StoryGenerator = (*MockStoryGenerator)(nil)

// MockChapterEventPublisher is a mock type for the
// messaging.ChapterEventPublisher type
type MockChapterEventPublisher struct {
	mock.Mock
}

// PublishChapterEvent provides a mock function with given fields: ctx, event
func (_m *MockChapterEventPublisher) PublishChapterEvent(ctx context.Context, event messaging.ChapterEvent) error {
	ret := _m.Called(ctx, event)
	return ret.Error(0)
}

// NewMockChapterEventPublisher creates a new instance of MockChapterEventPublisher.
func NewMockChapterEventPublisher(t interface {
	mock.TestingT
	Helper()
}) *MockChapterEventPublisher {
	m := &MockChapterEventPublisher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ messaging.ChapterEventPublisher = (*MockChapterEventPublisher)(nil)

// MockNotifier is a mock type for the service.Notifier type
type MockNotifier struct {
	mock.Mock
}

// NotifyJSON provides a mock function with given fields: userID, payload
func (_m *MockNotifier) NotifyJSON(userID string, payload interface{}) bool {
	ret := _m.Called(userID, payload)
	return ret.Bool(0)
}

// NewMockNotifier creates a new instance of MockNotifier.
func NewMockNotifier(t interface {
	mock.TestingT
	Helper()
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.Notifier = (*MockNotifier)(nil)
