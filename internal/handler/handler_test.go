package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyweaver-server/internal/emotion"
	"storyweaver-server/internal/mocks"
	"storyweaver-server/internal/models"
	"storyweaver-server/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// noRateLimit is a pass-through stand-in for the auth rate limiter.
func noRateLimit(c *gin.Context) {
	c.Next()
}

// testAuth injects a fixed user identity, standing in for AuthMiddleware.
func testAuth(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxUserIDKey, userID)
		c.Set(ctxAccessUUIDKey, "test-access-uuid")
		c.Next()
	}
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyze_ReturnsEmotion(t *testing.T) {
	classifier := mocks.NewMockClassifier(t)
	router := gin.New()
	h := NewEmotionHandler(classifier, zap.NewNop())
	h.RegisterRoutes(router, testAuth(uuid.New()))

	classifier.On("Classify", mock.Anything, "I am terrified").Return(&models.EmotionResult{
		DominantEmotion: "fear",
		Confidence:      0.91,
		AllEmotions:     map[string]float64{"fear": 0.91, "joy": 0.02},
	}, nil)

	w := performJSON(t, router, http.MethodPost, "/api/emotion/analyze", gin.H{"text": "I am terrified"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Emotion models.EmotionResult `json:"emotion"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "fear", resp.Emotion.DominantEmotion)
	assert.InDelta(t, 0.91, resp.Emotion.Confidence, 1e-9)
}

func TestAnalyze_EmptyText(t *testing.T) {
	classifier := mocks.NewMockClassifier(t)
	router := gin.New()
	h := NewEmotionHandler(classifier, zap.NewNop())
	h.RegisterRoutes(router, testAuth(uuid.New()))

	classifier.On("Classify", mock.Anything, "").Return(nil, emotion.ErrEmptyText)

	w := performJSON(t, router, http.MethodPost, "/api/emotion/analyze", gin.H{"text": ""})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No text provided"}`, w.Body.String())
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	classifier := mocks.NewMockClassifier(t)
	router := gin.New()
	h := NewEmotionHandler(classifier, zap.NewNop())
	h.RegisterRoutes(router, testAuth(uuid.New()))

	classifier.On("Classify", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: upstream status 503", emotion.ErrClassificationFailed))

	w := performJSON(t, router, http.MethodPost, "/api/emotion/analyze", gin.H{"text": "hello"})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func newStoryRouter(t *testing.T, userID uuid.UUID) (*gin.Engine, *mocks.MockStoryService) {
	t.Helper()
	storySvc := mocks.NewMockStoryService(t)
	router := gin.New()
	h := NewStoryHandler(storySvc, zap.NewNop())
	h.RegisterRoutes(router, testAuth(userID))
	return router, storySvc
}

func TestListGenres(t *testing.T) {
	router, _ := newStoryRouter(t, uuid.New())

	w := performJSON(t, router, http.MethodGet, "/api/genres", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Genres []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"genres"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Genres, 6)
	assert.Equal(t, "fantasy", resp.Genres[0].ID)
}

func TestCreateStory(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)

	storyID := uuid.New()
	storySvc.On("CreateStory", mock.Anything, userID, models.GenreFantasy).Return(&models.Story{
		ID:      storyID,
		OwnerID: userID,
		Genre:   models.GenreFantasy,
		Title:   "Fantasy Adventure",
		Chapters: []models.Chapter{
			{StoryID: storyID, SequenceNumber: 1, Content: "Once upon a time."},
		},
	}, nil)

	w := performJSON(t, router, http.MethodPost, "/api/stories", gin.H{"genre": "fantasy"})

	require.Equal(t, http.StatusCreated, w.Code)
	var story models.Story
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &story))
	assert.Equal(t, "Fantasy Adventure", story.Title)
	require.Len(t, story.Chapters, 1)
}

func TestCreateStory_UnknownGenre(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)

	storySvc.On("CreateStory", mock.Anything, userID, models.Genre("western")).
		Return(nil, models.ErrInvalidGenre)

	w := performJSON(t, router, http.MethodPost, "/api/stories", gin.H{"genre": "western"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdvance_ReturnsChapter(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)
	storyID := uuid.New()

	storySvc.On("Advance", mock.Anything, userID, storyID, "I open the door").
		Return(&service.AdvanceResult{
			Chapter: models.Chapter{StoryID: storyID, SequenceNumber: 2, Content: "The door groaned."},
			Saved:   true,
		}, nil)

	w := performJSON(t, router, http.MethodPost, "/api/stories/"+storyID.String()+"/advance",
		gin.H{"userInput": "I open the door"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Chapter models.Chapter `json:"chapter"`
		Saved   bool           `json:"saved"`
		Notice  string         `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Chapter.SequenceNumber)
	assert.True(t, resp.Saved)
	assert.Empty(t, resp.Notice)
}

func TestAdvance_UnsavedChapterCarriesNotice(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)
	storyID := uuid.New()

	storySvc.On("Advance", mock.Anything, userID, storyID, "go north").
		Return(&service.AdvanceResult{
			Chapter: models.Chapter{StoryID: storyID, SequenceNumber: 3, Content: "North it is."},
			Saved:   false,
		}, nil)

	w := performJSON(t, router, http.MethodPost, "/api/stories/"+storyID.String()+"/advance",
		gin.H{"userInput": "go north"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Saved  bool   `json:"saved"`
		Notice string `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Saved)
	assert.NotEmpty(t, resp.Notice)
}

func TestAdvance_Conflict(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)
	storyID := uuid.New()

	storySvc.On("Advance", mock.Anything, userID, storyID, "go").
		Return(nil, models.ErrConflict)

	w := performJSON(t, router, http.MethodPost, "/api/stories/"+storyID.String()+"/advance",
		gin.H{"userInput": "go"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdvance_EmptyInput(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)
	storyID := uuid.New()

	storySvc.On("Advance", mock.Anything, userID, storyID, "").
		Return(nil, models.ErrNoTextProvided)

	w := performJSON(t, router, http.MethodPost, "/api/stories/"+storyID.String()+"/advance",
		gin.H{"userInput": ""})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No text provided"}`, w.Body.String())
}

func TestAdvance_InvalidStoryID(t *testing.T) {
	router, _ := newStoryRouter(t, uuid.New())

	w := performJSON(t, router, http.MethodPost, "/api/stories/not-a-uuid/advance",
		gin.H{"userInput": "go"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStory_NotFound(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)
	storyID := uuid.New()

	storySvc.On("GetStory", mock.Anything, userID, storyID).Return(nil, models.ErrNotFound)

	w := performJSON(t, router, http.MethodGet, "/api/stories/"+storyID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStory_Forbidden(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)
	storyID := uuid.New()

	storySvc.On("GetStory", mock.Anything, userID, storyID).Return(nil, models.ErrForbidden)

	w := performJSON(t, router, http.MethodGet, "/api/stories/"+storyID.String(), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGenerate_StatelessSuccess(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)

	storySvc.On("GenerateOnce", mock.Anything, mock.Anything).
		Return(models.GeneratedChapter{
			Content: "A new tale begins.",
			Choices: []string{"Continue the adventure"},
		}, nil)

	w := performJSON(t, router, http.MethodPost, "/api/story/generate",
		gin.H{"genre": "fantasy", "isInitial": true})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.GeneratedChapter
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "A new tale begins.", resp.Content)
}

func TestGenerate_FailureReturns500(t *testing.T) {
	userID := uuid.New()
	router, storySvc := newStoryRouter(t, userID)

	storySvc.On("GenerateOnce", mock.Anything, mock.Anything).
		Return(models.GeneratedChapter{}, fmt.Errorf("%w: upstream timeout", models.ErrGenerationFailed))

	w := performJSON(t, router, http.MethodPost, "/api/story/generate",
		gin.H{"genre": "fantasy", "userInput": "hello"})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	authSvc := mocks.NewMockAuthService(t)
	router := gin.New()
	h := NewAuthHandler(authSvc, zap.NewNop())
	router.GET("/protected", h.AuthMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := performJSON(t, router, http.MethodGet, "/protected", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	authSvc := mocks.NewMockAuthService(t)
	router := gin.New()
	h := NewAuthHandler(authSvc, zap.NewNop())

	userID := uuid.New()
	authSvc.On("VerifyAccessToken", "sometoken").Return(&models.Claims{
		UserID:    userID,
		TokenUUID: "access-uuid",
		TokenType: "access",
	}, nil)

	router.GET("/protected", h.AuthMiddleware(), func(c *gin.Context) {
		id, ok := currentUserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"userId": id})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	authSvc := mocks.NewMockAuthService(t)
	router := gin.New()
	h := NewAuthHandler(authSvc, zap.NewNop())

	authSvc.On("VerifyAccessToken", "expired").Return(nil, models.ErrTokenExpired)

	router.GET("/protected", h.AuthMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_ValidationRejectsShortPassword(t *testing.T) {
	authSvc := mocks.NewMockAuthService(t)
	router := gin.New()
	h := NewAuthHandler(authSvc, zap.NewNop())
	h.RegisterRoutes(router, noRateLimit)

	w := performJSON(t, router, http.MethodPost, "/api/auth/register",
		gin.H{"username": "alice", "email": "alice@example.com", "password": "short"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	authSvc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	authSvc := mocks.NewMockAuthService(t)
	router := gin.New()
	h := NewAuthHandler(authSvc, zap.NewNop())
	h.RegisterRoutes(router, noRateLimit)

	authSvc.On("Register", mock.Anything, "alice", "alice@example.com", "secretpass1").
		Return(nil, models.ErrUserAlreadyExists)

	w := performJSON(t, router, http.MethodPost, "/api/auth/register",
		gin.H{"username": "alice", "email": "alice@example.com", "password": "secretpass1"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthRateLimit_ExceededReturns429(t *testing.T) {
	authSvc := mocks.NewMockAuthService(t)
	router := gin.New()
	h := NewAuthHandler(authSvc, zap.NewNop())

	store := rateli.InMemoryStore(&rateli.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 2,
	})
	limiter := rateli.RateLimiter(store, &rateli.Options{
		ErrorHandler: func(c *gin.Context, info rateli.Info) {
			c.String(http.StatusTooManyRequests, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
	h.RegisterRoutes(router, limiter)

	authSvc.On("Login", mock.Anything, "alice", "wrong-password").
		Return(nil, models.ErrInvalidCredentials)

	for i := 0; i < 2; i++ {
		w := performJSON(t, router, http.MethodPost, "/api/auth/login",
			gin.H{"username": "alice", "password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := performJSON(t, router, http.MethodPost, "/api/auth/login",
		gin.H{"username": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many requests")
}

func TestCORSPreflight(t *testing.T) {
	router := gin.New()
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))
	h := NewEmotionHandler(mocks.NewMockClassifier(t), zap.NewNop())
	h.RegisterRoutes(router, testAuth(uuid.New()))

	req := httptest.NewRequest(http.MethodOptions, "/api/emotion/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestHandleServiceError_UnknownErrorIsOpaque(t *testing.T) {
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		handleServiceError(c, errors.New("pq: connection reset by peer"))
	})

	w := performJSON(t, router, http.MethodGet, "/boom", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}
