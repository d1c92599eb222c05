package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyweaver-server/internal/models"
	"storyweaver-server/internal/prompt"
	"storyweaver-server/internal/service"
)

// genreInfo is one entry of the fixed genre catalog.
type genreInfo struct {
	ID          models.Genre `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
}

var genreCatalog = []genreInfo{
	{models.GenreFantasy, "Fantasy", "Magical realms filled with dragons, wizards, and ancient mysteries"},
	{models.GenreAdventure, "Adventure", "Thrilling quests and dangerous journeys across unknown lands"},
	{models.GenreRomance, "Romance", "Tales of love, passion, and heartwarming connections"},
	{models.GenreSciFi, "Sci-Fi", "Futuristic worlds with advanced technology and space exploration"},
	{models.GenreMystery, "Mystery", "Puzzling enigmas and thrilling detective adventures"},
	{models.GenreNature, "Nature", "Stories set in beautiful natural settings with environmental themes"},
}

// StoryHandler exposes the story lifecycle and generation endpoints.
type StoryHandler struct {
	storyService service.StoryService
	logger       *zap.Logger
}

// NewStoryHandler creates the story handler.
func NewStoryHandler(storyService service.StoryService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		storyService: storyService,
		logger:       logger.Named("StoryHandler"),
	}
}

// RegisterRoutes mounts the story endpoints. Everything is JWT-protected.
func (h *StoryHandler) RegisterRoutes(router gin.IRouter, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api", authMiddleware)
	{
		api.GET("/genres", h.listGenres)

		api.POST("/stories", h.createStory)
		api.GET("/stories", h.listStories)
		api.GET("/stories/:id", h.getStory)
		api.POST("/stories/:id/advance", h.advance)

		api.POST("/story/generate", h.generate)
	}
}

func (h *StoryHandler) listGenres(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"genres": genreCatalog})
}

type createStoryRequest struct {
	Genre models.Genre `json:"genre" binding:"required"`
}

func (h *StoryHandler) createStory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	story, err := h.storyService.CreateStory(c.Request.Context(), userID, req.Genre)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, story)
}

func (h *StoryHandler) listStories(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	entries, err := h.storyService.ListStories(c.Request.Context(), userID, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stories": entries})
}

func (h *StoryHandler) getStory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid story ID"})
		return
	}

	story, err := h.storyService.GetStory(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, story)
}

type advanceRequest struct {
	UserInput string `json:"userInput"`
}

type advanceResponse struct {
	Chapter models.Chapter `json:"chapter"`
	Saved   bool           `json:"saved"`
	Notice  string         `json:"notice,omitempty"`
}

func (h *StoryHandler) advance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid story ID"})
		return
	}

	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.storyService.Advance(c.Request.Context(), userID, storyID, req.UserInput)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	resp := advanceResponse{Chapter: result.Chapter, Saved: result.Saved}
	if !result.Saved {
		resp.Notice = "The chapter was generated but could not be saved; it may be missing after a reload"
	}
	c.JSON(http.StatusOK, resp)
}

type generateRequest struct {
	Genre       models.Genre            `json:"genre" binding:"required"`
	Chapters    []prompt.ChapterContext `json:"chapters"`
	UserInput   string                  `json:"userInput"`
	EmotionData *models.EmotionResult   `json:"emotionData"`
	IsInitial   bool                    `json:"isInitial"`
}

// generate runs a single stateless compose+generate round trip. Nothing is
// persisted.
func (h *StoryHandler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	generated, err := h.storyService.GenerateOnce(c.Request.Context(), prompt.Input{
		Genre:         req.Genre,
		Chapters:      req.Chapters,
		UserInput:     req.UserInput,
		Emotion:       req.EmotionData,
		IsInitialTurn: req.IsInitial,
	})
	if err != nil {
		if errors.Is(err, models.ErrGenerationFailed) {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
			return
		}
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, generated)
}
