package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyweaver-server/internal/emotion"
	"storyweaver-server/internal/models"
)

// EmotionHandler exposes the standalone emotion analysis endpoint.
type EmotionHandler struct {
	classifier emotion.Classifier
	logger     *zap.Logger
}

// NewEmotionHandler creates the emotion analysis handler.
func NewEmotionHandler(classifier emotion.Classifier, logger *zap.Logger) *EmotionHandler {
	return &EmotionHandler{
		classifier: classifier,
		logger:     logger.Named("EmotionHandler"),
	}
}

// RegisterRoutes mounts the emotion analysis endpoint.
func (h *EmotionHandler) RegisterRoutes(router gin.IRouter, authMiddleware gin.HandlerFunc) {
	router.POST("/api/emotion/analyze", authMiddleware, h.Analyze)
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Emotion *models.EmotionResult `json:"emotion"`
}

// Analyze classifies the emotional tone of a piece of text.
func (h *EmotionHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No text provided"})
		return
	}

	result, err := h.classifier.Classify(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, emotion.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No text provided"})
			return
		}
		h.logger.Error("Emotion analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, analyzeResponse{Emotion: result})
}
