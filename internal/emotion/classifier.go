package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"storyweaver-server/internal/models"
)

const defaultTimeout = 15 * time.Second

// ErrEmptyText is returned when classification is requested for empty or
// whitespace-only text. Callers are expected to skip the call entirely in
// that case; this error exists for the HTTP boundary.
var ErrEmptyText = errors.New("no text provided")

// ErrClassificationFailed wraps any upstream transport, status or shape
// failure. The orchestrator absorbs it and proceeds without an emotion
// signal.
var ErrClassificationFailed = errors.New("emotion classification failed")

var classificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storyweaver_emotion_classifications_total",
		Help: "Total number of emotion classification calls by outcome.",
	},
	[]string{"status"},
)

// Classifier reduces free text to a single dominant-emotion result.
type Classifier interface {
	// Classify sends text to the external classification service and
	// returns the normalized result. Text must be non-empty.
	Classify(ctx context.Context, text string) (*models.EmotionResult, error)
}

// Score is one (label, score) pair as returned by the inference API.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type hfRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		ReturnAllScores bool `json:"return_all_scores"`
	} `json:"parameters"`
}

// Compile-time check to ensure implementation satisfies the interface.
var _ Classifier = (*HTTPClassifier)(nil)

// HTTPClassifier calls the HuggingFace inference API for the
// j-hartmann/emotion-english-distilroberta-base model.
type HTTPClassifier struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClassifier creates a classifier against the given inference URL.
func NewHTTPClassifier(apiURL, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPClassifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClassifier{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("EmotionClassifier"),
	}
}

// Classify implements Classifier.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (*models.EmotionResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if c.apiKey == "" {
		classificationsTotal.With(prometheus.Labels{"status": "error"}).Inc()
		return nil, fmt.Errorf("%w: API key not configured", ErrClassificationFailed)
	}

	reqBody := hfRequest{Inputs: text}
	reqBody.Parameters.ReturnAllScores = true
	payload, err := json.Marshal(reqBody)
	if err != nil {
		classificationsTotal.With(prometheus.Labels{"status": "error"}).Inc()
		return nil, fmt.Errorf("%w: failed to marshal request: %v", ErrClassificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		classificationsTotal.With(prometheus.Labels{"status": "error"}).Inc()
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrClassificationFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Emotion API request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		classificationsTotal.With(prometheus.Labels{"status": "error"}).Inc()
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		classificationsTotal.With(prometheus.Labels{"status": "error"}).Inc()
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrClassificationFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Emotion API returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 512)),
		)
		classificationsTotal.With(prometheus.Labels{"status": "upstream_error"}).Inc()
		return nil, fmt.Errorf("%w: upstream status %d", ErrClassificationFailed, resp.StatusCode)
	}

	scores, err := parseScores(body)
	if err != nil {
		c.logger.Warn("Emotion API returned unexpected response shape", zap.Error(err))
		classificationsTotal.With(prometheus.Labels{"status": "malformed"}).Inc()
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	result := Reduce(scores)
	classificationsTotal.With(prometheus.Labels{"status": "success"}).Inc()
	c.logger.Debug("Text classified",
		zap.String("dominantEmotion", result.DominantEmotion),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// parseScores handles the two shapes the inference API is known to return:
// a nested [[{label,score}...]] array or a flat [{label,score}...] array.
func parseScores(body []byte) ([]Score, error) {
	var nested [][]Score
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}

	var flat []Score
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}

	return nil, fmt.Errorf("response is neither a nested nor a flat score array")
}

// Reduce selects the maximum-score label from a score list. Ties are broken
// by first-seen order. An empty list degrades to a zero-confidence neutral
// result.
func Reduce(scores []Score) *models.EmotionResult {
	result := &models.EmotionResult{
		DominantEmotion: models.NeutralEmotion,
		Confidence:      0,
		AllEmotions:     make(map[string]float64, len(scores)),
	}
	for i, s := range scores {
		result.AllEmotions[s.Label] = s.Score
		if i == 0 || s.Score > result.Confidence {
			result.DominantEmotion = s.Label
			result.Confidence = s.Score
		}
	}
	return result
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
