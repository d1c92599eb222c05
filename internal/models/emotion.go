package models

// EmotionResult is the normalized outcome of one emotion classification call.
// The upstream service returns a list of (label, score) pairs over a fixed
// vocabulary (joy, sadness, anger, fear, surprise, love, neutral); only the
// reduced form ever leaves the classifier.
type EmotionResult struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Confidence      float64            `json:"confidence"`
	AllEmotions     map[string]float64 `json:"all_emotions"`
}

// NeutralEmotion is the fallback used when the classifier returns no scores.
const NeutralEmotion = "neutral"
