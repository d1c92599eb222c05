package generator

import (
	"encoding/json"
	"regexp"
	"strings"

	"storyweaver-server/internal/models"
)

// DefaultChoices is the fixed choice set supplied when the model's output
// cannot be parsed as the expected JSON object.
var DefaultChoices = []string{
	"Continue the adventure",
	"Look around carefully",
	"Think about the situation",
	"Ask for help",
}

// Models wrap JSON answers in markdown code fences often enough that the
// parser strips them before decoding.
var jsonBlockRegex = regexp.MustCompile("(?s)```(?:\\w+)?\\s*(.*?)\\s*```")

// ParseResponse decodes the raw model output into a GeneratedChapter.
// When the output is not a valid {content, choices} JSON object, the entire
// raw output becomes the chapter content and DefaultChoices is supplied;
// malformed output is never surfaced as an error.
func ParseResponse(rawText string) models.GeneratedChapter {
	cleaned := extractJSONContent(rawText)

	var parsed models.GeneratedChapter
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed.Content != "" {
		if len(parsed.Choices) > models.MaxChoices {
			parsed.Choices = parsed.Choices[:models.MaxChoices]
		}
		if parsed.Choices == nil {
			parsed.Choices = []string{}
		}
		return parsed
	}

	return models.GeneratedChapter{
		Content: rawText,
		Choices: append([]string(nil), DefaultChoices...),
	}
}

// extractJSONContent strips a surrounding markdown code fence, tolerating a
// missing opening or closing fence.
func extractJSONContent(rawText string) string {
	cleaned := strings.TrimSpace(rawText)

	if matches := jsonBlockRegex.FindStringSubmatch(cleaned); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))
	}
	if strings.HasPrefix(cleaned, "```") {
		if firstNewline := strings.Index(cleaned, "\n"); firstNewline != -1 {
			cleaned = strings.TrimSpace(cleaned[firstNewline+1:])
		} else {
			cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```"))
		}
	}

	return cleaned
}
