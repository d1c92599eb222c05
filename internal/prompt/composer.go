// Package prompt assembles the text-generation prompt for one story turn.
// Composition is a pure function of its inputs: no clock reads, no
// randomness, so identical inputs always produce byte-identical prompts.
package prompt

import (
	"fmt"
	"math"
	"strings"

	"storyweaver-server/internal/models"
)

// ChapterContext is the slice of chapter history the composer needs: the
// generated content and the user input that produced it.
type ChapterContext struct {
	Content   string `json:"content"`
	UserInput string `json:"userInput"`
}

// Input bundles everything one composition depends on.
type Input struct {
	Genre         models.Genre
	Chapters      []ChapterContext
	UserInput     string
	Emotion       *models.EmotionResult
	IsInitialTurn bool
}

// responseFormat instructs the generator to answer with exactly the JSON
// object the parser expects.
const responseFormat = `Format your response as JSON:
{
  "content": "The story chapter text...",
  "choices": ["Choice 1", "Choice 2", "Choice 3", "Choice 4"]
}`

// Build produces the full prompt for one turn.
func Build(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert interactive storyteller creating a personalized %s story.", in.Genre)

	if in.Emotion != nil {
		fmt.Fprintf(&b, " The user is currently feeling %s (%d%% confidence).",
			in.Emotion.DominantEmotion, roundPercent(in.Emotion.Confidence))
		b.WriteString(" Adapt the story tone and events to acknowledge and respond to this emotional state.")
	}

	if len(in.Chapters) > 0 {
		b.WriteString("\n\nPrevious story chapters:\n")
		for i, ch := range in.Chapters {
			if ch.UserInput != "" {
				fmt.Fprintf(&b, "User input %d: %s\n", i+1, ch.UserInput)
			}
			fmt.Fprintf(&b, "Chapter %d: %s\n\n", i+1, ch.Content)
		}
	}

	if in.IsInitialTurn {
		writeOpeningInstructions(&b, in.Genre)
	} else {
		writeContinuationInstructions(&b, in)
	}

	return b.String()
}

func writeOpeningInstructions(b *strings.Builder, genre models.Genre) {
	fmt.Fprintf(b, `

Create an engaging opening chapter for a %s story. The opening should:
- Set an intriguing scene that immediately draws the reader in
- Establish the main character and setting
- Present an interesting situation or conflict
- End with a moment that invites the reader to participate in the story
- Be approximately 150-200 words
- Use vivid, immersive descriptions

Also provide 3-4 compelling choice options for what the character might do next.

%s`, genre, responseFormat)
}

func writeContinuationInstructions(b *strings.Builder, in Input) {
	emotionLine := "Maintaining story flow"
	if in.Emotion != nil {
		emotionLine = fmt.Sprintf("Responding to their %s emotional state appropriately", in.Emotion.DominantEmotion)
	}

	fmt.Fprintf(b, `

The user just said: %q

Continue the story by:
- Incorporating the user's input naturally into the narrative
- %s
- Advancing the plot with interesting developments
- Creating vivid, engaging descriptions
- Ending with a moment that sets up the next user interaction
- Keep the chapter focused and around 100-150 words

Also provide 3-4 relevant choice options based on the current situation.

%s`, in.UserInput, emotionLine, responseFormat)
}

// roundPercent converts a [0,1] confidence to a rounded whole percentage.
func roundPercent(confidence float64) int {
	return int(math.Round(confidence * 100))
}
