package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResponse_PlainJSON(t *testing.T) {
	raw := `{"content":"The dragon circled overhead.","choices":["Run","Hide"]}`

	got := ParseResponse(raw)

	assert.Equal(t, "The dragon circled overhead.", got.Content)
	assert.Equal(t, []string{"Run", "Hide"}, got.Choices)
}

func TestParseResponse_FencedJSON(t *testing.T) {
	raw := "```json\n{\"content\":\"A storm rolled in.\",\"choices\":[\"Seek shelter\"]}\n```"

	got := ParseResponse(raw)

	assert.Equal(t, "A storm rolled in.", got.Content)
	assert.Equal(t, []string{"Seek shelter"}, got.Choices)
}

func TestParseResponse_UnparseableFallsBack(t *testing.T) {
	raw := "The wizard smiled and said this is not json at all."

	got := ParseResponse(raw)

	assert.Equal(t, raw, got.Content)
	assert.Equal(t, DefaultChoices, got.Choices)
}

func TestParseResponse_EmptyContentFallsBack(t *testing.T) {
	raw := `{"content":"","choices":["A","B"]}`

	got := ParseResponse(raw)

	// A JSON object without content is treated like unparseable output.
	assert.Equal(t, raw, got.Content)
	assert.Equal(t, DefaultChoices, got.Choices)
}

func TestParseResponse_TruncatesChoices(t *testing.T) {
	raw := `{"content":"ok","choices":["1","2","3","4","5","6"]}`

	got := ParseResponse(raw)

	assert.Len(t, got.Choices, 4)
}

func TestParseResponse_NilChoicesBecomeEmpty(t *testing.T) {
	raw := `{"content":"ok"}`

	got := ParseResponse(raw)

	assert.NotNil(t, got.Choices)
	assert.Empty(t, got.Choices)
}

func TestParseResponse_FallbackCopyIsIndependent(t *testing.T) {
	got := ParseResponse("not json")
	got.Choices[0] = "mutated"

	assert.Equal(t, "Continue the adventure", DefaultChoices[0])
}
