package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildStructuredPromptEmbedsUserInstructions(t *testing.T) {
	prompt := BuildStructuredPrompt("Summarize in French, three sentences.")
	assert.Contains(t, prompt, "Summarize in French, three sentences.")
	assert.Contains(t, prompt, `"summary"`)
	assert.Contains(t, prompt, `"keywords"`)
}

func TestParseStructuredSummary(t *testing.T) {
	t.Run("ValidJSON", func(t *testing.T) {
		got := ParseStructuredSummary(`{"summary": "A page about widgets.", "keywords": ["widgets", "api"]}`)
		assert.Equal(t, "A page about widgets.", got.Summary)
		assert.Equal(t, []string{"widgets", "api"}, got.Keywords)
	})

	t.Run("ValidJSONWithWhitespace", func(t *testing.T) {
		got := ParseStructuredSummary("\n  {\"summary\": \"S\", \"keywords\": []}  \n")
		assert.Equal(t, "S", got.Summary)
		assert.Empty(t, got.Keywords)
	})

	t.Run("MissingKeywords", func(t *testing.T) {
		got := ParseStructuredSummary(`{"summary": "S"}`)
		assert.Equal(t, "S", got.Summary)
		assert.NotNil(t, got.Keywords)
		assert.Empty(t, got.Keywords)
	})

	t.Run("NotJSONDegradesToPlainSummary", func(t *testing.T) {
		got := ParseStructuredSummary("This page covers widgets.\n\nIt also covers\ngadgets.")
		assert.Equal(t, "This page covers widgets. It also covers gadgets.", got.Summary)
		assert.NotNil(t, got.Keywords)
		assert.Empty(t, got.Keywords)
	})

	t.Run("EmptySummaryFieldDegrades", func(t *testing.T) {
		got := ParseStructuredSummary(`{"keywords": ["x"]}`)
		assert.Equal(t, `{"keywords": ["x"]}`, got.Summary)
		assert.Empty(t, got.Keywords)
	})
}

func TestCollapseNewlines(t *testing.T) {
	assert.Equal(t, "a b c", CollapseNewlines("a\n\nb\nc"))
	assert.Equal(t, "", CollapseNewlines("\n\n"))
}
