// Package summarizer turns extracted page content into summaries via a
// language model.
package summarizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildStructuredPrompt wraps the user's summarization instructions with the
// JSON output contract used for record-format runs. The user prompt controls
// the summary content; the wrapper controls the shape of the response.
func BuildStructuredPrompt(userPrompt string) string {
	return fmt.Sprintf(`You are analyzing a webpage to create a structured summary for LLM retrieval.

Instructions for the summary content:
%s

You MUST return ONLY valid JSON with these exact fields:
{
  "summary": "Your summary following the instructions above",
  "keywords": ["array", "of", "5-15", "relevant", "keywords", "for", "BM25", "search"]
}

Include technical terms, concepts, product names, and action verbs in keywords.
Return valid JSON only, no markdown code blocks or extra text.`, userPrompt)
}

// StructuredSummary is the parsed model response in structured mode.
type StructuredSummary struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// ParseStructuredSummary decodes a structured-mode model response. A response
// that is not valid JSON degrades to a plain summary: the raw text with
// newlines collapsed, and no keywords.
func ParseStructuredSummary(raw string) StructuredSummary {
	var parsed StructuredSummary
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil || parsed.Summary == "" {
		return StructuredSummary{
			Summary:  CollapseNewlines(raw),
			Keywords: []string{},
		}
	}
	if parsed.Keywords == nil {
		parsed.Keywords = []string{}
	}
	return parsed
}

// CollapseNewlines flattens a multi-line summary onto one line.
func CollapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\n\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
