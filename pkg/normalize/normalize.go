// Package normalize implements the enrichment normalizer (C5): clamping and
// mapping the LLM's raw output into the closed category/sentiment enums,
// bounding risk, truncating the suggested reply, and deriving citations.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/prabuddhasl/support-intel-enricher/pkg/codec"
	"github.com/prabuddhasl/support-intel-enricher/pkg/kb"
	"github.com/prabuddhasl/support-intel-enricher/pkg/llm"
)

const maxReplyWords = 140

// categoryKeywords is the first-match keyword table applied when the raw
// category string isn't already one of the enum values (spec §4.5).
var categoryKeywords = []struct {
	keywords []string
	category codec.Category
}{
	{[]string{"billing", "invoice", "refund", "charge"}, codec.CategoryBilling},
	{[]string{"security", "breach", "incident"}, codec.CategorySecurityIncident},
	{[]string{"refresh"}, codec.CategoryDataRefresh},
	{[]string{"export"}, codec.CategoryExports},
	{[]string{"feature", "roadmap"}, codec.CategoryFeatureRequest},
	{[]string{"oauth", "api key", "integration"}, codec.CategoryIntegration},
	{[]string{"alert", "notification", "slack"}, codec.CategoryNotifications},
	{[]string{"login", "password", "account", "access"}, codec.CategoryAccountAccess},
}

var validCategories = map[codec.Category]struct{}{
	codec.CategoryAccountAccess: {}, codec.CategoryBilling: {}, codec.CategorySecurityIncident: {},
	codec.CategoryDataRefresh: {}, codec.CategoryExports: {}, codec.CategoryFeatureRequest: {},
	codec.CategoryIntegration: {}, codec.CategoryNotifications: {}, codec.CategoryGeneral: {},
}

// Result is the normalized enrichment ready for the store writer.
type Result struct {
	Summary        string
	Category       codec.Category
	Sentiment      codec.Sentiment
	Risk           float64
	SuggestedReply string
	Citations      []codec.Citation
}

// Normalize applies C5's clamping/mapping rules to raw, deriving citations
// from the chunks actually presented to the LLM.
func Normalize(raw llm.RawOutput, usedChunks []kb.Chunk) Result {
	return Result{
		Summary:        raw.Summary,
		Category:       normalizeCategory(raw.Category),
		Sentiment:      normalizeSentiment(raw.Sentiment),
		Risk:           normalizeRisk(raw.Risk),
		SuggestedReply: truncateReply(raw.SuggestedReply),
		Citations:      deriveCitations(usedChunks),
	}
}

func normalizeRisk(raw json.RawMessage) float64 {
	f, ok := parseRisk(raw)
	if !ok {
		return 0.0
	}
	switch {
	case f < 0:
		return 0.0
	case f > 1:
		return 1.0
	default:
		return f
	}
}

// parseRisk accepts either a JSON number or a numeric JSON string (some
// models emit "0.8" quoted); anything else is non-numeric.
func parseRisk(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func normalizeSentiment(raw string) codec.Sentiment {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch codec.Sentiment(s) {
	case codec.SentimentPositive, codec.SentimentNeutral, codec.SentimentNegative:
		return codec.Sentiment(s)
	}
	switch s {
	case "frustrated", "angry", "upset":
		return codec.SentimentNegative
	case "happy", "satisfied":
		return codec.SentimentPositive
	default:
		return codec.SentimentNeutral
	}
}

func normalizeCategory(raw string) codec.Category {
	c := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := validCategories[codec.Category(c)]; ok {
		return codec.Category(c)
	}
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(c, kw) {
				return entry.category
			}
		}
	}
	return codec.CategoryGeneral
}

func truncateReply(reply string) string {
	words := strings.Fields(reply)
	if len(words) <= maxReplyWords {
		return reply
	}
	return strings.Join(words[:maxReplyWords], " ") + "…"
}

func deriveCitations(chunks []kb.Chunk) []codec.Citation {
	citations := make([]codec.Citation, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == 0 {
			continue
		}
		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		citations = append(citations, codec.Citation{
			ChunkID:     int(c.ID),
			Title:       title,
			HeadingPath: c.HeadingPath,
		})
	}
	return citations
}
