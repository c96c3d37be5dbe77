package normalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prabuddhasl/support-intel-enricher/pkg/codec"
	"github.com/prabuddhasl/support-intel-enricher/pkg/kb"
	"github.com/prabuddhasl/support-intel-enricher/pkg/llm"
)

func TestNormalize_HappyPath(t *testing.T) {
	raw := llm.RawOutput{
		Summary:        "Payment issue",
		Category:       "Billing & Subscriptions",
		Sentiment:      "frustrated",
		Risk:           json.RawMessage("1.5"),
		SuggestedReply: "Sorry…",
	}
	chunks := []kb.Chunk{{ID: 12, Title: "Billing FAQ", HeadingPath: "Payments"}}

	result := Normalize(raw, chunks)

	assert.Equal(t, codec.CategoryBilling, result.Category)
	assert.Equal(t, codec.SentimentNegative, result.Sentiment)
	assert.Equal(t, 1.0, result.Risk)
	assert.Equal(t, []codec.Citation{{ChunkID: 12, Title: "Billing FAQ", HeadingPath: "Payments"}}, result.Citations)
}

func TestNormalizeRisk(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"0.4", 0.4},
		{"-1", 0.0},
		{"2", 1.0},
		{`"not a number"`, 0.0},
		{"null", 0.0},
	}
	for _, tt := range tests {
		got := normalizeRisk(json.RawMessage(tt.raw))
		assert.Equal(t, tt.want, got, "raw=%s", tt.raw)
	}
}

func TestNormalizeSentiment(t *testing.T) {
	assert.Equal(t, codec.SentimentNegative, normalizeSentiment("Angry"))
	assert.Equal(t, codec.SentimentPositive, normalizeSentiment("happy"))
	assert.Equal(t, codec.SentimentNeutral, normalizeSentiment("confused"))
	assert.Equal(t, codec.SentimentNegative, normalizeSentiment("negative"))
}

func TestNormalizeCategory_KeywordFallback(t *testing.T) {
	assert.Equal(t, codec.CategoryBilling, normalizeCategory("Billing & Subscriptions"))
	assert.Equal(t, codec.CategorySecurityIncident, normalizeCategory("possible breach detected"))
	assert.Equal(t, codec.CategoryGeneral, normalizeCategory("something else entirely"))
	assert.Equal(t, codec.CategoryAccountAccess, normalizeCategory("account"))
}

func TestTruncateReply_Over140Words(t *testing.T) {
	reply := strings.Repeat("word ", 200)
	got := truncateReply(reply)
	words := strings.Fields(got)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Len(t, words, maxReplyWords)
}

func TestTruncateReply_UnderLimit(t *testing.T) {
	reply := "Short reply."
	assert.Equal(t, reply, truncateReply(reply))
}

func TestDeriveCitations_DropsChunksWithoutID(t *testing.T) {
	chunks := []kb.Chunk{{ID: 0, Title: "no id"}, {ID: 5, Title: "has id"}}
	citations := deriveCitations(chunks)
	assert.Len(t, citations, 1)
	assert.Equal(t, 5, citations[0].ChunkID)
}
