// Package llm implements the LLM adapter (C4): prompt construction, model
// invocation, response extraction, and fence-stripped JSON parsing. It does
// not validate enum membership or numeric ranges — that is the normalizer's
// job (C5).
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/prabuddhasl/support-intel-enricher/pkg/codec"
	"github.com/prabuddhasl/support-intel-enricher/pkg/kb"
)

// RawOutput is the LLM's parsed-but-unvalidated response (spec §4.4).
// Risk is kept as raw JSON since the normalizer (C5), not this adapter,
// coerces non-numeric values to 0.0.
type RawOutput struct {
	Summary        string          `json:"summary"`
	Category       string          `json:"category"`
	Sentiment      string          `json:"sentiment"`
	Risk           json.RawMessage `json:"risk"`
	SuggestedReply string          `json:"suggested_reply"`
}

// Adapter calls an Anthropic model to produce a RawOutput grounded in
// optional KB context.
type Adapter struct {
	client      anthropic.Client
	model       string
	kbBudget    int
	requestRate *rate.Limiter
}

// New constructs an Adapter. requestsPerSecond bounds outbound call rate
// (a refinement toward spec §9's retry/backoff open question — it does not
// implement retry, only a request-rate ceiling).
func New(apiKey, model string, requestsPerSecond float64, kbContextBudget int) *Adapter {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	return &Adapter{
		client:      client,
		model:       model,
		kbBudget:    kbContextBudget,
		requestRate: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

type userPayload struct {
	TicketID string `json:"ticket_id"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Channel  string `json:"channel"`
	Priority string `json:"priority"`
}

// Enrich builds the system+user prompt from ticket and chunks, invokes the
// model, and parses its JSON response. A missing text block or unparseable
// JSON (after fence-stripping) wraps ErrLLMOutputInvalid.
func (a *Adapter) Enrich(ctx context.Context, ticket codec.TicketEvent, chunks []kb.Chunk) (RawOutput, error) {
	if err := a.requestRate.Wait(ctx); err != nil {
		return RawOutput{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	kbContext := buildKBContext(chunks, a.kbBudget)
	systemPrompt := buildSystemPrompt(kbContext)

	userJSON, err := json.Marshal(userPayload{
		TicketID: ticket.TicketID,
		Subject:  ticket.Subject,
		Body:     ticket.Body,
		Channel:  ticket.Channel,
		Priority: ticket.Priority,
	})
	if err != nil {
		return RawOutput{}, fmt.Errorf("marshaling user payload: %w", err)
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(userJSON))),
		},
	})
	if err != nil {
		return RawOutput{}, fmt.Errorf("calling model: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return RawOutput{}, fmt.Errorf("%w: no text blocks in response", ErrLLMOutputInvalid)
	}

	stripped := stripFences(text)

	var out RawOutput
	if err := json.Unmarshal([]byte(stripped), &out); err != nil {
		return RawOutput{}, fmt.Errorf("%w: %v", ErrLLMOutputInvalid, err)
	}
	return out, nil
}

func extractText(resp *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

// stripFences removes a leading ```json or ``` fence and a trailing ```
// fence, per spec §4.4 response handling.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
