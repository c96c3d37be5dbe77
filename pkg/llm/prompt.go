package llm

import (
	"strings"

	"github.com/prabuddhasl/support-intel-enricher/pkg/kb"
)

const defaultKBContextBudget = 4000

const systemDirective = `You are a support-ticket enrichment assistant. Respond with a JSON object and nothing else.

The JSON object must contain exactly these keys: summary, category, sentiment, risk, suggested_reply.

- category must be one of: account_access, billing, security_incident, data_refresh, exports, feature_request, integration, notifications, general.
- sentiment must be one of: positive, neutral, negative.
- risk must be a number between 0 and 1.
- suggested_reply must be a brief acknowledgment followed by 2-4 bullet-point next steps and a closing question, no more than 140 words.

Rely on the KB Context below when it is present. If the ticket is ambiguous and no KB context answers it, ask a clarifying question in suggested_reply rather than guessing.`

// buildKBContext assembles retrieved chunks into a single context block
// bounded by budget characters (spec §4.4): blocks are joined with blank
// lines, and the last block that would overflow the budget is truncated to
// the remaining space rather than omitted.
func buildKBContext(chunks []kb.Chunk, budget int) string {
	if budget <= 0 {
		budget = defaultKBContextBudget
	}

	const joiner = "\n\n"

	var blocks []string
	remaining := budget
	for _, c := range chunks {
		if len(blocks) > 0 {
			remaining -= len(joiner)
		}
		if remaining <= 0 {
			break
		}

		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		block := title + " | " + c.HeadingPath + "\n" + c.Content

		if len(block) > remaining {
			blocks = append(blocks, block[:remaining])
			break
		}
		blocks = append(blocks, block)
		remaining -= len(block)
	}

	return strings.Join(blocks, joiner)
}

// buildSystemPrompt appends the KB Context block to the fixed system
// directive when kbContext is non-empty.
func buildSystemPrompt(kbContext string) string {
	if kbContext == "" {
		return systemDirective
	}
	return systemDirective + "\n\nKB Context:\n" + kbContext
}
