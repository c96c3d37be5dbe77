package masking

import (
	"log/slog"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement,
// grounded on pkg/masking.CompiledPattern from the teacher.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatternSource lists the regex/replacement pairs this service
// compiles at startup. Adapted from the teacher's builtin masking config,
// trimmed to the PII and credential shapes relevant to support-ticket text
// (email addresses, phone numbers, card numbers, and the API key/token/SSH
// key shapes a customer might accidentally paste into a ticket body) —
// Kubernetes-specific entries (certificate-authority-data, kubeconfig PEM
// blocks) are dropped since this service never sees cluster manifests.
var builtinPatternSource = []struct {
	name        string
	pattern     string
	replacement string
}{
	{
		name:        "email",
		pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
		replacement: `[MASKED_EMAIL]`,
	},
	{
		name:        "phone",
		pattern:     `\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`,
		replacement: `[MASKED_PHONE]`,
	},
	{
		name:        "credit_card",
		pattern:     `\b(?:\d[ -]*?){13,16}\b`,
		replacement: `[MASKED_CARD_NUMBER]`,
	},
	{
		name:        "api_key",
		pattern:     `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`,
		replacement: `"api_key": "[MASKED_API_KEY]"`,
	},
	{
		name:        "token",
		pattern:     `(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{20,})["']?`,
		replacement: `"token": "[MASKED_TOKEN]"`,
	},
	{
		name:        "ssh_key",
		pattern:     `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
		replacement: `[MASKED_SSH_KEY]`,
	},
}

// compileBuiltinPatterns compiles builtinPatternSource into CompiledPatterns.
// Invalid patterns are logged and skipped, matching the teacher's
// compileBuiltinPatterns behavior.
func compileBuiltinPatterns() []*CompiledPattern {
	patterns := make([]*CompiledPattern, 0, len(builtinPatternSource))
	for _, p := range builtinPatternSource {
		compiled, err := regexp.Compile(p.pattern)
		if err != nil {
			slog.Error("failed to compile masking pattern, skipping", "pattern", p.name, "error", err)
			continue
		}
		patterns = append(patterns, &CompiledPattern{
			Name:        p.name,
			Regex:       compiled,
			Replacement: p.replacement,
		})
	}
	return patterns
}
