// Package budget provides token budget estimation and prompt trimming for the
// interview collaborators. Because multiple LLM backends with different
// tokenizers are supported, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving room
	// for the generated output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimSnippets drops retrieved context snippets until the total estimated
// token count of fixed + snippets fits within maxTokens. fixed contains the
// messages that must not be trimmed (system prompt, task instruction).
// snippets are ordered most-relevant first, so trimming removes from the tail.
//
// Returns the trimmed snippet slice. If even an empty snippet list exceeds
// the budget, the empty slice is returned — fixed messages are never dropped
// here, callers should warn separately when fixed alone exceeds the budget.
func TrimSnippets(fixed []*schema.Message, snippets []string, maxTokens int) []string {
	if len(snippets) == 0 {
		return snippets
	}

	fixedTokens := EstimateMessages(fixed)

	// Snippet lists are tiny (top-k ≤ 10); a linear scan dropping the least
	// relevant tail entry is clear and correct.
	for len(snippets) > 0 {
		total := fixedTokens
		for _, s := range snippets {
			total += Estimate(s)
		}
		if total <= maxTokens {
			break
		}
		snippets = snippets[:len(snippets)-1]
	}
	return snippets
}
