package app

import "unicode/utf8"

// EstimateTokens returns an approximate token count for a piece of text.
//
// This is not a tokenizer. Every size decision in the assistant (context
// windows, digest budgets, prompt validation) runs through this single
// estimate so thresholds stay comparable across components.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	// Most BPE tokenizers land around ~4 chars/token for English-ish prose.
	// Round up so budget checks trip early rather than late.
	r := utf8.RuneCountInString(text)
	return (r + 3) / 4
}
