package chunker

import "unicode/utf8"

// EstimateTokens gives a rough token count using the ~4 chars/token heuristic.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	tokens := n / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// EstimateTotal sums EstimateTokens over chunks.
func EstimateTotal(chunks []string) int {
	total := 0
	for _, c := range chunks {
		total += EstimateTokens(c)
	}
	return total
}
