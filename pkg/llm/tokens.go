// Package llm provides the model-facing plumbing for threadline-engine:
// token estimation, context window assembly and the streaming relay client.
package llm

// charsPerToken is the approximation ratio used for budget decisions.
// A real tokenizer is deliberately not used here: trimming only needs a
// deterministic, monotonic ordering of message sizes, not exact counts.
const charsPerToken = 4

// EstimateTokens approximates the token cost of a text blob. It reads only
// the string length, so it is O(1), deterministic and monotonic in input
// length. Empty input costs zero.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}
