package llm

import "unicode"

// EstimateTokens approximates the token count of a text without calling a
// tokenizer. CJK characters tokenize at roughly one token per rune; for the
// rest the usual four-characters-per-token heuristic applies. Used only for
// accounting and diagnostics when a provider omits usage counts.
func EstimateTokens(text string) int64 {
	var cjk, other int64
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			cjk++
		} else {
			other++
		}
	}
	tokens := cjk + other/4
	if tokens == 0 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}

// EstimateRequestTokens approximates the input token count of a request by
// summing the system prompt and every message body.
func EstimateRequestTokens(req *Request) int64 {
	if req == nil {
		return 0
	}
	total := EstimateTokens(req.System)
	for _, msg := range req.Messages {
		total += EstimateTokens(msg.Content)
	}
	return total
}
