package utils

// TruncateForModel bounds text to an estimated token budget using a flat
// characters-per-token ratio. The ratio is a conservative estimate for
// mixed-language input; real token counts depend on the model's tokenizer.
// The cut is a hard substring cut at the computed character limit, not
// sentence-aware, and the operation is idempotent.
func TruncateForModel(text string, maxTokens, charsPerToken int) string {
	if text == "" || maxTokens <= 0 || charsPerToken <= 0 {
		return ""
	}

	estimatedMaxChars := maxTokens * charsPerToken
	runes := []rune(text)
	if len(runes) > estimatedMaxChars {
		return string(runes[:estimatedMaxChars])
	}
	return text
}
