package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	styleSystemPrompt  = "You analyze social media captions and describe the author's writing voice in two or three sentences. Describe tone, sentence length, emoji and hashtag habits. Do not quote the captions."
	reviewSystemPrompt = "You write short, honest product reviews that sound like a specific social media creator."
	scriptSystemPrompt = "You write spoken scripts for short vertical videos. Output only the words to be spoken, no stage directions."

	// maxStyleCaptions bounds how many captions are sent to the style model.
	maxStyleCaptions = 20
)

func buildStylePrompt(captions []string) string {
	if len(captions) > maxStyleCaptions {
		captions = captions[:maxStyleCaptions]
	}
	var b strings.Builder
	b.WriteString("Describe the writing style of the creator who wrote these captions:\n\n")
	for i, c := range captions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, truncateRunes(c, 500))
	}
	return b.String()
}

func buildReviewPrompt(product ProductInfo, style StyleDescriptor) string {
	return fmt.Sprintf(`Write a product review in the style of %s for the product titled '%s' with the following description: %s`,
		style.Text, product.Title, truncateRunes(product.Description, 4000))
}

func buildScriptPrompt(review ReviewText, style StyleDescriptor) string {
	return fmt.Sprintf(`Create a video script in the style of %s for the following product review: %s`,
		style.Text, string(review))
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
