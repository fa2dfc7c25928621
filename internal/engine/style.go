package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Descriptor sources.
const (
	StyleFromCaptions = "captions"
	StyleFromModel    = "model"
	StyleGeneric      = "generic"
)

// GenericStyle is used when a creator has no captions to learn from.
var GenericStyle = StyleDescriptor{
	Text:   "Warm, casual first-person social media voice. Short sentences, friendly enthusiasm, and a direct call to action.",
	Source: StyleGeneric,
}

var hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// CaptionAnalyzer derives a style descriptor from simple caption statistics.
// The result depends only on its input.
type CaptionAnalyzer struct{}

// Analyze implements StyleAnalyzer.
func (CaptionAnalyzer) Analyze(_ context.Context, captions []string) StyleDescriptor {
	texts := nonEmpty(captions)
	if len(texts) == 0 {
		return GenericStyle
	}

	var words, emoji, exclaims, questions, capsWords int
	tags := make(map[string]int)
	for _, c := range texts {
		fields := strings.Fields(c)
		words += len(fields)
		for _, w := range fields {
			if isShouted(w) {
				capsWords++
			}
		}
		for _, r := range c {
			switch {
			case r == '!':
				exclaims++
			case r == '?':
				questions++
			case isEmoji(r):
				emoji++
			}
		}
		for _, tag := range hashtagPattern.FindAllString(c, -1) {
			tags[strings.ToLower(tag)]++
		}
	}

	n := float64(len(texts))
	avgWords := float64(words) / n

	var traits []string
	switch {
	case avgWords < 12:
		traits = append(traits, "short, punchy captions")
	case avgWords < 40:
		traits = append(traits, "conversational captions of moderate length")
	default:
		traits = append(traits, "long-form, story-driven captions")
	}
	switch perPost := float64(emoji) / n; {
	case perPost >= 2:
		traits = append(traits, "heavy emoji use")
	case perPost > 0:
		traits = append(traits, "occasional emoji")
	default:
		traits = append(traits, "no emoji")
	}
	if float64(exclaims)/n >= 1 {
		traits = append(traits, "high-energy tone with frequent exclamations")
	}
	if questions > 0 {
		traits = append(traits, "asks the audience direct questions")
	}
	if words > 0 && float64(capsWords)/float64(words) > 0.05 {
		traits = append(traits, "ALL CAPS for emphasis")
	}
	if top := topTags(tags, 3); len(top) > 0 {
		traits = append(traits, "signature hashtags "+strings.Join(top, " "))
	}

	return StyleDescriptor{
		Text:   fmt.Sprintf("Creator voice: %s.", strings.Join(traits, "; ")),
		Source: StyleFromCaptions,
	}
}

// ModelAnalyzer asks a language model to describe the creator's voice and
// falls back to another analyzer when the model is unavailable.
type ModelAnalyzer struct {
	model     ModelClient
	fallback  StyleAnalyzer
	maxTokens int
}

// NewModelAnalyzer creates a model-backed analyzer with a CaptionAnalyzer fallback.
func NewModelAnalyzer(mc ModelClient) *ModelAnalyzer {
	return &ModelAnalyzer{model: mc, fallback: CaptionAnalyzer{}, maxTokens: 120}
}

// Analyze implements StyleAnalyzer.
func (a *ModelAnalyzer) Analyze(ctx context.Context, captions []string) StyleDescriptor {
	texts := nonEmpty(captions)
	if len(texts) == 0 {
		return GenericStyle
	}

	out, err := a.model.Complete(ctx, Completion{
		System:      styleSystemPrompt,
		Prompt:      buildStylePrompt(texts),
		MaxTokens:   a.maxTokens,
		Temperature: 0.2,
	})
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		slog.Warn("style model unavailable, using caption statistics", "captions", len(texts), "error", err)
		return a.fallback.Analyze(ctx, texts)
	}
	return StyleDescriptor{Text: out, Source: StyleFromModel}
}

func nonEmpty(captions []string) []string {
	var out []string
	for _, c := range captions {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func topTags(counts map[string]int, n int) []string {
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > n {
		tags = tags[:n]
	}
	return tags
}

func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1FAFF) ||
		(r >= 0x2600 && r <= 0x27BF) ||
		unicode.Is(unicode.So, r) && r > 0x2000
}

func isShouted(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3
}
