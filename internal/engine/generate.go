package engine

import (
	"context"
	"fmt"
	"strings"
)

// Default output budgets, in model tokens.
const (
	DefaultReviewMaxTokens = 150
	DefaultScriptMaxTokens = 300
)

// ReviewGenerator turns product details and a style descriptor into a review.
type ReviewGenerator struct {
	model     ModelClient
	maxTokens int
}

// NewReviewGenerator creates a review generator. A non-positive maxTokens
// selects DefaultReviewMaxTokens.
func NewReviewGenerator(mc ModelClient, maxTokens int) *ReviewGenerator {
	return &ReviewGenerator{model: mc, maxTokens: maxTokensOr(maxTokens, DefaultReviewMaxTokens)}
}

// Generate returns the review text or an error wrapping ErrGeneration.
func (g *ReviewGenerator) Generate(ctx context.Context, product ProductInfo, style StyleDescriptor) (ReviewText, error) {
	out, err := complete(ctx, g.model, Completion{
		System:      reviewSystemPrompt,
		Prompt:      buildReviewPrompt(product, style),
		MaxTokens:   g.maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("review: %w", err)
	}
	return ReviewText(out), nil
}

// ScriptGenerator turns a review and a style descriptor into a spoken script.
type ScriptGenerator struct {
	model     ModelClient
	maxTokens int
}

// NewScriptGenerator creates a script generator. A non-positive maxTokens
// selects DefaultScriptMaxTokens.
func NewScriptGenerator(mc ModelClient, maxTokens int) *ScriptGenerator {
	return &ScriptGenerator{model: mc, maxTokens: maxTokensOr(maxTokens, DefaultScriptMaxTokens)}
}

// Generate returns the script text or an error wrapping ErrGeneration.
func (g *ScriptGenerator) Generate(ctx context.Context, review ReviewText, style StyleDescriptor) (ScriptText, error) {
	out, err := complete(ctx, g.model, Completion{
		System:      scriptSystemPrompt,
		Prompt:      buildScriptPrompt(review, style),
		MaxTokens:   g.maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("script: %w", err)
	}
	return ScriptText(out), nil
}

// complete calls the model and rejects empty output.
func complete(ctx context.Context, mc ModelClient, c Completion) (string, error) {
	out, err := mc.Complete(ctx, c)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGeneration)
	}
	return out, nil
}
