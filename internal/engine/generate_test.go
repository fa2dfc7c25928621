package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewGenerator_PromptAndBudget(t *testing.T) {
	mc := &scriptedModel{reply: " Great bottle. "}
	product := ProductInfo{Title: "Bottle", Description: "Keeps water cold."}
	style := StyleDescriptor{Text: "dry wit"}

	got, err := NewReviewGenerator(mc, 0).Generate(context.Background(), product, style)
	require.NoError(t, err)
	assert.Equal(t, ReviewText("Great bottle."), got)

	require.Len(t, mc.calls, 1)
	c := mc.calls[0]
	assert.Equal(t, DefaultReviewMaxTokens, c.MaxTokens)
	assert.Contains(t, c.Prompt, "dry wit")
	assert.Contains(t, c.Prompt, "'Bottle'")
	assert.Contains(t, c.Prompt, "Keeps water cold.")
}

func TestScriptGenerator_PromptAndBudget(t *testing.T) {
	mc := &scriptedModel{reply: "Hey friends."}
	got, err := NewScriptGenerator(mc, 0).Generate(context.Background(), "Great bottle.", StyleDescriptor{Text: "dry wit"})
	require.NoError(t, err)
	assert.Equal(t, ScriptText("Hey friends."), got)
	assert.Equal(t, DefaultScriptMaxTokens, mc.calls[0].MaxTokens)
	assert.Contains(t, mc.calls[0].Prompt, "Great bottle.")
}

func TestGenerators_CustomBudget(t *testing.T) {
	mc := &scriptedModel{reply: "x"}
	_, err := NewReviewGenerator(mc, 42).Generate(context.Background(), ProductInfo{}, GenericStyle)
	require.NoError(t, err)
	assert.Equal(t, 42, mc.calls[0].MaxTokens)
}

func TestGenerators_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewReviewGenerator(&scriptedModel{err: errors.New("HTTP 401")}, 0).Generate(ctx, ProductInfo{}, GenericStyle)
	assert.ErrorIs(t, err, ErrGeneration)

	_, err = NewScriptGenerator(&scriptedModel{reply: "   "}, 0).Generate(ctx, "review", GenericStyle)
	assert.ErrorIs(t, err, ErrGeneration)
}
