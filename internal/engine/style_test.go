package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// scriptedModel returns a fixed reply and records what it was asked.
type scriptedModel struct {
	reply string
	err   error
	calls []Completion
}

func (m *scriptedModel) Complete(_ context.Context, c Completion) (string, error) {
	m.calls = append(m.calls, c)
	return m.reply, m.err
}

func TestCaptionAnalyzer_EmptyCaptionsYieldGeneric(t *testing.T) {
	ctx := context.Background()
	for _, in := range [][]string{nil, {}, {"", "   "}} {
		got := CaptionAnalyzer{}.Analyze(ctx, in)
		assert.Equal(t, GenericStyle, got)
		assert.NotEmpty(t, got.Text)
	}
}

func TestCaptionAnalyzer_Deterministic(t *testing.T) {
	captions := []string{
		"New drop!! You guys are going to LOVE this 🔥 #ootd #summer",
		"Would you wear this? 👀 #ootd",
		"Morning routine, nothing fancy #morning #ootd",
	}
	a := CaptionAnalyzer{}
	first := a.Analyze(context.Background(), captions)
	second := a.Analyze(context.Background(), captions)

	assert.Equal(t, first, second)
	assert.Equal(t, StyleFromCaptions, first.Source)
	assert.Contains(t, first.Text, "#ootd")
	assert.Contains(t, first.Text, "asks the audience direct questions")
	assert.Contains(t, first.Text, "short, punchy captions")
}

func TestCaptionAnalyzer_LongFormNoEmoji(t *testing.T) {
	long := strings.Repeat("we talked for hours about the slow craft of making bread at home ", 4)
	got := CaptionAnalyzer{}.Analyze(context.Background(), []string{long})
	assert.Contains(t, got.Text, "long-form")
	assert.Contains(t, got.Text, "no emoji")
}

func TestModelAnalyzer_UsesModel(t *testing.T) {
	mc := &scriptedModel{reply: "  Dry wit, lowercase, zero emoji.  "}
	got := NewModelAnalyzer(mc).Analyze(context.Background(), []string{"hello there"})

	assert.Equal(t, StyleDescriptor{Text: "Dry wit, lowercase, zero emoji.", Source: StyleFromModel}, got)
	if assert.Len(t, mc.calls, 1) {
		assert.Contains(t, mc.calls[0].Prompt, "hello there")
	}
}

func TestModelAnalyzer_EmptyCaptionsSkipModel(t *testing.T) {
	mc := &scriptedModel{reply: "unused"}
	got := NewModelAnalyzer(mc).Analyze(context.Background(), nil)
	assert.Equal(t, GenericStyle, got)
	assert.Empty(t, mc.calls)
}

func TestModelAnalyzer_FallsBackOnError(t *testing.T) {
	mc := &scriptedModel{err: errors.New("HTTP 503")}
	captions := []string{"Short one! #tag"}
	got := NewModelAnalyzer(mc).Analyze(context.Background(), captions)
	assert.Equal(t, CaptionAnalyzer{}.Analyze(context.Background(), captions), got)
}
