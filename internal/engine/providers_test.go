package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaudeClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))

		var req claudeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sys", req.System)
		assert.Equal(t, 300, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"script body"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("key", WithClaudeBaseURL(srv.URL))
	got, err := c.Complete(context.Background(), Completion{System: "sys", Prompt: "p", MaxTokens: 300})
	require.NoError(t, err)
	assert.Equal(t, "script body", got)
}

func TestClaudeClient_DefaultMaxTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req claudeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1024, req.MaxTokens)
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	_, err := NewClaudeClient("key", WithClaudeBaseURL(srv.URL)).Complete(context.Background(), Completion{Prompt: "p"})
	require.NoError(t, err)
}

func TestGeminiClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gem-test:generateContent", r.URL.Path)

		var req geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.NotNil(t, req.SystemInstruction) {
			assert.Equal(t, "sys", req.SystemInstruction.Parts[0].Text)
		}
		assert.Equal(t, 150, req.GenerationConfig.MaxOutputTokens)

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"review body"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("key", WithGeminiBaseURL(srv.URL), WithGeminiModel("gem-test"))
	got, err := c.Complete(context.Background(), Completion{System: "sys", Prompt: "p", MaxTokens: 150})
	require.NoError(t, err)
	assert.Equal(t, "review body", got)
}

func TestOllamaClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, 300, req.Options.NumPredict)

		w.Write([]byte(`{"response":"local answer"}`))
	}))
	defer srv.Close()

	got, err := NewOllamaClient(srv.URL+"/").Complete(context.Background(), Completion{Prompt: "p", MaxTokens: 300})
	require.NoError(t, err)
	assert.Equal(t, "local answer", got)
}

func TestOllamaClient_EmptyResponse(t *testing.T) {
	fastRetries(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"response":""}`))
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL).Complete(context.Background(), Completion{Prompt: "p"})
	assert.Error(t, err)
}
