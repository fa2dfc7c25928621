// Package app assembles pipeline collaborators from configuration. Both the
// HTTP server and the CLI build their pipelines here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yangwenmai/reelcast/internal/config"
	"github.com/yangwenmai/reelcast/internal/engine"
	"github.com/yangwenmai/reelcast/internal/media"
	"github.com/yangwenmai/reelcast/internal/output"
	"github.com/yangwenmai/reelcast/internal/source"
)

// stubFeedSize is the number of posts served by the development feed.
const stubFeedSize = 12

// OpenSink returns the configured output sink and a function releasing any
// connection it holds.
func OpenSink(cfg config.Config) (output.Sink, func(), error) {
	switch cfg.OutputBackend {
	case config.OutputNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("reelcast"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("jetstream: %w", err)
		}
		sink, err := output.NewNatsSink(js, cfg.NATSBucket)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		slog.Info("using nats output", "url", cfg.NATSURL, "bucket", cfg.NATSBucket)
		return sink, nc.Close, nil
	default:
		slog.Info("using directory output", "dir", cfg.OutputDir)
		return output.NewDirSink(cfg.OutputDir), func() {}, nil
	}
}

// NewModelClient picks the LLM client for the configured provider. Without
// an API key it falls back to the stub client.
func NewModelClient(cfg config.Config) engine.ModelClient {
	if cfg.UseStubs() {
		slog.Warn("no LLM API key configured, using stub model client", "provider", cfg.LLMProvider)
		return engine.StubModelClient{}
	}
	switch cfg.LLMProvider {
	case "claude":
		slog.Info("using Claude model client", "model", cfg.AnthropicModel)
		return engine.NewClaudeClient(cfg.AnthropicKey, engine.WithClaudeModel(cfg.AnthropicModel))
	case "gemini":
		slog.Info("using Gemini model client", "model", cfg.GeminiModel)
		return engine.NewGeminiClient(cfg.GeminiKey, engine.WithGeminiModel(cfg.GeminiModel))
	case "ollama":
		slog.Info("using Ollama model client", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return engine.NewOllamaClient(cfg.OllamaURL, engine.WithOllamaModel(cfg.OllamaModel))
	default:
		slog.Info("using OpenAI model client", "model", cfg.OpenAIModel)
		return engine.NewOpenAIClient(cfg.OpenAIKey,
			engine.WithModel(cfg.OpenAIModel),
			engine.WithBaseURL(cfg.OpenAIBaseURL),
		)
	}
}

// Credentials returns the content source login configured for the service.
// The stub source only needs a non-empty username.
func Credentials(cfg config.Config) source.Credentials {
	creds := source.Credentials{
		Username: cfg.SourceUsername,
		Password: cfg.SourcePassword,
		Token:    cfg.SourceToken,
	}
	if cfg.SourceBaseURL == "" && creds.Username == "" && creds.Token == "" {
		creds.Username = "dev"
	}
	return creds
}

// sourceClient is what the pipeline needs from a content source.
type sourceClient interface {
	engine.Authenticator
	engine.PostSource
}

func newSource(cfg config.Config) sourceClient {
	if cfg.SourceBaseURL == "" {
		slog.Warn("SOURCE_BASE_URL not set, using stub content source")
		return engine.NewStubSource(stubFeedSize)
	}
	opts := []source.Option{source.WithTimeout(cfg.HTTPTimeout)}
	if cfg.SourceTokenURL != "" {
		opts = append(opts, source.WithTokenURL(cfg.SourceTokenURL))
	}
	if cfg.SourceClientID != "" {
		opts = append(opts, source.WithClientCredentials(cfg.SourceClientID, cfg.SourceClientSecret))
	}
	return source.NewClient(cfg.SourceBaseURL, opts...)
}

func newMedia(cfg config.Config) engine.MediaTool {
	ff := media.New(cfg.FFmpegPath, cfg.FFprobePath)
	if !ff.Available() {
		slog.Warn("ffmpeg/ffprobe not found, using stub media tool")
		return engine.StubMedia{}
	}
	return ff
}

func newStyle(cfg config.Config, mc engine.ModelClient) engine.StyleAnalyzer {
	if cfg.StyleAnalyzer == config.StyleModel {
		return engine.NewModelAnalyzer(mc)
	}
	return engine.CaptionAnalyzer{}
}

func newVoice(ctx context.Context, cfg config.Config) engine.VoiceSynthesizer {
	if cfg.UseStubs() {
		return engine.StubVoiceSynthesizer{}
	}
	tts := engine.NewHTTPVoiceSynthesizer(cfg.TTSURL,
		engine.WithLanguage(cfg.TTSLanguage),
		engine.WithVoiceTimeout(cfg.TTSTimeout),
	)
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tts.HealthCheck(hctx); err != nil {
		slog.Warn("voice service health check failed", "url", cfg.TTSURL, "error", err)
	}
	return tts
}

func newProducts(cfg config.Config) (engine.ProductExtractor, error) {
	if cfg.UseStubs() {
		return engine.StubProductExtractor{}, nil
	}
	return engine.NewHTTPProductExtractor(
		cfg.ProductTitleSelector,
		cfg.ProductDescriptionSelector,
		engine.WithExtractTimeout(cfg.HTTPTimeout),
	)
}

// NewPipeline builds a pipeline from cfg. artifacts and observer may be nil.
// Without an LLM key the model, product extractor and voice are stubbed so
// the whole flow can be exercised locally.
func NewPipeline(ctx context.Context, cfg config.Config, sink output.Sink, artifacts engine.ArtifactRecorder, observer engine.Observer) (*engine.Pipeline, error) {
	products, err := newProducts(cfg)
	if err != nil {
		return nil, err
	}

	mc := NewModelClient(cfg)
	src := newSource(cfg)
	deps := engine.Deps{
		Auth:      src,
		Source:    src,
		Media:     newMedia(cfg),
		Style:     newStyle(cfg, mc),
		Products:  products,
		Model:     mc,
		Voice:     newVoice(ctx, cfg),
		Sink:      sink,
		Artifacts: artifacts,
	}
	return engine.NewPipeline(deps, engine.Options{
		WorkspaceBase:   cfg.WorkspacePath,
		Timeout:         cfg.RunTimeout,
		ReviewMaxTokens: cfg.ReviewMaxTokens,
		ScriptMaxTokens: cfg.ScriptMaxTokens,
		Observer:        observer,
	}), nil
}
