// Package config provides centralized configuration for reelcast.
// Values come from built-in defaults, an optional TOML file, .env.local and
// the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Output backends.
const (
	OutputDir  = "dir"
	OutputNATS = "nats"
)

// Style analyzers.
const (
	StyleCaptions = "captions"
	StyleModel    = "model"
)

// Config holds all configuration values.
type Config struct {
	// MaxPosts is the default number of video posts to collect per run.
	MaxPosts int

	// WorkspacePath is the parent directory for per-run scratch directories.
	WorkspacePath string

	// RunTimeout bounds a whole run, from authentication to publishing.
	RunTimeout time.Duration

	ReviewMaxTokens int
	ScriptMaxTokens int

	// Content source.
	SourceBaseURL      string
	SourceTokenURL     string
	SourceClientID     string
	SourceClientSecret string
	SourceUsername     string
	SourcePassword     string
	SourceToken        string

	// CSS selectors for product pages.
	ProductTitleSelector       string
	ProductDescriptionSelector string

	// LLMProvider selects which LLM backend to use: "openai", "claude", "gemini", "ollama".
	LLMProvider    string
	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIModel    string
	AnthropicKey   string
	AnthropicModel string
	GeminiKey      string
	GeminiModel    string
	OllamaURL      string
	OllamaModel    string

	// StyleAnalyzer is "captions" (statistics only) or "model" (LLM with fallback).
	StyleAnalyzer string

	// Voice synthesis service.
	TTSURL       string
	TTSTimeout   time.Duration
	VoiceProfile string
	TTSLanguage  string

	// OutputBackend is "dir" or "nats".
	OutputBackend string
	OutputDir     string
	NATSURL       string
	NATSBucket    string

	FFmpegPath  string
	FFprobePath string

	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite database file.
	DBPath string

	// WorkerInterval is the polling interval for the background worker.
	WorkerInterval time.Duration

	// HTTPTimeout is the timeout for outgoing HTTP requests (source, product pages).
	HTTPTimeout time.Duration

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is "text" or "json".
	LogFormat string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		MaxPosts:                   10,
		WorkspacePath:              "temp_downloads",
		RunTimeout:                 15 * time.Minute,
		ReviewMaxTokens:            150,
		ScriptMaxTokens:            300,
		ProductTitleSelector:       "h1",
		ProductDescriptionSelector: "div.product-description",
		LLMProvider:                "openai",
		OpenAIBaseURL:              "https://api.openai.com/v1",
		OpenAIModel:                "gpt-4o-mini",
		AnthropicModel:             "claude-sonnet-4-20250514",
		GeminiModel:                "gemini-2.0-flash",
		OllamaURL:                  "http://localhost:11434",
		OllamaModel:                "llama3",
		StyleAnalyzer:              StyleCaptions,
		TTSURL:                     "http://localhost:8000",
		TTSTimeout:                 120 * time.Second,
		TTSLanguage:                "en",
		OutputBackend:              OutputDir,
		OutputDir:                  "output",
		NATSURL:                    "nats://127.0.0.1:4222",
		NATSBucket:                 "reelcast-output",
		FFmpegPath:                 "ffmpeg",
		FFprobePath:                "ffprobe",
		Port:                       "8080",
		DBPath:                     "reelcast.db",
		WorkerInterval:             3 * time.Second,
		HTTPTimeout:                60 * time.Second,
		CORSOrigin:                 "*",
		LogLevel:                   "info",
		LogFormat:                  "text",
	}
}

// StubVoiceProfile is the voice used when no LLM key is configured and
// VOICE_PROFILE is unset.
const StubVoiceProfile = "stub-voice"

// Load builds the configuration: defaults, then the TOML file named by
// REELCAST_CONFIG, then .env.local, then the environment.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("REELCAST_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}
	loadEnvFile(".env.local")
	cfg.applyEnv()
	if cfg.VoiceProfile == "" && cfg.UseStubs() {
		cfg.VoiceProfile = StubVoiceProfile
	}
	return cfg, nil
}

// Validate reports configuration that would make every run fail.
func (c Config) Validate() error {
	var errs []error
	if c.MaxPosts <= 0 {
		errs = append(errs, fmt.Errorf("max_posts must be positive, got %d", c.MaxPosts))
	}
	if strings.TrimSpace(c.WorkspacePath) == "" {
		errs = append(errs, errors.New("workspace_path is required"))
	}
	switch c.OutputBackend {
	case OutputDir, OutputNATS:
	default:
		errs = append(errs, fmt.Errorf("unknown output backend %q", c.OutputBackend))
	}
	switch c.StyleAnalyzer {
	case StyleCaptions, StyleModel:
	default:
		errs = append(errs, fmt.Errorf("unknown style analyzer %q", c.StyleAnalyzer))
	}
	return errors.Join(errs...)
}

// UseStubs returns true when no LLM API key is configured for the selected provider.
func (c Config) UseStubs() bool {
	switch c.LLMProvider {
	case "claude":
		return c.AnthropicKey == ""
	case "gemini":
		return c.GeminiKey == ""
	case "ollama":
		return false // Ollama runs locally, no key needed
	default:
		return c.OpenAIKey == ""
	}
}

func (c *Config) applyEnv() {
	c.MaxPosts = envInt("MAX_POSTS", c.MaxPosts)
	c.WorkspacePath = envOr("WORKSPACE_PATH", c.WorkspacePath)
	c.RunTimeout = envDuration("RUN_TIMEOUT", c.RunTimeout)
	c.ReviewMaxTokens = envInt("REVIEW_MAX_TOKENS", c.ReviewMaxTokens)
	c.ScriptMaxTokens = envInt("SCRIPT_MAX_TOKENS", c.ScriptMaxTokens)

	c.SourceBaseURL = envOr("SOURCE_BASE_URL", c.SourceBaseURL)
	c.SourceTokenURL = envOr("SOURCE_TOKEN_URL", c.SourceTokenURL)
	c.SourceClientID = envOr("SOURCE_CLIENT_ID", c.SourceClientID)
	c.SourceClientSecret = envOr("SOURCE_CLIENT_SECRET", c.SourceClientSecret)
	c.SourceUsername = envOr("SOURCE_USERNAME", c.SourceUsername)
	c.SourcePassword = envOr("SOURCE_PASSWORD", c.SourcePassword)
	c.SourceToken = envOr("SOURCE_TOKEN", c.SourceToken)

	c.ProductTitleSelector = envOr("PRODUCT_TITLE_SELECTOR", c.ProductTitleSelector)
	c.ProductDescriptionSelector = envOr("PRODUCT_DESCRIPTION_SELECTOR", c.ProductDescriptionSelector)

	c.LLMProvider = envOr("LLM_PROVIDER", c.LLMProvider)
	c.OpenAIKey = envOr("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = envOr("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = envOr("OPENAI_MODEL", c.OpenAIModel)
	c.AnthropicKey = envOr("ANTHROPIC_API_KEY", c.AnthropicKey)
	c.AnthropicModel = envOr("ANTHROPIC_MODEL", c.AnthropicModel)
	c.GeminiKey = envOr("GEMINI_API_KEY", c.GeminiKey)
	c.GeminiModel = envOr("GEMINI_MODEL", c.GeminiModel)
	c.OllamaURL = envOr("OLLAMA_URL", c.OllamaURL)
	c.OllamaModel = envOr("OLLAMA_MODEL", c.OllamaModel)
	c.StyleAnalyzer = envOr("STYLE_ANALYZER", c.StyleAnalyzer)

	c.TTSURL = envOr("TTS_URL", c.TTSURL)
	c.TTSTimeout = envDuration("TTS_TIMEOUT", c.TTSTimeout)
	c.VoiceProfile = envOr("VOICE_PROFILE", c.VoiceProfile)
	c.TTSLanguage = envOr("TTS_LANGUAGE", c.TTSLanguage)

	c.OutputBackend = envOr("OUTPUT_BACKEND", c.OutputBackend)
	c.OutputDir = envOr("OUTPUT_DIR", c.OutputDir)
	c.NATSURL = envOr("NATS_URL", c.NATSURL)
	c.NATSBucket = envOr("NATS_BUCKET", c.NATSBucket)

	c.FFmpegPath = envOr("FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = envOr("FFPROBE_PATH", c.FFprobePath)

	c.Port = envOr("PORT", c.Port)
	c.DBPath = envOr("DB_PATH", c.DBPath)
	c.WorkerInterval = envDuration("WORKER_INTERVAL", c.WorkerInterval)
	c.HTTPTimeout = envDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
}

// loadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func loadEnvFile(path string) {
	_ = godotenv.Load(path)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// ---------------------------------------------------------------------------
// TOML file
// ---------------------------------------------------------------------------

type fileConfig struct {
	Pipeline struct {
		MaxPosts        *int   `toml:"max_posts"`
		WorkspacePath   string `toml:"workspace_path"`
		RunTimeout      string `toml:"run_timeout"`
		ReviewMaxTokens *int   `toml:"review_max_tokens"`
		ScriptMaxTokens *int   `toml:"script_max_tokens"`
	} `toml:"pipeline"`
	Source struct {
		BaseURL      string `toml:"base_url"`
		TokenURL     string `toml:"token_url"`
		ClientID     string `toml:"client_id"`
		ClientSecret string `toml:"client_secret"`
		Username     string `toml:"username"`
		Password     string `toml:"password"`
		Token        string `toml:"token"`
	} `toml:"source"`
	Product struct {
		TitleSelector       string `toml:"title_selector"`
		DescriptionSelector string `toml:"description_selector"`
	} `toml:"product"`
	LLM struct {
		Provider       string `toml:"provider"`
		StyleAnalyzer  string `toml:"style_analyzer"`
		OpenAIBaseURL  string `toml:"openai_base_url"`
		OpenAIModel    string `toml:"openai_model"`
		AnthropicModel string `toml:"anthropic_model"`
		GeminiModel    string `toml:"gemini_model"`
		OllamaURL      string `toml:"ollama_url"`
		OllamaModel    string `toml:"ollama_model"`
	} `toml:"llm"`
	Voice struct {
		URL      string `toml:"url"`
		Timeout  string `toml:"timeout"`
		Profile  string `toml:"profile"`
		Language string `toml:"language"`
	} `toml:"voice"`
	Output struct {
		Backend    string `toml:"backend"`
		Dir        string `toml:"dir"`
		NATSURL    string `toml:"nats_url"`
		NATSBucket string `toml:"nats_bucket"`
	} `toml:"output"`
	Media struct {
		FFmpegPath  string `toml:"ffmpeg_path"`
		FFprobePath string `toml:"ffprobe_path"`
	} `toml:"media"`
	Server struct {
		Port           string `toml:"port"`
		DBPath         string `toml:"db_path"`
		WorkerInterval string `toml:"worker_interval"`
		HTTPTimeout    string `toml:"http_timeout"`
		CORSOrigin     string `toml:"cors_origin"`
	} `toml:"server"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// applyFile overlays the TOML file at path. API keys are deliberately not
// read from the file; they come from the environment only.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setInt(&c.MaxPosts, f.Pipeline.MaxPosts)
	setString(&c.WorkspacePath, f.Pipeline.WorkspacePath)
	setInt(&c.ReviewMaxTokens, f.Pipeline.ReviewMaxTokens)
	setInt(&c.ScriptMaxTokens, f.Pipeline.ScriptMaxTokens)

	setString(&c.SourceBaseURL, f.Source.BaseURL)
	setString(&c.SourceTokenURL, f.Source.TokenURL)
	setString(&c.SourceClientID, f.Source.ClientID)
	setString(&c.SourceClientSecret, f.Source.ClientSecret)
	setString(&c.SourceUsername, f.Source.Username)
	setString(&c.SourcePassword, f.Source.Password)
	setString(&c.SourceToken, f.Source.Token)

	setString(&c.ProductTitleSelector, f.Product.TitleSelector)
	setString(&c.ProductDescriptionSelector, f.Product.DescriptionSelector)

	setString(&c.LLMProvider, f.LLM.Provider)
	setString(&c.StyleAnalyzer, f.LLM.StyleAnalyzer)
	setString(&c.OpenAIBaseURL, f.LLM.OpenAIBaseURL)
	setString(&c.OpenAIModel, f.LLM.OpenAIModel)
	setString(&c.AnthropicModel, f.LLM.AnthropicModel)
	setString(&c.GeminiModel, f.LLM.GeminiModel)
	setString(&c.OllamaURL, f.LLM.OllamaURL)
	setString(&c.OllamaModel, f.LLM.OllamaModel)

	setString(&c.TTSURL, f.Voice.URL)
	setString(&c.VoiceProfile, f.Voice.Profile)
	setString(&c.TTSLanguage, f.Voice.Language)

	setString(&c.OutputBackend, f.Output.Backend)
	setString(&c.OutputDir, f.Output.Dir)
	setString(&c.NATSURL, f.Output.NATSURL)
	setString(&c.NATSBucket, f.Output.NATSBucket)

	setString(&c.FFmpegPath, f.Media.FFmpegPath)
	setString(&c.FFprobePath, f.Media.FFprobePath)

	setString(&c.Port, f.Server.Port)
	setString(&c.DBPath, f.Server.DBPath)
	setString(&c.CORSOrigin, f.Server.CORSOrigin)
	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"pipeline.run_timeout", f.Pipeline.RunTimeout, &c.RunTimeout},
		{"voice.timeout", f.Voice.Timeout, &c.TTSTimeout},
		{"server.worker_interval", f.Server.WorkerInterval, &c.WorkerInterval},
		{"server.http_timeout", f.Server.HTTPTimeout, &c.HTTPTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
