package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so host settings cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"REELCAST_CONFIG", "MAX_POSTS", "WORKSPACE_PATH", "RUN_TIMEOUT",
		"REVIEW_MAX_TOKENS", "SCRIPT_MAX_TOKENS",
		"SOURCE_BASE_URL", "SOURCE_TOKEN_URL", "SOURCE_CLIENT_ID", "SOURCE_CLIENT_SECRET",
		"SOURCE_USERNAME", "SOURCE_PASSWORD", "SOURCE_TOKEN",
		"PRODUCT_TITLE_SELECTOR", "PRODUCT_DESCRIPTION_SELECTOR",
		"LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "GEMINI_API_KEY", "GEMINI_MODEL",
		"OLLAMA_URL", "OLLAMA_MODEL", "STYLE_ANALYZER",
		"TTS_URL", "TTS_TIMEOUT", "VOICE_PROFILE", "TTS_LANGUAGE",
		"OUTPUT_BACKEND", "OUTPUT_DIR", "NATS_URL", "NATS_BUCKET",
		"FFMPEG_PATH", "FFPROBE_PATH",
		"PORT", "DB_PATH", "WORKER_INTERVAL", "HTTP_TIMEOUT", "CORS_ORIGIN",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.local")

	content := `# comment line
FOO_TEST_KEY=hello
BAR_TEST_KEY="quoted value"
BAZ_TEST_KEY='single quoted'

EMPTY_LINE_ABOVE=works
`
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	keys := []string{"FOO_TEST_KEY", "BAR_TEST_KEY", "BAZ_TEST_KEY", "EMPTY_LINE_ABOVE"}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	loadEnvFile(envFile)

	tests := []struct {
		key  string
		want string
	}{
		{"FOO_TEST_KEY", "hello"},
		{"BAR_TEST_KEY", "quoted value"},
		{"BAZ_TEST_KEY", "single quoted"},
		{"EMPTY_LINE_ABOVE", "works"},
	}
	for _, tt := range tests {
		if got := os.Getenv(tt.key); got != tt.want {
			t.Errorf("os.Getenv(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadEnvFile_RealEnvTakesPrecedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env.local")
	if err := os.WriteFile(envFile, []byte("PRECEDENCE_TEST=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRECEDENCE_TEST", "from-env")

	loadEnvFile(envFile)

	if got := os.Getenv("PRECEDENCE_TEST"); got != "from-env" {
		t.Errorf("env var = %q, want %q (real env should take precedence)", got, "from-env")
	}
}

func TestLoadEnvFile_MissingFile(t *testing.T) {
	loadEnvFile("/nonexistent/path/.env.local")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxPosts != 10 {
		t.Errorf("MaxPosts = %d, want 10", cfg.MaxPosts)
	}
	if cfg.WorkspacePath != "temp_downloads" {
		t.Errorf("WorkspacePath = %q, want temp_downloads", cfg.WorkspacePath)
	}
	if cfg.ReviewMaxTokens != 150 || cfg.ScriptMaxTokens != 300 {
		t.Errorf("token budgets = %d/%d, want 150/300", cfg.ReviewMaxTokens, cfg.ScriptMaxTokens)
	}
	if cfg.ProductTitleSelector != "h1" || cfg.ProductDescriptionSelector != "div.product-description" {
		t.Errorf("selectors = %q/%q", cfg.ProductTitleSelector, cfg.ProductDescriptionSelector)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %q, want %q", cfg.LLMProvider, "openai")
	}
	if cfg.OpenAIBaseURL != "https://api.openai.com/v1" {
		t.Errorf("OpenAIBaseURL = %q, want default", cfg.OpenAIBaseURL)
	}
	if cfg.WorkerInterval != 3*time.Second {
		t.Errorf("WorkerInterval = %v, want 3s", cfg.WorkerInterval)
	}
	if cfg.RunTimeout != 15*time.Minute {
		t.Errorf("RunTimeout = %v, want 15m", cfg.RunTimeout)
	}
	if cfg.OutputBackend != OutputDir {
		t.Errorf("OutputBackend = %q, want %q", cfg.OutputBackend, OutputDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_BASE_URL", "https://llm.example.com/v1")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("MAX_POSTS", "4")
	t.Setenv("RUN_TIMEOUT", "90s")
	t.Setenv("OUTPUT_BACKEND", "nats")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.OpenAIBaseURL != "https://llm.example.com/v1" {
		t.Errorf("OpenAIBaseURL = %q", cfg.OpenAIBaseURL)
	}
	if cfg.OpenAIKey != "sk-test-key" {
		t.Errorf("OpenAIKey = %q, want %q", cfg.OpenAIKey, "sk-test-key")
	}
	if cfg.MaxPosts != 4 {
		t.Errorf("MaxPosts = %d, want 4", cfg.MaxPosts)
	}
	if cfg.RunTimeout != 90*time.Second {
		t.Errorf("RunTimeout = %v, want 90s", cfg.RunTimeout)
	}
	if cfg.OutputBackend != OutputNATS {
		t.Errorf("OutputBackend = %q, want nats", cfg.OutputBackend)
	}
}

func TestLoad_TOMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "reelcast.toml")
	content := `
[pipeline]
max_posts = 5
run_timeout = "2m"

[product]
description_selector = "section#details"

[voice]
profile = "voices/creator.wav"
timeout = "30s"

[output]
backend = "nats"
nats_bucket = "reels"

[server]
port = "9090"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REELCAST_CONFIG", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxPosts != 5 {
		t.Errorf("MaxPosts = %d, want 5 from file", cfg.MaxPosts)
	}
	if cfg.RunTimeout != 2*time.Minute {
		t.Errorf("RunTimeout = %v, want 2m", cfg.RunTimeout)
	}
	if cfg.ProductDescriptionSelector != "section#details" {
		t.Errorf("ProductDescriptionSelector = %q", cfg.ProductDescriptionSelector)
	}
	if cfg.ProductTitleSelector != "h1" {
		t.Errorf("ProductTitleSelector = %q, want default kept", cfg.ProductTitleSelector)
	}
	if cfg.VoiceProfile != "voices/creator.wav" || cfg.TTSTimeout != 30*time.Second {
		t.Errorf("voice = %q/%v", cfg.VoiceProfile, cfg.TTSTimeout)
	}
	if cfg.NATSBucket != "reels" {
		t.Errorf("NATSBucket = %q, want reels", cfg.NATSBucket)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %q, env should win over file", cfg.Port)
	}
}

func TestLoad_BadTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[pipeline\nmax_posts = "), 0644)
	t.Setenv("REELCAST_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_BadTOMLDuration(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[pipeline]\nrun_timeout = \"soon\"\n"), 0644)
	t.Setenv("REELCAST_CONFIG", path)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "pipeline.run_timeout") {
		t.Fatalf("err = %v, want run_timeout error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero max posts", func(c *Config) { c.MaxPosts = 0 }, "max_posts"},
		{"negative max posts", func(c *Config) { c.MaxPosts = -2 }, "max_posts"},
		{"empty workspace", func(c *Config) { c.WorkspacePath = " " }, "workspace_path"},
		{"unknown backend", func(c *Config) { c.OutputBackend = "s3" }, "output backend"},
		{"unknown analyzer", func(c *Config) { c.StyleAnalyzer = "vibes" }, "style analyzer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestUseStubs(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantStub bool
	}{
		{"openai without key", Config{LLMProvider: "openai"}, true},
		{"openai with key", Config{LLMProvider: "openai", OpenAIKey: "sk-x"}, false},
		{"claude without key", Config{LLMProvider: "claude"}, true},
		{"claude with key", Config{LLMProvider: "claude", AnthropicKey: "sk-x"}, false},
		{"gemini without key", Config{LLMProvider: "gemini"}, true},
		{"gemini with key", Config{LLMProvider: "gemini", GeminiKey: "key"}, false},
		{"ollama always false", Config{LLMProvider: "ollama"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.UseStubs(); got != tt.wantStub {
				t.Errorf("UseStubs() = %v, want %v", got, tt.wantStub)
			}
		})
	}
}

func TestLoad_StubVoiceProfile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.UseStubs() {
		t.Fatal("expected stub mode without an LLM key")
	}
	if cfg.VoiceProfile != StubVoiceProfile {
		t.Errorf("VoiceProfile = %q, want %q", cfg.VoiceProfile, StubVoiceProfile)
	}

	t.Setenv("VOICE_PROFILE", "narrator")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VoiceProfile != "narrator" {
		t.Errorf("VoiceProfile = %q, want explicit value kept", cfg.VoiceProfile)
	}

	t.Setenv("VOICE_PROFILE", "")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VoiceProfile != "" {
		t.Errorf("VoiceProfile = %q, want empty outside stub mode", cfg.VoiceProfile)
	}
}

func TestEnvDuration_Invalid(t *testing.T) {
	t.Setenv("TEST_DUR_INVALID", "not-a-duration")

	if got := envDuration("TEST_DUR_INVALID", 5*time.Second); got != 5*time.Second {
		t.Errorf("envDuration with invalid value = %v, want fallback 5s", got)
	}
}

func TestEnvInt_Invalid(t *testing.T) {
	t.Setenv("TEST_INT_INVALID", "abc")

	if got := envInt("TEST_INT_INVALID", 42); got != 42 {
		t.Errorf("envInt with invalid value = %d, want fallback 42", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "run_id", "r1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"run_id":"r1"`) {
		t.Errorf("expected JSON output, got %s", out)
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("error level should be enabled")
	}
}
