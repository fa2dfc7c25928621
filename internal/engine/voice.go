package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ttsSpeechPath = "/v1/generate/speech"
	ttsHealthPath = "/health"
)

var (
	errEmptyScript  = errors.New("script is empty")
	errEmptyProfile = errors.New("voice profile is required")
	errEmptyAudio   = errors.New("received empty audio data")
)

// Ext returns the file extension for the clip's audio container.
func (v VoiceClip) Ext() string {
	mt, _, _ := mime.ParseMediaType(v.ContentType)
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	case "audio/flac":
		return "flac"
	}
	return "bin"
}

// HTTPVoiceSynthesizer implements VoiceSynthesizer against a TTS HTTP service.
// The voice profile is passed as the service's speaker reference path.
type HTTPVoiceSynthesizer struct {
	baseURL     string
	language    string
	temperature float64
	httpClient  *http.Client
}

// VoiceOption configures the voice synthesizer.
type VoiceOption func(*HTTPVoiceSynthesizer)

// WithLanguage sets the speech language code (default: en).
func WithLanguage(lang string) VoiceOption {
	return func(s *HTTPVoiceSynthesizer) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithVoiceTimeout sets the HTTP timeout for synthesis requests (default: 120s).
func WithVoiceTimeout(d time.Duration) VoiceOption {
	return func(s *HTTPVoiceSynthesizer) { s.httpClient.Timeout = d }
}

// NewHTTPVoiceSynthesizer creates a synthesizer for the TTS service at baseURL.
func NewHTTPVoiceSynthesizer(baseURL string, opts ...VoiceOption) *HTTPVoiceSynthesizer {
	s := &HTTPVoiceSynthesizer{
		baseURL:     strings.TrimRight(baseURL, "/"),
		language:    "en",
		temperature: 0.75,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ttsRequest struct {
	Text           string  `json:"text"`
	SpeakerRefPath string  `json:"speaker_ref_path,omitempty"`
	Language       string  `json:"language"`
	Temperature    float64 `json:"temperature"`
}

type ttsErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Synthesize renders script with the named profile. Failures are
// *SynthesisError values that wrap ErrSynthesis.
func (s *HTTPVoiceSynthesizer) Synthesize(ctx context.Context, script ScriptText, profile string) (*VoiceClip, error) {
	fail := func(err error) (*VoiceClip, error) {
		return nil, &SynthesisError{Profile: profile, ScriptLen: utf8.RuneCountInString(string(script)), Err: err}
	}
	if strings.TrimSpace(string(script)) == "" {
		return fail(errEmptyScript)
	}
	if profile == "" {
		return fail(errEmptyProfile)
	}

	body, err := json.Marshal(ttsRequest{
		Text:           string(script),
		SpeakerRefPath: profile,
		Language:       s.language,
		Temperature:    s.temperature,
	})
	if err != nil {
		return fail(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+ttsSpeechPath, bytes.NewReader(body))
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("send to %s: %w", s.baseURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(ttsStatusError(resp))
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "audio/") {
		return fail(fmt.Errorf("unexpected content type %q", ct))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("read audio: %w", err))
	}
	if len(data) == 0 {
		return fail(errEmptyAudio)
	}
	return &VoiceClip{Data: data, ContentType: ct, Profile: profile}, nil
}

// HealthCheck reports whether the TTS service is reachable.
func (s *HTTPVoiceSynthesizer) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+ttsHealthPath, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tts health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts health: %s", resp.Status)
	}
	return nil
}

func ttsStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var er ttsErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Detail != "" {
		return fmt.Errorf("tts service %s: %s (code: %s)", resp.Status, er.Detail, er.ErrorCode)
	}
	return fmt.Errorf("tts service %s: %s", resp.Status, strings.TrimSpace(string(raw)))
}
