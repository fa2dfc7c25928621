package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/yangwenmai/reelcast/internal/media"
	"github.com/yangwenmai/reelcast/internal/source"
)

// StubSource serves a fixed creator feed (for development/testing).
type StubSource struct {
	Feed []source.Post
}

// NewStubSource returns a feed of n posts where every third post is a photo.
func NewStubSource(n int) *StubSource {
	s := &StubSource{}
	now := time.Now().UTC()
	for i := 1; i <= n; i++ {
		s.Feed = append(s.Feed, source.Post{
			ID:        fmt.Sprintf("%d", 1000+i),
			Shortcode: fmt.Sprintf("stub%02d", i),
			Caption:   fmt.Sprintf("Day %d of testing gear! Honestly obsessed 😍 #stub #review", i),
			IsVideo:   i%3 != 0,
			VideoURL:  fmt.Sprintf("https://example.invalid/v/%d.mp4", i),
			TakenAt:   now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return s
}

func (s *StubSource) Login(_ context.Context, creds source.Credentials) (*source.Session, error) {
	if creds.Username == "" && creds.Token == "" {
		return nil, source.ErrAuthFailed
	}
	return &source.Session{Username: creds.Username}, nil
}

func (s *StubSource) Posts(_ context.Context, _ *source.Session, _ string) iter.Seq2[source.Post, error] {
	return func(yield func(source.Post, error) bool) {
		for _, p := range s.Feed {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (s *StubSource) OpenVideo(_ context.Context, _ *source.Session, post source.Post) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("stub video " + post.Key())), nil
}

// StubMedia pretends every downloaded file has a 15 second audio track.
type StubMedia struct{}

func (StubMedia) Probe(_ context.Context, path string) (media.Info, error) {
	if _, err := os.Stat(path); err != nil {
		return media.Info{}, err
	}
	d := 15.0
	return media.Info{Duration: &d, HasAudio: true}, nil
}

func (StubMedia) ExtractAudio(_ context.Context, _, audioPath string) error {
	return os.WriteFile(audioPath, []byte("stub audio"), 0o644)
}

// StubProductExtractor returns a fixed product (for development/testing).
type StubProductExtractor struct{}

func (StubProductExtractor) Extract(_ context.Context, url string) (*ProductInfo, error) {
	return &ProductInfo{
		URL:         url,
		Title:       "Stub Everyday Water Bottle",
		Description: "Double-walled stainless steel bottle that keeps drinks cold for 24 hours. Leak-proof lid, fits most cup holders.",
	}, nil
}

// StubModelClient returns canned completions (for development/testing).
type StubModelClient struct{}

func (StubModelClient) Complete(_ context.Context, c Completion) (string, error) {
	switch {
	case strings.Contains(c.Prompt, "Create a video script"):
		return "Okay, real talk. This bottle kept my coffee hot through a whole shoot day. Link below if you want one!", nil
	case strings.Contains(c.Prompt, "Write a product review"):
		return "I have carried this bottle everywhere for two weeks and it has not leaked once. Ice lasts all day. Worth it.", nil
	case strings.Contains(c.Prompt, "writing style"):
		return "Upbeat, casual first-person voice with short sentences, emoji and a couple of recurring hashtags.", nil
	}
	return "stub completion", nil
}

// StubVoiceSynthesizer returns a short silent WAV clip (for development/testing).
type StubVoiceSynthesizer struct{}

func (StubVoiceSynthesizer) Synthesize(_ context.Context, script ScriptText, profile string) (*VoiceClip, error) {
	if strings.TrimSpace(string(script)) == "" {
		return nil, &SynthesisError{Profile: profile, Err: errEmptyScript}
	}
	return &VoiceClip{Data: silentWAV(8000), ContentType: "audio/wav", Profile: profile}, nil
}

// silentWAV builds a mono 16-bit PCM WAV with n zero samples.
func silentWAV(n int) []byte {
	const sampleRate = 16000
	dataLen := n * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], 1)
	binary.LittleEndian.PutUint32(buf[24:], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:], sampleRate*2)
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	return buf
}
