package engine

import (
	"context"
	"io"
	"iter"

	"github.com/yangwenmai/reelcast/internal/media"
	"github.com/yangwenmai/reelcast/internal/source"
	"github.com/yangwenmai/reelcast/internal/workspace"
)

// Completion is a single request to a generative-text model.
type Completion struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ModelClient abstracts LLM calls. Implementations can wrap OpenAI, local models, etc.
type ModelClient interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// Authenticator establishes an authenticated context against the content platform.
type Authenticator interface {
	Login(ctx context.Context, creds source.Credentials) (*source.Session, error)
}

// PostSource streams a creator's posts and opens their videos.
type PostSource interface {
	Posts(ctx context.Context, sess *source.Session, handle string) iter.Seq2[source.Post, error]
	OpenVideo(ctx context.Context, sess *source.Session, post source.Post) (io.ReadCloser, error)
}

// MediaTool inspects video containers and extracts their audio track.
type MediaTool interface {
	Probe(ctx context.Context, path string) (media.Info, error)
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
}

// ProductExtractor fetches a product page and extracts its structured fields.
type ProductExtractor interface {
	Extract(ctx context.Context, url string) (*ProductInfo, error)
}

// StyleAnalyzer reduces captions to a style descriptor. It never fails: an
// empty caption sequence yields a generic descriptor.
type StyleAnalyzer interface {
	Analyze(ctx context.Context, captions []string) StyleDescriptor
}

// VoiceSynthesizer renders a script to audio with a named voice profile.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, script ScriptText, profile string) (*VoiceClip, error)
}

// Session is the authenticated platform context together with the workspace
// that owns the run's transient files.
type Session struct {
	Source    *source.Session
	Workspace *workspace.Workspace
}

// PostArtifact is one successfully processed video post. Its files belong to
// the run workspace and disappear when the workspace is released.
type PostArtifact struct {
	ID        string   `json:"id"`
	Caption   string   `json:"caption"`
	VideoPath string   `json:"video_path"`
	AudioPath string   `json:"audio_path"`
	Duration  *float64 `json:"duration,omitempty"`
}

// CreatorContentSet is the ordered result of a fetch. Videos and captions are
// appended together, so they stay co-indexed by construction.
type CreatorContentSet struct {
	videos   []PostArtifact
	captions []string

	// Examined counts every source post looked at, including skipped ones.
	Examined int
}

func (s *CreatorContentSet) add(a PostArtifact) {
	s.videos = append(s.videos, a)
	s.captions = append(s.captions, a.Caption)
}

// Len returns the number of accepted video posts.
func (s *CreatorContentSet) Len() int { return len(s.videos) }

// Videos returns a copy of the accepted posts in fetch order.
func (s *CreatorContentSet) Videos() []PostArtifact {
	return append([]PostArtifact(nil), s.videos...)
}

// Captions returns a copy of the captions, co-indexed with Videos.
func (s *CreatorContentSet) Captions() []string {
	return append([]string(nil), s.captions...)
}

// StyleDescriptor describes a creator's writing voice.
type StyleDescriptor struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (s StyleDescriptor) String() string { return s.Text }

// ProductInfo holds the fields extracted from a product page. Excerpt and
// SiteName are best-effort extras and may be empty.
type ProductInfo struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Excerpt     string `json:"excerpt,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// ReviewText is a generated product review.
type ReviewText string

// ScriptText is a generated video script.
type ScriptText string

// VoiceClip is synthesized audio in the container format chosen by the voice service.
type VoiceClip struct {
	Data        []byte
	ContentType string
	Profile     string
}
