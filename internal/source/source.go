// Package source talks to the creator content platform: it authenticates a
// session, streams a creator's posts and downloads post videos.
package source

import (
	"errors"
	"net/http"
	"time"
)

// Errors describing why the platform refused a request.
var (
	ErrAuthFailed      = errors.New("source: credentials rejected")
	ErrChallenge       = errors.New("source: login challenge required")
	ErrRateLimited     = errors.New("source: rate limited")
	ErrProfileNotFound = errors.New("source: profile not found")
)

// Credentials is an opaque credential pair, or a pre-issued access token.
// The fields are passed through to the platform without interpretation.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Session is an authenticated platform context. Its HTTP client attaches the
// access token to every request.
type Session struct {
	Username string
	Client   *http.Client
}

// Post is one entry on a creator's profile.
type Post struct {
	ID        string    `json:"id"`
	Shortcode string    `json:"shortcode"`
	Caption   string    `json:"caption"`
	IsVideo   bool      `json:"is_video"`
	VideoURL  string    `json:"video_url"`
	TakenAt   time.Time `json:"taken_at"`
}

// Key returns the identifier used to name the post's files.
func (p Post) Key() string {
	if p.Shortcode != "" {
		return p.Shortcode
	}
	return p.ID
}
