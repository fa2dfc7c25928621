package model

import "time"

// Run status constants
const (
	StatusQueued  = "QUEUED"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// Run represents one execution of the content pipeline for a creator and product.
type Run struct {
	ID           string  `json:"id"`
	Creator      string  `json:"creator"`
	ProductURL   string  `json:"product_url"`
	VoiceProfile string  `json:"voice_profile"`
	MaxPosts     int     `json:"max_posts"`
	Status       string  `json:"status"`
	State        string  `json:"state"`
	VideoCount   int     `json:"video_count"`
	ErrorInfo    *string `json:"error_info,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// RunWithArtifacts is a Run together with the artifacts it produced.
type RunWithArtifacts struct {
	Run
	Artifacts []Artifact `json:"artifacts"`
}

// RunFilter holds query parameters for listing runs.
type RunFilter struct {
	Status []string
	Limit  int
}

// NewRun creates a new Run with QUEUED status.
func NewRun(id, creator, productURL, voiceProfile string, maxPosts int) Run {
	now := time.Now().UTC().Format(time.RFC3339)
	return Run{
		ID:           id,
		Creator:      creator,
		ProductURL:   productURL,
		VoiceProfile: voiceProfile,
		MaxPosts:     maxPosts,
		Status:       StatusQueued,
		State:        "Idle",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Terminal reports whether the run has reached DONE or FAILED.
func (r Run) Terminal() bool {
	return r.Status == StatusDone || r.Status == StatusFailed
}
