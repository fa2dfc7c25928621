package model

import "time"

// Artifact type constants
const (
	ArtifactStyle   = "style"
	ArtifactProduct = "product"
	ArtifactReview  = "review"
	ArtifactScript  = "script"
	ArtifactVoice   = "voice"
)

// Created-by constants
const (
	CreatedBySystem = "system"
	CreatedByUser   = "user"
)

// Artifact is a pipeline output recorded for a Run. Text artifacts carry the
// text itself; the voice artifact carries the location the clip was published to.
type Artifact struct {
	ID           string `json:"id"`
	RunID        string `json:"run_id"`
	ArtifactType string `json:"artifact_type"`
	Payload      string `json:"payload"`
	CreatedBy    string `json:"created_by"`
	CreatedAt    string `json:"created_at"`
}

// NewArtifact creates a new system-generated Artifact.
func NewArtifact(id, runID, artifactType, payload string) Artifact {
	return Artifact{
		ID:           id,
		RunID:        runID,
		ArtifactType: artifactType,
		Payload:      payload,
		CreatedBy:    CreatedBySystem,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// VoiceArtifact is the payload of the voice artifact. Key is the sink key the
// clip was published under.
type VoiceArtifact struct {
	Key         string `json:"key"`
	Location    string `json:"location"`
	ContentType string `json:"content_type"`
	Profile     string `json:"profile"`
	Bytes       int    `json:"bytes"`
}

// TextArtifact is the payload of review and script artifacts, whether
// generated or edited by a user.
type TextArtifact struct {
	Text string `json:"text"`
}
