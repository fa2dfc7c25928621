package model

import "encoding/json"

// ErrorInfo holds structured failure information for a Run.
type ErrorInfo struct {
	FailedStage string `json:"failed_stage"`
	Message     string `json:"message"`
	Retryable   bool   `json:"retryable"`
	FailedAt    string `json:"failed_at"`
}

// ToJSON serializes ErrorInfo to a JSON string.
func (e ErrorInfo) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}
