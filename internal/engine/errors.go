package engine

import (
	"errors"
	"fmt"
)

// Error kinds. Every orchestrator failure wraps exactly one of these.
var (
	ErrWorkspace  = errors.New("workspace error")
	ErrAuth       = errors.New("authentication failed")
	ErrFetch      = errors.New("content fetch failed")
	ErrExtract    = errors.New("product extraction failed")
	ErrGeneration = errors.New("text generation failed")
	ErrSynthesis  = errors.New("voice synthesis failed")
	ErrPublish    = errors.New("publishing artifacts failed")
	ErrRequest    = errors.New("invalid request")
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageRequest      Stage = "request"
	StageWorkspace    Stage = "workspace"
	StageAuthenticate Stage = "authenticate"
	StageFetch        Stage = "fetch"
	StageStyle        Stage = "style"
	StageProduct      Stage = "product"
	StageReview       Stage = "review"
	StageScript       Stage = "script"
	StageVoice        Stage = "voice"
	StagePublish      Stage = "publish"
)

// StageError wraps an error with the stage that failed and the last state reached.
type StageError struct {
	Stage Stage
	From  State
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageName returns the failed stage as a string.
func (e *StageError) StageName() string {
	return string(e.Stage)
}

// ExtractKind separates unreachable pages from pages whose markup changed.
type ExtractKind string

const (
	ExtractTransport ExtractKind = "transport"
	ExtractStructure ExtractKind = "structure"
)

// ExtractError describes a product extraction failure.
type ExtractError struct {
	URL   string
	Field string
	Kind  ExtractKind
	Err   error
}

func (e *ExtractError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("extract %s from %s (%s): %v", e.Field, e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *ExtractError) Unwrap() []error {
	return []error{ErrExtract, e.Err}
}

// SynthesisError describes a voice synthesis failure.
type SynthesisError struct {
	Profile   string
	ScriptLen int
	Err       error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize %d-char script with profile %q: %v", e.ScriptLen, e.Profile, e.Err)
}

func (e *SynthesisError) Unwrap() []error {
	return []error{ErrSynthesis, e.Err}
}
