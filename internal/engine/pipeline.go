package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yangwenmai/reelcast/internal/model"
	"github.com/yangwenmai/reelcast/internal/output"
	"github.com/yangwenmai/reelcast/internal/source"
	"github.com/yangwenmai/reelcast/internal/workspace"
)

// State is a position in the run lifecycle. States only move forward.
type State int

const (
	StateIdle State = iota
	StateAuthenticated
	StateContentFetched
	StateStyleKnown
	StateProductKnown
	StateReviewReady
	StateScriptReady
	StateVoiceReady
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:           "Idle",
	StateAuthenticated:  "Authenticated",
	StateContentFetched: "ContentFetched",
	StateStyleKnown:     "StyleKnown",
	StateProductKnown:   "ProductKnown",
	StateReviewReady:    "ReviewReady",
	StateScriptReady:    "ScriptReady",
	StateVoiceReady:     "VoiceReady",
	StateDone:           "Done",
	StateFailed:         "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Observer is notified on every state a run enters.
type Observer func(ctx context.Context, runID string, state State)

// ArtifactRecorder persists intermediate results of a run.
type ArtifactRecorder interface {
	UpsertArtifact(ctx context.Context, a model.Artifact) error
}

// Request is everything a single run needs.
type Request struct {
	RunID        string
	Credentials  source.Credentials
	Creator      string
	MaxPosts     int
	ProductURL   string
	VoiceProfile string
}

// Validate checks the request before any external work starts.
func (r Request) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Creator) == "" {
		problems = append(problems, "creator is required")
	}
	if r.MaxPosts <= 0 {
		problems = append(problems, "max posts must be positive")
	}
	if strings.TrimSpace(r.ProductURL) == "" {
		problems = append(problems, "product url is required")
	}
	if strings.TrimSpace(r.VoiceProfile) == "" {
		problems = append(problems, "voice profile is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Result is the outcome of a successful run.
type Result struct {
	RunID          string          `json:"run_id"`
	VideoCount     int             `json:"video_count"`
	PostsExamined  int             `json:"posts_examined"`
	Style          StyleDescriptor `json:"style"`
	Product        ProductInfo     `json:"product"`
	Review         ReviewText      `json:"review"`
	Script         ScriptText      `json:"script"`
	ReviewLocation string          `json:"review_location"`
	ScriptLocation string          `json:"script_location"`
	VoiceLocation  string          `json:"voice_location"`
}

// Deps are the collaborators of a pipeline. Artifacts is optional.
type Deps struct {
	Auth      Authenticator
	Source    PostSource
	Media     MediaTool
	Style     StyleAnalyzer
	Products  ProductExtractor
	Model     ModelClient
	Voice     VoiceSynthesizer
	Sink      output.Sink
	Artifacts ArtifactRecorder
}

// Options tune a pipeline.
type Options struct {
	WorkspaceBase   string
	Timeout         time.Duration
	ReviewMaxTokens int
	ScriptMaxTokens int
	Observer        Observer
}

// Pipeline drives one run from authentication to published voice-over.
type Pipeline struct {
	auth      Authenticator
	fetcher   *ContentFetcher
	style     StyleAnalyzer
	products  ProductExtractor
	reviews   *ReviewGenerator
	scripts   *ScriptGenerator
	voice     VoiceSynthesizer
	sink      output.Sink
	artifacts ArtifactRecorder

	workspaceBase string
	timeout       time.Duration
	observer      Observer

	releaseWorkspace func(*workspace.Workspace) error
}

// NewPipeline creates a pipeline with the given dependencies.
func NewPipeline(d Deps, o Options) *Pipeline {
	style := d.Style
	if style == nil {
		style = CaptionAnalyzer{}
	}
	base := o.WorkspaceBase
	if base == "" {
		base = "temp_downloads"
	}
	return &Pipeline{
		auth:          d.Auth,
		fetcher:       NewContentFetcher(d.Source, d.Media),
		style:         style,
		products:      d.Products,
		reviews:       NewReviewGenerator(d.Model, o.ReviewMaxTokens),
		scripts:       NewScriptGenerator(d.Model, o.ScriptMaxTokens),
		voice:         d.Voice,
		sink:          d.Sink,
		artifacts:     d.Artifacts,
		workspaceBase: base,
		timeout:       o.Timeout,
		observer:      o.Observer,

		releaseWorkspace: (*workspace.Workspace).Release,
	}
}

// Run executes every stage for req. On failure it returns a *StageError
// naming the stage that failed. The run workspace is released before Run
// returns, whatever the outcome; a release failure is only logged.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return nil, p.fail(ctx, req.RunID, StageRequest, StateIdle, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ws, err := workspace.Acquire(p.workspaceBase)
	if err != nil {
		return nil, p.fail(ctx, req.RunID, StageWorkspace, StateIdle, fmt.Errorf("%w: %w", ErrWorkspace, err))
	}
	defer p.release(ws, req.RunID)

	a, err := p.authenticate(ctx, ws, req.Credentials)
	if err != nil {
		return nil, p.fail(ctx, req.RunID, StageAuthenticate, StateIdle, err)
	}
	p.enter(ctx, req.RunID, StateAuthenticated)

	cf, err := p.fetchContent(ctx, a, req.Creator, req.MaxPosts)
	if err != nil {
		return nil, p.fail(ctx, req.RunID, StageFetch, StateAuthenticated, err)
	}
	p.enter(ctx, req.RunID, StateContentFetched)

	sk := p.analyzeStyle(ctx, req.RunID, cf)
	p.enter(ctx, req.RunID, StateStyleKnown)

	pk, err := p.extractProduct(ctx, req.RunID, sk, req.ProductURL)
	if err != nil {
		return nil, p.fail(ctx, req.RunID, StageProduct, StateStyleKnown, err)
	}
	p.enter(ctx, req.RunID, StateProductKnown)

	rr, err := p.generateReview(ctx, req.RunID, pk)
	if err != nil {
		return nil, p.fail(ctx, req.RunID, StageReview, StateProductKnown, err)
	}
	p.enter(ctx, req.RunID, StateReviewReady)

	sr, err := p.generateScript(ctx, req.RunID, rr)
	if err != nil {
		return nil, p.fail(ctx, req.RunID, StageScript, StateReviewReady, err)
	}
	p.enter(ctx, req.RunID, StateScriptReady)

	vr, err := p.synthesizeVoice(ctx, sr, req.VoiceProfile)
	if err != nil {
		return nil, p.fail(ctx, req.RunID, StageVoice, StateScriptReady, err)
	}
	p.enter(ctx, req.RunID, StateVoiceReady)

	res, err := p.publish(ctx, req.RunID, vr)
	if err != nil {
		return nil, p.fail(ctx, req.RunID, StagePublish, StateVoiceReady, err)
	}
	p.enter(ctx, req.RunID, StateDone)
	return res, nil
}

func (p *Pipeline) enter(ctx context.Context, runID string, s State) {
	slog.Debug("run state", "run_id", runID, "state", s.String())
	if p.observer != nil {
		p.observer(ctx, runID, s)
	}
}

func (p *Pipeline) fail(ctx context.Context, runID string, stage Stage, from State, err error) error {
	p.enter(ctx, runID, StateFailed)
	return &StageError{Stage: stage, From: from, Err: err}
}

// release removes the run workspace. Failure here never changes the run outcome.
func (p *Pipeline) release(ws *workspace.Workspace, runID string) {
	if err := p.releaseWorkspace(ws); err != nil {
		slog.Warn("workspace cleanup failed", "run_id", runID, "dir", ws.Dir(), "error", err)
	}
}
