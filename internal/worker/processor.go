package worker

import (
	"context"
	"log/slog"

	"github.com/yangwenmai/reelcast/internal/engine"
	"github.com/yangwenmai/reelcast/internal/model"
	"github.com/yangwenmai/reelcast/internal/source"
)

// Pipeline is the orchestrator the processor drives.
type Pipeline interface {
	Run(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// RunUpdater records progress on a run row.
type RunUpdater interface {
	UpdateRunState(ctx context.Context, id, state string) error
	SetVideoCount(ctx context.Context, id string, n int) error
}

// PipelineProcessor turns stored runs into pipeline requests.
type PipelineProcessor struct {
	pipeline       Pipeline
	runs           RunUpdater
	creds          source.Credentials
	defaultProfile string
	defaultMax     int
}

// NewPipelineProcessor creates a processor that authenticates with creds and
// fills in defaultProfile and defaultMax when a run leaves them unset.
func NewPipelineProcessor(p Pipeline, runs RunUpdater, creds source.Credentials, defaultProfile string, defaultMax int) *PipelineProcessor {
	return &PipelineProcessor{
		pipeline:       p,
		runs:           runs,
		creds:          creds,
		defaultProfile: defaultProfile,
		defaultMax:     defaultMax,
	}
}

// Run implements Processor.
func (p *PipelineProcessor) Run(ctx context.Context, run *model.Run) error {
	req := engine.Request{
		RunID:        run.ID,
		Credentials:  p.creds,
		Creator:      run.Creator,
		MaxPosts:     run.MaxPosts,
		ProductURL:   run.ProductURL,
		VoiceProfile: run.VoiceProfile,
	}
	if req.MaxPosts <= 0 {
		req.MaxPosts = p.defaultMax
	}
	if req.VoiceProfile == "" {
		req.VoiceProfile = p.defaultProfile
	}

	res, err := p.pipeline.Run(ctx, req)
	if err != nil {
		return err
	}
	if err := p.runs.SetVideoCount(ctx, run.ID, res.VideoCount); err != nil {
		slog.Warn("record video count", "run_id", run.ID, "error", err)
	}
	return nil
}

// RecordState returns an observer that stores each state a run enters.
func RecordState(runs RunUpdater) engine.Observer {
	return func(ctx context.Context, runID string, s engine.State) {
		if err := runs.UpdateRunState(context.WithoutCancel(ctx), runID, s.String()); err != nil {
			slog.Warn("record run state", "run_id", runID, "state", s.String(), "error", err)
		}
	}
}
