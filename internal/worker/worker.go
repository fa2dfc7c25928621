package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yangwenmai/reelcast/internal/engine"
	"github.com/yangwenmai/reelcast/internal/model"
)

// Processor runs the pipeline for a single run.
type Processor interface {
	Run(ctx context.Context, run *model.Run) error
}

// RunClaimer provides atomic claim and status update operations.
type RunClaimer interface {
	ClaimNextQueued(ctx context.Context) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, id, newStatus string, errorInfo *string) error
}

// Worker polls for QUEUED runs and executes them one at a time.
type Worker struct {
	claimer   RunClaimer
	processor Processor
	interval  time.Duration
}

// New creates a new Worker.
func New(claimer RunClaimer, processor Processor, interval time.Duration) *Worker {
	return &Worker{claimer: claimer, processor: processor, interval: interval}
}

// Start begins the polling loop. It blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("worker started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped")
			return
		default:
		}

		if !w.processNext(ctx) {
			w.sleep(ctx)
		}
	}
}

// processNext claims and executes one run. It reports whether a run was found.
func (w *Worker) processNext(ctx context.Context) bool {
	run, err := w.claimer.ClaimNextQueued(ctx)
	if err != nil {
		slog.Error("worker claim error", "error", err)
		return false
	}
	if run == nil {
		return false
	}

	w.Execute(ctx, run)
	return true
}

// Execute runs the pipeline for an already claimed run and records DONE or
// FAILED. It returns the pipeline error, if any.
func (w *Worker) Execute(ctx context.Context, run *model.Run) error {
	slog.Info("processing run", "run_id", run.ID, "creator", run.Creator, "product_url", run.ProductURL)
	if err := w.processor.Run(ctx, run); err != nil {
		slog.Error("pipeline failed", "run_id", run.ID, "error", err)
		errInfo := buildErrorInfo(err)
		if sErr := w.claimer.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, model.StatusFailed, &errInfo); sErr != nil {
			slog.Error("failed to set FAILED status", "run_id", run.ID, "error", sErr)
		}
		return err
	}

	if err := w.claimer.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, model.StatusDone, nil); err != nil {
		slog.Error("failed to set DONE status", "run_id", run.ID, "error", err)
	} else {
		slog.Info("run is now DONE", "run_id", run.ID)
	}
	return nil
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}

// stageNamer is implemented by errors that carry a pipeline stage name.
type stageNamer interface {
	StageName() string
}

func buildErrorInfo(err error) string {
	stage := "unknown"
	var sn stageNamer
	if errors.As(err, &sn) {
		stage = sn.StageName()
	}
	info := model.ErrorInfo{
		FailedStage: stage,
		Message:     err.Error(),
		Retryable:   retryable(err),
		FailedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	return info.ToJSON()
}

// retryable reports whether running the same request again could succeed.
// Rejected requests and pages whose markup no longer matches will not.
func retryable(err error) bool {
	if errors.Is(err, engine.ErrRequest) {
		return false
	}
	var xe *engine.ExtractError
	if errors.As(err, &xe) && xe.Kind == engine.ExtractStructure {
		return false
	}
	return true
}
