package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/yangwenmai/reelcast/internal/app"
	"github.com/yangwenmai/reelcast/internal/config"
	"github.com/yangwenmai/reelcast/internal/engine"
	"github.com/yangwenmai/reelcast/internal/model"
	"github.com/yangwenmai/reelcast/internal/store"
	"github.com/yangwenmai/reelcast/internal/worker"
)

// pipelineFactory builds the pipeline for the run command. The returned
// function releases whatever the pipeline holds open.
type pipelineFactory func(ctx context.Context, obs engine.Observer) (worker.Pipeline, func(), error)

// stdout is where command results are written.
var stdout io.Writer = os.Stdout

// newCLIApp creates the CLI application with all commands.
func newCLIApp(s *store.Store, cfg config.Config, build pipelineFactory) *cli.App {
	a := &cli.App{
		Name:    "reelcast",
		Usage:   "Turn a creator's recent videos into a product voice-over",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(s, cfg, build),
			runsCmd(s),
			showCmd(s),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	a.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return a
}

// runCmd executes one run synchronously and records it in the store.
func runCmd(s *store.Store, cfg config.Config, build pipelineFactory) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the pipeline once and print the finished run",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "creator", Aliases: []string{"c"}, Required: true, Usage: "Creator handle to learn the style from"},
			&cli.StringFlag{Name: "product-url", Aliases: []string{"p"}, Required: true, Usage: "Product page URL"},
			&cli.StringFlag{Name: "voice", Usage: "Voice profile (defaults to VOICE_PROFILE)"},
			&cli.IntFlag{Name: "max-posts", Aliases: []string{"n"}, Usage: "Number of videos to collect (defaults to MAX_POSTS)"},
		},
		Action: func(c *cli.Context) error {
			if c.Int("max-posts") < 0 {
				return cli.Exit("max-posts must not be negative", 1)
			}
			ctx := c.Context

			run := model.NewRun(
				uuid.New().String(),
				strings.TrimPrefix(c.String("creator"), "@"),
				c.String("product-url"),
				c.String("voice"),
				c.Int("max-posts"),
			)
			if err := s.CreateRun(ctx, run); err != nil {
				return outputError(fmt.Errorf("create run: %w", err))
			}
			if err := s.UpdateRunStatus(ctx, run.ID, model.StatusRunning, nil); err != nil {
				return outputError(fmt.Errorf("start run: %w", err))
			}

			p, release, err := build(ctx, worker.RecordState(s))
			if err != nil {
				info := model.ErrorInfo{FailedStage: "setup", Message: err.Error()}.ToJSON()
				s.UpdateRunStatus(context.WithoutCancel(ctx), run.ID, model.StatusFailed, &info)
				return outputError(err)
			}
			defer release()

			processor := worker.NewPipelineProcessor(p, s, app.Credentials(cfg), cfg.VoiceProfile, cfg.MaxPosts)
			runErr := worker.New(s, processor, cfg.WorkerInterval).Execute(ctx, &run)

			result, err := s.GetRun(context.WithoutCancel(ctx), run.ID)
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(result); err != nil {
				return err
			}
			if runErr != nil {
				return outputError(runErr)
			}
			return nil
		},
	}
}

// runsCmd lists recorded runs.
func runsCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Comma-separated statuses (QUEUED, RUNNING, DONE, FAILED)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum runs to list (0 for all)"},
		},
		Action: func(c *cli.Context) error {
			runs, err := s.ListRuns(c.Context, model.RunFilter{
				Status: parseStatuses(c.String("status")),
				Limit:  c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			if runs == nil {
				runs = []model.Run{}
			}
			return outputJSON(runs)
		},
	}
}

// showCmd prints one run with its artifacts.
func showCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a run and its artifacts",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("run id is required", 1)
			}
			id := c.Args().First()
			run, err := s.GetRun(c.Context, id)
			if errors.Is(err, sql.ErrNoRows) {
				return cli.Exit(fmt.Sprintf("run %s not found", id), 1)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(run)
		},
	}
}

// outputJSON writes v as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the CLI, prefixing the failed stage when known.
func outputError(err error) error {
	var se *engine.StageError
	if errors.As(err, &se) {
		return cli.Exit(fmt.Sprintf("[%s] %s", se.StageName(), se.Err), 1)
	}
	return cli.Exit(err.Error(), 1)
}

func parseStatuses(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
