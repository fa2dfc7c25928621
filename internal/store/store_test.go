package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/yangwenmai/reelcast/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func makeRun(id string) model.Run {
	return model.NewRun(id, "creator_"+id, "https://shop.example.com/"+id, "voices/a.wav", 5)
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, makeRun("run-1")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Creator != "creator_run-1" || got.MaxPosts != 5 {
		t.Errorf("run = %+v", got.Run)
	}
	if got.Status != model.StatusQueued || got.State != "Idle" {
		t.Errorf("Status/State = %q/%q, want QUEUED/Idle", got.Status, got.State)
	}
	if got.ErrorInfo != nil {
		t.Errorf("ErrorInfo = %v, want nil", *got.ErrorInfo)
	}
	if got.Artifacts == nil || len(got.Artifacts) != 0 {
		t.Errorf("Artifacts = %v, want empty non-nil slice", got.Artifacts)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "nonexistent")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := s.CreateRun(ctx, makeRun(fmt.Sprintf("run-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	s.UpdateRunStatus(ctx, "run-2", model.StatusDone, nil)

	all, err := s.ListRuns(ctx, model.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].ID != "run-3" {
		t.Errorf("first = %q, want newest run-3", all[0].ID)
	}

	queued, err := s.ListRuns(ctx, model.RunFilter{Status: []string{model.StatusQueued}})
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 2 {
		t.Errorf("queued = %d, want 2", len(queued))
	}

	limited, _ := s.ListRuns(ctx, model.RunFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}

func TestClaimNextQueued(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateRun(ctx, makeRun("a"))
	s.CreateRun(ctx, makeRun("b"))

	first, err := s.ClaimNextQueued(ctx)
	if err != nil {
		t.Fatalf("ClaimNextQueued: %v", err)
	}
	if first == nil || first.ID != "a" || first.Status != model.StatusRunning {
		t.Fatalf("first claim = %+v, want run a RUNNING", first)
	}

	second, _ := s.ClaimNextQueued(ctx)
	if second == nil || second.ID != "b" {
		t.Fatalf("second claim = %+v, want run b", second)
	}

	none, err := s.ClaimNextQueued(ctx)
	if err != nil || none != nil {
		t.Fatalf("third claim = %+v, %v; want nil, nil", none, err)
	}
}

func TestUpdateRunStateAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateRun(ctx, makeRun("r"))

	if err := s.UpdateRunState(ctx, "r", "ReviewReady"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetVideoCount(ctx, "r", 3); err != nil {
		t.Fatal(err)
	}
	info := `{"failed_stage":"voice"}`
	if err := s.UpdateRunStatus(ctx, "r", model.StatusFailed, &info); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetRun(ctx, "r")
	if got.State != "ReviewReady" || got.VideoCount != 3 || got.Status != model.StatusFailed {
		t.Errorf("run = %+v", got.Run)
	}
	if got.ErrorInfo == nil || *got.ErrorInfo != info {
		t.Errorf("ErrorInfo = %v, want %q", got.ErrorInfo, info)
	}
}

func TestRetryRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateRun(ctx, makeRun("r"))

	ok, err := s.RetryRun(ctx, "r")
	if err != nil || ok {
		t.Fatalf("retry of QUEUED run = %v, %v; want false", ok, err)
	}

	info := `{"failed_stage":"fetch"}`
	s.UpdateRunState(ctx, "r", "Failed")
	s.UpdateRunStatus(ctx, "r", model.StatusFailed, &info)

	ok, err = s.RetryRun(ctx, "r")
	if err != nil || !ok {
		t.Fatalf("retry of FAILED run = %v, %v; want true", ok, err)
	}
	got, _ := s.GetRun(ctx, "r")
	if got.Status != model.StatusQueued || got.State != "Idle" || got.ErrorInfo != nil {
		t.Errorf("after retry = %+v", got.Run)
	}

	if ok, _ := s.RetryRun(ctx, "missing"); ok {
		t.Error("retry of missing run should report false")
	}
}

func TestResetStaleRunning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateRun(ctx, makeRun("a"))
	s.CreateRun(ctx, makeRun("b"))
	s.ClaimNextQueued(ctx)
	s.UpdateRunState(ctx, "a", "ContentFetched")

	n, err := s.ResetStaleRunning(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("reset = %d, want 1", n)
	}
	got, _ := s.GetRun(ctx, "a")
	if got.Status != model.StatusQueued || got.State != "Idle" {
		t.Errorf("after reset = %q/%q", got.Status, got.State)
	}
}

func TestUpsertArtifact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateRun(ctx, makeRun("r"))

	if err := s.UpsertArtifact(ctx, model.NewArtifact("a1", "r", model.ArtifactReview, `{"text":"v1"}`)); err != nil {
		t.Fatalf("UpsertArtifact: %v", err)
	}
	if err := s.UpsertArtifact(ctx, model.NewArtifact("a2", "r", model.ArtifactReview, `{"text":"v2"}`)); err != nil {
		t.Fatalf("UpsertArtifact (replace): %v", err)
	}
	s.UpsertArtifact(ctx, model.NewArtifact("a3", "r", model.ArtifactScript, `{"text":"s"}`))

	got, _ := s.GetRun(ctx, "r")
	if len(got.Artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2 (one per type)", len(got.Artifacts))
	}
	for _, a := range got.Artifacts {
		if a.ArtifactType == model.ArtifactReview && a.Payload != `{"text":"v2"}` {
			t.Errorf("review payload = %s, want replaced v2", a.Payload)
		}
	}
}

func TestUpsertArtifact_UnknownRun(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertArtifact(context.Background(), model.NewArtifact("a1", "ghost", model.ArtifactStyle, "{}"))
	if err == nil {
		t.Fatal("expected foreign key violation for unknown run")
	}
}

func TestCountByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateRun(ctx, makeRun("a"))
	s.CreateRun(ctx, makeRun("b"))
	s.UpdateRunStatus(ctx, "b", model.StatusDone, nil)

	counts, err := s.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[model.StatusQueued] != 1 || counts[model.StatusDone] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := New(db); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(db); err != nil {
		t.Fatalf("second New: %v", err)
	}
	var version int
	db.QueryRow(`SELECT version FROM schema_version`).Scan(&version)
	if version != currentSchemaVersion {
		t.Errorf("version = %d, want %d", version, currentSchemaVersion)
	}
}
