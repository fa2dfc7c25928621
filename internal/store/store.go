package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yangwenmai/reelcast/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ RunReader     = (*Store)(nil)
	_ RunWriter     = (*Store)(nil)
	_ RunClaimer    = (*Store)(nil)
	_ ArtifactStore = (*Store)(nil)
)

// Store provides data access to the SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 2

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: runs and artifacts
		s.migrateV2, // v1 → v2: lifecycle state column
	}
	if len(migrations) != currentSchemaVersion {
		return fmt.Errorf("have %d migrations for schema version %d", len(migrations), currentSchemaVersion)
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		creator       TEXT NOT NULL,
		product_url   TEXT NOT NULL,
		voice_profile TEXT NOT NULL DEFAULT '',
		max_posts     INTEGER NOT NULL,
		status        TEXT NOT NULL,
		video_count   INTEGER NOT NULL DEFAULT 0,
		error_info    TEXT,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, created_at);

	CREATE TABLE IF NOT EXISTS artifacts (
		id            TEXT PRIMARY KEY,
		run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		artifact_type TEXT NOT NULL,
		payload       TEXT NOT NULL,
		created_by    TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_unique ON artifacts(run_id, artifact_type);
	`)
	return err
}

// migrateV2 adds the orchestrator state column (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`ALTER TABLE runs ADD COLUMN state TEXT NOT NULL DEFAULT 'Idle'`)
	return err
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

const runColumns = `id, creator, product_url, voice_profile, max_posts, status, state, video_count, error_info, created_at, updated_at`

// CreateRun inserts a new run.
func (s *Store) CreateRun(ctx context.Context, run model.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Creator, run.ProductURL, run.VoiceProfile, run.MaxPosts,
		run.Status, run.State, run.VideoCount, run.ErrorInfo, run.CreatedAt, run.UpdatedAt,
	)
	return err
}

// GetRun returns a run together with its artifacts. A missing run yields sql.ErrNoRows.
func (s *Store) GetRun(ctx context.Context, id string) (*model.RunWithArtifacts, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	artifacts, err := s.listArtifacts(ctx, id)
	if err != nil {
		return nil, err
	}
	if artifacts == nil {
		artifacts = []model.Artifact{}
	}
	return &model.RunWithArtifacts{Run: *run, Artifacts: artifacts}, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *Store) ListRuns(ctx context.Context, f model.RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []interface{}

	if len(f.Status) > 0 {
		placeholders := make([]string, len(f.Status))
		for i, st := range f.Status {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// UpdateRunStatus changes the status of a run.
func (s *Store) UpdateRunStatus(ctx context.Context, id, newStatus string, errorInfo *string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, error_info = ?, updated_at = ? WHERE id = ?`,
		newStatus, errorInfo, now(), id)
	return err
}

// UpdateRunState records the orchestrator state a run has reached.
func (s *Store) UpdateRunState(ctx context.Context, id, state string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET state = ?, updated_at = ? WHERE id = ?`, state, now(), id)
	return err
}

// SetVideoCount records how many video posts a run used.
func (s *Store) SetVideoCount(ctx context.Context, id string, n int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET video_count = ?, updated_at = ? WHERE id = ?`, n, now(), id)
	return err
}

// RetryRun moves a FAILED run back to QUEUED. It reports false when the run
// does not exist or is not FAILED.
func (s *Store) RetryRun(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, state = 'Idle', error_info = NULL, video_count = 0, updated_at = ?
		WHERE id = ? AND status = ?`,
		model.StatusQueued, now(), id, model.StatusFailed,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ClaimNextQueued atomically picks the oldest QUEUED run and sets it to RUNNING.
// Returns nil if no run is available.
func (s *Store) ClaimNextQueued(ctx context.Context) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE runs SET status = ?, updated_at = ?
		WHERE id = (SELECT id FROM runs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1)
		RETURNING `+runColumns,
		model.StatusRunning, now(), model.StatusQueued,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ResetStaleRunning resets RUNNING runs back to QUEUED (for server restart).
func (s *Store) ResetStaleRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, state = 'Idle', updated_at = ? WHERE status = ?`,
		model.StatusQueued, now(), model.StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of runs per status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ---------------------------------------------------------------------------
// Artifacts
// ---------------------------------------------------------------------------

// UpsertArtifact inserts or replaces an artifact (one per run per type).
func (s *Store) UpsertArtifact(ctx context.Context, a model.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, run_id, artifact_type, payload, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, artifact_type) DO UPDATE SET
			id = excluded.id,
			payload = excluded.payload,
			created_by = excluded.created_by,
			created_at = excluded.created_at`,
		a.ID, a.RunID, a.ArtifactType, a.Payload, a.CreatedBy, a.CreatedAt,
	)
	return err
}

func (s *Store) listArtifacts(ctx context.Context, runID string) ([]model.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, artifact_type, payload, created_by, created_at FROM artifacts WHERE run_id = ? ORDER BY created_at ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var artifacts []model.Artifact
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.ID, &a.RunID, &a.ArtifactType, &a.Payload, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.Creator, &r.ProductURL, &r.VoiceProfile, &r.MaxPosts, &r.Status, &r.State, &r.VideoCount, &r.ErrorInfo, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
