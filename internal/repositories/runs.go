package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/plwatch/internal/models"
)

// RunRepository records reconciliation cycles.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Record inserts run, replacing an earlier record with the same id.
func (r *RunRepository) Record(ctx context.Context, run *models.SyncRun) error {
	query := `
		INSERT OR REPLACE INTO sync_runs (id, phase, started_at, finished_at, checked, changed, notified, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Phase,
		run.StartedAt,
		run.FinishedAt,
		run.Checked,
		run.Changed,
		run.Notified,
		run.Failed,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first. A non-positive limit returns every run.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	query := `
		SELECT id, phase, started_at, finished_at, checked, changed, notified, failed, error
		FROM sync_runs
		ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (r *RunRepository) Prune(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM sync_runs
		WHERE id NOT IN (SELECT id FROM sync_runs ORDER BY started_at DESC LIMIT ?)
	`

	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sync runs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// scanRow scans a row from [sql.Rows] into a [models.SyncRun]
func (r *RunRepository) scanRow(rows *sql.Rows) (*models.SyncRun, error) {
	var (
		run        models.SyncRun
		finishedAt sql.NullTime
	)

	err := rows.Scan(&run.ID, &run.Phase, &run.StartedAt, &finishedAt, &run.Checked, &run.Changed, &run.Notified, &run.Failed, &run.Error)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}
