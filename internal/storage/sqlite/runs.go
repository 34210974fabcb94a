package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"todosync/internal/models"
)

const runColumns = `id, started_at, finished_at, created, updated, already_synced, excluded, skipped, failed, limit_reached, limit_cause, dry_run, reasons`

// RecordRun stores a finished sync run. A run without an id gets a new one.
func (s *Store) RecordRun(ctx context.Context, run models.Run) (models.Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	reasons := run.Reasons
	if reasons == nil {
		reasons = map[string]int{}
	}
	encoded, err := json.Marshal(reasons)
	if err != nil {
		return models.Run{}, fmt.Errorf("encode reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO runs(`+runColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Created, run.Updated, run.AlreadySynced, run.Excluded, run.Skipped, run.Failed,
		run.LimitReached, run.LimitCause, run.DryRun, string(encoded))
	if err != nil {
		return models.Run{}, fmt.Errorf("insert run: %w", err)
	}
	s.logger.Debug().Str("run_id", run.ID).Msg("run recorded")
	return run, nil
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var (
			r          models.Run
			started    time.Time
			finished   time.Time
			reasonsRaw string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Created, &r.Updated, &r.AlreadySynced, &r.Excluded, &r.Skipped, &r.Failed,
			&r.LimitReached, &r.LimitCause, &r.DryRun, &reasonsRaw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = started.UTC()
		r.FinishedAt = finished.UTC()
		if err := json.Unmarshal([]byte(reasonsRaw), &r.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
