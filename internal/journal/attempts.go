package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/neocrisis/internal/intercept"
	"github.com/banshee-data/neocrisis/internal/tracking"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RecordAttempt stores one finished intercept attempt.
func (j *Journal) RecordAttempt(ctx context.Context, a intercept.Attempt) error {
	_, err := j.ExecContext(ctx, `
		INSERT INTO intercept_attempts (
			attempt_id, seq, target, target_fired, target_fired_unix_nanos,
			planned_at, launch_at, collide_at, aim_r, aim_theta, aim_phi,
			scheduled, outcome, slug, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(),
		a.Seq,
		a.Identity.Name,
		formatTime(a.Identity.Fired()),
		a.Identity.FiredUnixNanos,
		formatTime(a.PlannedAt),
		formatTime(a.Launch),
		nullTime(a.CollideTime),
		a.Aim.R,
		a.Aim.Theta,
		a.Aim.Phi,
		a.Scheduled,
		string(a.Outcome),
		nullString(a.Slug),
		nullString(a.Err),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt %s: %w", a.ID, err)
	}
	return nil
}

// Attempts returns up to limit attempts, most recently recorded first. A
// non-positive limit defaults to 100.
func (j *Journal) Attempts(ctx context.Context, limit int) ([]intercept.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.QueryContext(ctx, `
		SELECT attempt_id, seq, target, target_fired_unix_nanos, planned_at, launch_at,
			collide_at, aim_r, aim_theta, aim_phi, scheduled, outcome, slug, error
		FROM intercept_attempts
		ORDER BY rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []intercept.Attempt
	for rows.Next() {
		var (
			id, target, planned, launch, outcome string
			collide, slug, errText               sql.NullString
			firedNanos                           int64
			a                                    intercept.Attempt
		)
		if err := rows.Scan(&id, &a.Seq, &target, &firedNanos, &planned, &launch,
			&collide, &a.Aim.R, &a.Aim.Theta, &a.Aim.Phi, &a.Scheduled, &outcome, &slug, &errText); err != nil {
			return nil, err
		}

		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("attempt %q: %w", id, err)
		}
		a.Identity = tracking.Identity{Name: target, FiredUnixNanos: firedNanos}
		if a.PlannedAt, err = time.Parse(timeLayout, planned); err != nil {
			return nil, fmt.Errorf("attempt %s planned_at: %w", id, err)
		}
		if a.Launch, err = time.Parse(timeLayout, launch); err != nil {
			return nil, fmt.Errorf("attempt %s launch_at: %w", id, err)
		}
		if collide.Valid {
			if a.CollideTime, err = time.Parse(timeLayout, collide.String); err != nil {
				return nil, fmt.Errorf("attempt %s collide_at: %w", id, err)
			}
		}
		a.Outcome = intercept.Outcome(outcome)
		a.Slug = slug.String
		a.Err = errText.String
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}

// OutcomeCounts tallies attempts by outcome.
func (j *Journal) OutcomeCounts(ctx context.Context) (map[intercept.Outcome]int, error) {
	rows, err := j.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM intercept_attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[intercept.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[intercept.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}
