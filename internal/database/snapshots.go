package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is one recorded free-room resolution.
type Snapshot struct {
	ID       int64     `json:"id"`
	TakenAt  time.Time `json:"taken_at"`
	Day      string    `json:"day"`
	Time     string    `json:"time"`
	Occupied []string  `json:"occupied"`
	Free     []string  `json:"free"`
	Skipped  int       `json:"skipped"`
}

// RecordSnapshot stores s and returns its id.
func (db *DB) RecordSnapshot(ctx context.Context, s *Snapshot) (int64, error) {
	occupied, err := json.Marshal(nonNil(s.Occupied))
	if err != nil {
		return 0, err
	}
	free, err := json.Marshal(nonNil(s.Free))
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO occupancy_snapshots (taken_at, day, time_label, occupied, free, skipped)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.TakenAt.UTC(), s.Day, s.Time, string(occupied), string(free), s.Skipped,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// ListSnapshots returns the snapshots of day (YYYY-MM-DD) in chronological order.
func (db *DB) ListSnapshots(ctx context.Context, day string) ([]Snapshot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, taken_at, day, time_label, occupied, free, skipped
		FROM occupancy_snapshots
		WHERE day = ?
		ORDER BY taken_at, id`, day)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	result := make([]Snapshot, 0)
	for rows.Next() {
		var (
			s              Snapshot
			occupied, free string
		)
		if err := rows.Scan(&s.ID, &s.TakenAt, &s.Day, &s.Time, &occupied, &free, &s.Skipped); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(occupied), &s.Occupied); err != nil {
			return nil, fmt.Errorf("snapshot %d occupied: %w", s.ID, err)
		}
		if err := json.Unmarshal([]byte(free), &s.Free); err != nil {
			return nil, fmt.Errorf("snapshot %d free: %w", s.ID, err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// DeleteSnapshotsBefore removes snapshots older than cutoff.
func (db *DB) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM occupancy_snapshots WHERE taken_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
