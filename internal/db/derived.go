package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hsr-simulator/internal/precompute"
)

var ErrNoDerived = errors.New("no derived runtime stored")

// SaveDerived stores rt under its run id. Older runs are kept.
func SaveDerived(ctx context.Context, db *sql.DB, rt *precompute.Runtime) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO derived_runs (run_id, generated_at) VALUES ($1, $2)`,
		rt.RunID.String(), rt.GeneratedAt); err != nil {
		return fmt.Errorf("insert derived run: %w", err)
	}
	for lineID, table := range rt.Lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO derived_lines (run_id, line_id, total_length_km) VALUES ($1, $2, $3)`,
			rt.RunID.String(), lineID, table.TotalLengthKm); err != nil {
			return fmt.Errorf("insert derived line %q: %w", lineID, err)
		}
		for i, s := range table.Segments {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO derived_segments (run_id, line_id, seq, from_station_id, to_station_id, distance_km, from_index, to_index, arc_length_start, arc_length_end)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				rt.RunID.String(), lineID, i, s.FromStationID, s.ToStationID, s.DistanceKm,
				s.PolylineIndices[0], s.PolylineIndices[1], s.ArcLengthStart, s.ArcLengthEnd); err != nil {
				return fmt.Errorf("insert derived segment %q/%d: %w", lineID, i, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadLatestDerived returns the most recently generated run.
func LoadLatestDerived(ctx context.Context, db *sql.DB) (*precompute.Runtime, error) {
	q := `
SELECT run_id::text, generated_at
FROM derived_runs
ORDER BY generated_at DESC
LIMIT 1`
	var runID string
	rt := &precompute.Runtime{Lines: map[string]precompute.LineTable{}}
	if err := db.QueryRowContext(ctx, q).Scan(&runID, &rt.GeneratedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDerived
		}
		return nil, fmt.Errorf("query derived_runs: %w", err)
	}
	if err := rt.RunID.UnmarshalText([]byte(runID)); err != nil {
		return nil, fmt.Errorf("run id %q: %w", runID, err)
	}

	lines, err := db.QueryContext(ctx, `SELECT line_id, total_length_km FROM derived_lines WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("query derived_lines: %w", err)
	}
	defer lines.Close()
	for lines.Next() {
		var id string
		var table precompute.LineTable
		if err := lines.Scan(&id, &table.TotalLengthKm); err != nil {
			return nil, err
		}
		table.Segments = []precompute.Segment{}
		rt.Lines[id] = table
	}
	if err := lines.Err(); err != nil {
		return nil, err
	}

	q = `
SELECT line_id, from_station_id, to_station_id, distance_km, from_index, to_index, arc_length_start, arc_length_end
FROM derived_segments
WHERE run_id = $1
ORDER BY line_id, seq`
	segs, err := db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("query derived_segments: %w", err)
	}
	defer segs.Close()
	for segs.Next() {
		var lineID string
		var s precompute.Segment
		if err := segs.Scan(&lineID, &s.FromStationID, &s.ToStationID, &s.DistanceKm,
			&s.PolylineIndices[0], &s.PolylineIndices[1], &s.ArcLengthStart, &s.ArcLengthEnd); err != nil {
			return nil, err
		}
		table := rt.Lines[lineID]
		table.Segments = append(table.Segments, s)
		rt.Lines[lineID] = table
	}
	return rt, segs.Err()
}
