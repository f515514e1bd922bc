package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/geo"
)

// FetchCatalog reads the full catalog. Line paths are stored as GeoJSON LineStrings.
func FetchCatalog(ctx context.Context, db *sql.DB) (*catalog.Catalog, error) {
	stations, err := fetchStations(ctx, db)
	if err != nil {
		return nil, err
	}
	lines, err := fetchLines(ctx, db)
	if err != nil {
		return nil, err
	}
	types, err := fetchTrainTypes(ctx, db)
	if err != nil {
		return nil, err
	}
	services, err := fetchServices(ctx, db)
	if err != nil {
		return nil, err
	}
	return catalog.New(stations, lines, types, services), nil
}

func fetchStations(ctx context.Context, db *sql.DB) ([]catalog.Station, error) {
	q := `SELECT id, name_en, name_ja, lat, lon, line_ids::text, COALESCE(metadata::text, '') FROM stations ORDER BY id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var out []catalog.Station
	for rows.Next() {
		var s catalog.Station
		var lineIDs, meta string
		if err := rows.Scan(&s.ID, &s.NameEN, &s.NameJA, &s.Lat, &s.Lon, &lineIDs, &meta); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(lineIDs), &s.LineIDs); err != nil {
			return nil, fmt.Errorf("station %q line_ids: %w", s.ID, err)
		}
		if meta != "" {
			s.Metadata = &catalog.StationMetadata{}
			if err := json.Unmarshal([]byte(meta), s.Metadata); err != nil {
				return nil, fmt.Errorf("station %q metadata: %w", s.ID, err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func fetchLines(ctx context.Context, db *sql.DB) ([]catalog.Line, error) {
	q := `SELECT id, name_en, name_ja, color, path::text, station_ids::text FROM lines ORDER BY id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var out []catalog.Line
	for rows.Next() {
		var l catalog.Line
		var path, stationIDs string
		if err := rows.Scan(&l.ID, &l.NameEN, &l.NameJA, &l.Color, &path, &stationIDs); err != nil {
			return nil, err
		}
		pts, err := geo.UnmarshalPath([]byte(path))
		if err != nil {
			return nil, fmt.Errorf("line %q path: %w", l.ID, err)
		}
		l.Polyline = make([][2]float64, len(pts))
		for i, p := range pts {
			l.Polyline[i] = [2]float64{p.Lat, p.Lon}
		}
		if err := json.Unmarshal([]byte(stationIDs), &l.StationIDs); err != nil {
			return nil, fmt.Errorf("line %q station_ids: %w", l.ID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func fetchTrainTypes(ctx context.Context, db *sql.DB) ([]catalog.TrainType, error) {
	q := `SELECT id, name_en, name_ja, max_speed_kmh, length_m, cars, livery_key, facts_en::text FROM train_types ORDER BY id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query train_types: %w", err)
	}
	defer rows.Close()

	var out []catalog.TrainType
	for rows.Next() {
		var t catalog.TrainType
		var facts string
		if err := rows.Scan(&t.ID, &t.NameEN, &t.NameJA, &t.MaxSpeedKmh, &t.LengthM, &t.Cars, &t.LiveryKey, &facts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(facts), &t.FactsEN); err != nil {
			return nil, fmt.Errorf("train type %q facts_en: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func fetchServices(ctx context.Context, db *sql.DB) ([]catalog.Service, error) {
	q := `SELECT id, line_id, train_type_id, name_en, direction FROM services ORDER BY id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	var out []catalog.Service
	index := make(map[string]int)
	for rows.Next() {
		var s catalog.Service
		if err := rows.Scan(&s.ID, &s.LineID, &s.TrainTypeID, &s.NameEN, &s.Direction); err != nil {
			return nil, err
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	q = `SELECT service_id, station_id, arrival, departure FROM service_stops ORDER BY service_id, seq`
	stops, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query service_stops: %w", err)
	}
	defer stops.Close()
	for stops.Next() {
		var serviceID, arr, dep string
		var st catalog.Stop
		if err := stops.Scan(&serviceID, &st.StationID, &arr, &dep); err != nil {
			return nil, err
		}
		if st.Arrival, err = catalog.ParseClock(arr); err != nil {
			return nil, fmt.Errorf("service %q: %w", serviceID, err)
		}
		if st.Departure, err = catalog.ParseClock(dep); err != nil {
			return nil, fmt.Errorf("service %q: %w", serviceID, err)
		}
		i, ok := index[serviceID]
		if !ok {
			continue
		}
		out[i].Stops = append(out[i].Stops, st)
	}
	return out, stops.Err()
}

// ImportCatalog replaces the stored catalog with cat in one transaction.
func ImportCatalog(ctx context.Context, db *sql.DB, cat *catalog.Catalog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM service_stops`, `DELETE FROM services`,
		`DELETE FROM train_types`, `DELETE FROM lines`, `DELETE FROM stations`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear catalog: %w", err)
		}
	}

	for _, s := range cat.Stations {
		lineIDs, _ := json.Marshal(nonNil(s.LineIDs))
		var meta any
		if s.Metadata != nil {
			b, _ := json.Marshal(s.Metadata)
			meta = string(b)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stations (id, name_en, name_ja, lat, lon, line_ids, metadata) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb)`,
			s.ID, s.NameEN, s.NameJA, s.Lat, s.Lon, string(lineIDs), meta); err != nil {
			return fmt.Errorf("insert station %q: %w", s.ID, err)
		}
	}

	for _, l := range cat.Lines {
		path, err := geo.MarshalPath(l.Path())
		if err != nil {
			return fmt.Errorf("line %q path: %w", l.ID, err)
		}
		stationIDs, _ := json.Marshal(nonNil(l.StationIDs))
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lines (id, name_en, name_ja, color, path, station_ids) VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb)`,
			l.ID, l.NameEN, l.NameJA, l.Color, string(path), string(stationIDs)); err != nil {
			return fmt.Errorf("insert line %q: %w", l.ID, err)
		}
	}

	for _, t := range cat.TrainTypes {
		facts, _ := json.Marshal(nonNil(t.FactsEN))
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO train_types (id, name_en, name_ja, max_speed_kmh, length_m, cars, livery_key, facts_en) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)`,
			t.ID, t.NameEN, t.NameJA, t.MaxSpeedKmh, t.LengthM, t.Cars, t.LiveryKey, string(facts)); err != nil {
			return fmt.Errorf("insert train type %q: %w", t.ID, err)
		}
	}

	for _, s := range cat.Services {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO services (id, line_id, train_type_id, name_en, direction) VALUES ($1, $2, $3, $4, $5)`,
			s.ID, s.LineID, s.TrainTypeID, s.NameEN, string(s.Direction)); err != nil {
			return fmt.Errorf("insert service %q: %w", s.ID, err)
		}
		for i, st := range s.Stops {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO service_stops (service_id, seq, station_id, arrival, departure) VALUES ($1, $2, $3, $4, $5)`,
				s.ID, i, st.StationID, st.Arrival.String(), st.Departure.String()); err != nil {
				return fmt.Errorf("insert service %q stop %d: %w", s.ID, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
