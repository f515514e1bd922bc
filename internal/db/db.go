package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Connect opens dsn, optionally switching to database name, and verifies the connection.
func Connect(ctx context.Context, dsn, name string) (*sql.DB, error) {
	if name != "" {
		var err error
		if dsn, err = WithDBName(dsn, name); err != nil {
			return nil, fmt.Errorf("compose DSN: %w", err)
		}
	}
	db, err := Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := Ping(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stations (
  id        text PRIMARY KEY,
  name_en   text NOT NULL,
  name_ja   text NOT NULL DEFAULT '',
  lat       double precision NOT NULL,
  lon       double precision NOT NULL,
  line_ids  jsonb NOT NULL DEFAULT '[]',
  metadata  jsonb
)`,
	`CREATE TABLE IF NOT EXISTS lines (
  id          text PRIMARY KEY,
  name_en     text NOT NULL,
  name_ja     text NOT NULL DEFAULT '',
  color       text NOT NULL,
  path        jsonb NOT NULL,
  station_ids jsonb NOT NULL DEFAULT '[]'
)`,
	`CREATE TABLE IF NOT EXISTS train_types (
  id            text PRIMARY KEY,
  name_en       text NOT NULL,
  name_ja       text NOT NULL DEFAULT '',
  max_speed_kmh double precision NOT NULL,
  length_m      double precision NOT NULL,
  cars          integer NOT NULL,
  livery_key    text NOT NULL,
  facts_en      jsonb NOT NULL DEFAULT '[]'
)`,
	`CREATE TABLE IF NOT EXISTS services (
  id            text PRIMARY KEY,
  line_id       text NOT NULL,
  train_type_id text NOT NULL,
  name_en       text NOT NULL DEFAULT '',
  direction     text NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS service_stops (
  service_id text NOT NULL REFERENCES services(id) ON DELETE CASCADE,
  seq        integer NOT NULL,
  station_id text NOT NULL,
  arrival    text NOT NULL,
  departure  text NOT NULL,
  PRIMARY KEY (service_id, seq)
)`,
	`CREATE TABLE IF NOT EXISTS derived_runs (
  run_id       uuid PRIMARY KEY,
  generated_at timestamptz NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS derived_lines (
  run_id          uuid NOT NULL REFERENCES derived_runs(run_id) ON DELETE CASCADE,
  line_id         text NOT NULL,
  total_length_km double precision NOT NULL,
  PRIMARY KEY (run_id, line_id)
)`,
	`CREATE TABLE IF NOT EXISTS derived_segments (
  run_id           uuid NOT NULL,
  line_id          text NOT NULL,
  seq              integer NOT NULL,
  from_station_id  text NOT NULL,
  to_station_id    text NOT NULL,
  distance_km      double precision NOT NULL,
  from_index       integer NOT NULL,
  to_index         integer NOT NULL,
  arc_length_start double precision NOT NULL,
  arc_length_end   double precision NOT NULL,
  PRIMARY KEY (run_id, line_id, seq),
  FOREIGN KEY (run_id, line_id) REFERENCES derived_lines(run_id, line_id) ON DELETE CASCADE
)`,
}

// EnsureSchema creates the catalog and derived tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
