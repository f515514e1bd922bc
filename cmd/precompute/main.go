// Command precompute derives per-line segment tables from the station and line
// catalogs and writes them for the simulator to load at startup.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/config"
	"hsr-simulator/internal/db"
	"hsr-simulator/internal/logger"
	"hsr-simulator/internal/precompute"
)

// errDiagnostics is returned under -strict; nothing has been written by then.
var errDiagnostics = errors.New("segment diagnostics reported")

func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data", envOr("DATA_DIR", "./data"), "directory holding stations and lines catalogs")
	out := flag.String("out", os.Getenv("DERIVED_PATH"), "output path (default <data>/derived-runtime.json)")
	toDB := flag.Bool("db", false, "also store the run in Postgres (DATABASE_URL, PG_DSN or PG*)")
	strict := flag.Bool("strict", false, "write nothing and exit non-zero when any segment diagnostic is reported")
	level := flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	if err := logger.Setup(*level, ""); err != nil {
		log.Fatal(err)
	}
	if *out == "" {
		*out = filepath.Join(*dataDir, "derived-runtime.json")
	}

	rt, err := derive(*dataDir, *out, *strict, time.Now())
	if err != nil {
		log.Fatal(err)
	}

	if *toDB {
		dsn := config.DatabaseURL()
		if dsn == "" {
			log.Fatal("-db requires DATABASE_URL, PG_DSN or PGDATABASE")
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		sqlDB, err := db.Connect(ctx, dsn, os.Getenv("DATABASE_NAME"))
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer sqlDB.Close()
		if err := db.EnsureSchema(ctx, sqlDB); err != nil {
			log.Fatalf("schema: %v", err)
		}
		if err := db.SaveDerived(ctx, sqlDB, rt); err != nil {
			log.Fatalf("save derived: %v", err)
		}
		log.WithField("run_id", rt.RunID.String()).Info("derived runtime stored in postgres")
	}
}

// derive builds the segment tables from dataDir and writes them to out. With
// strict set, any diagnostic aborts before the file is touched.
func derive(dataDir, out string, strict bool, now time.Time) (*precompute.Runtime, error) {
	cat, err := catalog.LoadGeometry(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	rt, diags, err := precompute.Build(cat)
	if err != nil {
		return nil, fmt.Errorf("precompute: %w", err)
	}
	for _, d := range diags {
		log.WithFields(log.Fields{
			"line": d.LineID,
			"from": d.From,
			"to":   d.To,
			"kind": string(d.Kind),
		}).Warn(d.String())
	}
	if strict && len(diags) > 0 {
		return nil, fmt.Errorf("%w: %d with -strict, nothing written", errDiagnostics, len(diags))
	}
	rt.Stamp(now)

	if err := precompute.WriteFile(out, rt); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	log.WithFields(log.Fields{"path": out, "run_id": rt.RunID.String()}).Info("derived runtime written")
	return rt, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
