// Command validate-data checks the catalogs for schema violations, dangling
// references and out-of-order schedules. With -import it also loads them into Postgres.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/config"
	"hsr-simulator/internal/db"
	"hsr-simulator/internal/logger"
)

func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data", envOr("DATA_DIR", "./data"), "directory holding the catalogs")
	doImport := flag.Bool("import", false, "replace the Postgres catalog (DATABASE_URL, PG_DSN or PG*) after a clean validation")
	flag.Parse()

	if err := logger.Setup(envOr("LOG_LEVEL", "info"), ""); err != nil {
		log.Fatal(err)
	}

	cat, err := catalog.LoadDir(*dataDir)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}
	if err := cat.Validate(); err != nil {
		n := 1
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			n = len(joined.Unwrap())
			for _, e := range joined.Unwrap() {
				log.Error(e)
			}
		} else {
			log.Error(err)
		}
		log.Fatalf("%d problems in %s", n, *dataDir)
	}
	log.WithFields(log.Fields{
		"stations":    len(cat.Stations),
		"lines":       len(cat.Lines),
		"train_types": len(cat.TrainTypes),
		"services":    len(cat.Services),
	}).Info("catalog valid")

	if !*doImport {
		return
	}
	dsn := config.DatabaseURL()
	if dsn == "" {
		log.Fatal("-import requires DATABASE_URL, PG_DSN or PGDATABASE")
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
	if err := db.ImportCatalog(ctx, sqlDB, cat); err != nil {
		log.Fatalf("import: %v", err)
	}
	log.Info("catalog imported")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
