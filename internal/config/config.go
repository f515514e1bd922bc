package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/sim"
)

const (
	SourceFiles    = "files"
	SourcePostgres = "postgres"
)

type Config struct {
	DataDir       string
	DerivedPath   string
	CatalogSource string

	DatabaseURL  string
	DatabaseName string

	UseDerived      bool
	FrameInterval   time.Duration
	SpeedMultiplier sim.Speed
	StartTime       catalog.ClockTime
	StartPaused     bool

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	MetricsAddr string
	HTTPAddr    string

	LogLevel string
	LogFile  string
}

// InitialState is the simulation clock the service starts with.
func (c *Config) InitialState() sim.State {
	return sim.State{
		Time:    c.StartTime.Minutes(),
		Playing: !c.StartPaused,
		Speed:   c.SpeedMultiplier,
	}
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DataDir = getenvDefault("DATA_DIR", "./data")
	cfg.DerivedPath = getenvDefault("DERIVED_PATH", filepath.Join(cfg.DataDir, "derived-runtime.json"))

	cfg.CatalogSource = strings.ToLower(getenvDefault("CATALOG_SOURCE", SourceFiles))
	switch cfg.CatalogSource {
	case SourceFiles, SourcePostgres:
	default:
		return nil, fmt.Errorf("invalid CATALOG_SOURCE: %q", cfg.CatalogSource)
	}

	cfg.DatabaseURL = DatabaseURL()
	cfg.DatabaseName = os.Getenv("DATABASE_NAME")
	if cfg.CatalogSource == SourcePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("CATALOG_SOURCE=postgres requires DATABASE_URL, PG_DSN or PGDATABASE")
	}

	var err error
	if cfg.UseDerived, err = parseBool("USE_DERIVED", true); err != nil {
		return nil, err
	}

	// Frame interval
	if v := os.Getenv("FRAME_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid FRAME_INTERVAL_MS: %q", v)
		}
		cfg.FrameInterval = time.Duration(ms) * time.Millisecond
	} else {
		cfg.FrameInterval = 100 * time.Millisecond
	}

	// Speed multiplier: one of the fixed choices
	cfg.SpeedMultiplier = sim.SpeedFast
	if v := os.Getenv("SPEED_MULTIPLIER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SPEED_MULTIPLIER: %q", v)
		}
		if cfg.SpeedMultiplier, err = sim.ParseSpeed(n); err != nil {
			return nil, fmt.Errorf("invalid SPEED_MULTIPLIER: %w", err)
		}
	}

	if cfg.StartTime, err = catalog.ParseClock(getenvDefault("START_TIME", "06:00")); err != nil {
		return nil, fmt.Errorf("invalid START_TIME: %w", err)
	}
	if cfg.StartPaused, err = parseBool("START_PAUSED", false); err != nil {
		return nil, err
	}

	// Empty NATS_URL disables the position feed.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "trains")
	if cfg.LogNATSSubjects, err = parseBool("LOG_NATS_SUBJECTS", false); err != nil {
		return nil, err
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok && v == "" {
		cfg.HTTPAddr = ""
	}

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

// DatabaseURL resolves the Postgres DSN from DATABASE_URL or PG_DSN, falling
// back to the libpq PG* variables when PGDATABASE is set. It returns "" when
// nothing is configured.
func DatabaseURL() string {
	dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"))
	if dsn == "" && os.Getenv("PGDATABASE") != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, os.Getenv("PGDATABASE"), sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, os.Getenv("PGDATABASE"), sslmode)
		}
	}
	return dsn
}

func parseBool(k string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s: %q", k, v)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
