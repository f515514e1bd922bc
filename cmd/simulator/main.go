package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/api"
	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/config"
	"hsr-simulator/internal/db"
	"hsr-simulator/internal/logger"
	"hsr-simulator/internal/metrics"
	"hsr-simulator/internal/precompute"
	"hsr-simulator/internal/publisher"
	"hsr-simulator/internal/sim"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("logger error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sqlDB *sql.DB
	if cfg.CatalogSource == config.SourcePostgres {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseName)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer sqlDB.Close()
	}

	cat, err := loadCatalog(ctx, cfg, sqlDB)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	if err := cat.Validate(); err != nil {
		log.WithError(err).Warn("catalog has problems; affected services may be omitted")
	}
	log.WithFields(log.Fields{
		"stations": len(cat.Stations),
		"lines":    len(cat.Lines),
		"services": len(cat.Services),
		"source":   cfg.CatalogSource,
	}).Info("catalog loaded")

	var derived *precompute.Runtime
	if cfg.UseDerived {
		derived = loadDerived(ctx, cfg, sqlDB)
	}
	tracks := sim.BuildTracks(cat.Lines, derived)

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.FrameInterval)
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	hub := api.NewHub(mcol)
	simulator := sim.NewSimulator(cat, tracks, cfg.InitialState(), cfg.FrameInterval, mcol, hub)

	// Empty NATS_URL keeps the feed off
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		simulator.AddSink(pub)
		log.WithField("prefix", cfg.NATSSubjectPrefix).Info("publishing positions to nats")
	}

	go hub.Run(ctx)

	var apiSrv *http.Server
	if cfg.HTTPAddr != "" {
		apiSrv = api.NewServer(simulator, derived, hub, mcol).Serve(cfg.HTTPAddr)
	}

	simulator.Start(ctx)
	log.WithFields(log.Fields{
		"clock":   cfg.StartTime.String(),
		"speed":   int(cfg.SpeedMultiplier),
		"playing": !cfg.StartPaused,
	}).Info("simulation running")

	// Block until context cancelled
	<-ctx.Done()
	simulator.Stop()
	if apiSrv != nil {
		api.Shutdown(apiSrv, 3*time.Second)
	}
	if metricsSrv != nil {
		api.Shutdown(metricsSrv, 3*time.Second)
	}
	log.Info("shutdown complete")
}

func loadCatalog(ctx context.Context, cfg *config.Config, sqlDB *sql.DB) (*catalog.Catalog, error) {
	if sqlDB != nil {
		return db.FetchCatalog(ctx, sqlDB)
	}
	return catalog.LoadDir(cfg.DataDir)
}

// loadDerived returns nil when no segment tables are available. Every line then
// falls back to index-fraction interpolation.
func loadDerived(ctx context.Context, cfg *config.Config, sqlDB *sql.DB) *precompute.Runtime {
	var (
		rt  *precompute.Runtime
		err error
	)
	if sqlDB != nil {
		rt, err = db.LoadLatestDerived(ctx, sqlDB)
	} else {
		rt, err = precompute.ReadFile(cfg.DerivedPath)
	}
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, db.ErrNoDerived):
		log.WithField("path", cfg.DerivedPath).Warn("no derived runtime; using index-fraction interpolation")
		return nil
	case err != nil:
		log.WithError(err).Warn("derived runtime unreadable; using index-fraction interpolation")
		return nil
	}
	log.WithFields(log.Fields{
		"run_id":       rt.RunID.String(),
		"generated_at": rt.GeneratedAt,
		"lines":        len(rt.Lines),
	}).Info("derived runtime loaded")
	return rt
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
