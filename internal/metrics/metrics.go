package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type Collector struct {
	reg *prometheus.Registry

	SimTime         prometheus.Gauge // minutes since midnight
	SpeedMultiplier prometheus.Gauge
	Playing         prometheus.Gauge
	FrameInterval   prometheus.Gauge // seconds
	ArcTracks       prometheus.Gauge

	TrainsByStatus *prometheus.GaugeVec // status label: waiting|running|stopped|completed

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	WSClients prometheus.Gauge
	WSDropped prometheus.Counter

	HTTPRequests *prometheus.CounterVec // method, route, code
}

func NewCollector(frameInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		SimTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_time_minutes",
			Help: "Simulation clock in minutes since midnight.",
		}),
		SpeedMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_speed_multiplier",
			Help: "Current speed multiplier.",
		}),
		Playing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_playing",
			Help: "1 while the simulation clock is running, 0 when paused.",
		}),
		FrameInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_frame_interval_seconds",
			Help: "Simulation tick period in seconds.",
		}),
		ArcTracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_arc_tracks",
			Help: "Lines interpolated by arc length from a derived segment table.",
		}),
		TrainsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simulator_trains",
			Help: "Trains in the latest snapshot by status.",
		}, []string{"status"}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_snapshots_total",
			Help: "Total position snapshots computed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_tick_duration_seconds",
			Help:    "Duration of position snapshot computations.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_ws_clients",
			Help: "Connected WebSocket clients.",
		}),
		WSDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_ws_dropped_total",
			Help: "Snapshots dropped because the WebSocket broadcast queue was full.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_http_requests_total",
			Help: "HTTP API requests by route and status code.",
		}, []string{"method", "route", "code"}),
	}

	reg.MustRegister(
		c.SimTime, c.SpeedMultiplier, c.Playing, c.FrameInterval, c.ArcTracks,
		c.TrainsByStatus, c.Ticks, c.TickDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.WSClients, c.WSDropped, c.HTTPRequests,
	)

	c.FrameInterval.Set(frameInterval.Seconds())

	return c
}

// ObserveState records the clock after a snapshot.
func (c *Collector) ObserveState(simTime float64, speed int, playing bool) {
	c.SimTime.Set(simTime)
	c.SpeedMultiplier.Set(float64(speed))
	if playing {
		c.Playing.Set(1)
	} else {
		c.Playing.Set(0)
	}
}

// ObserveTick records one snapshot computation.
func (c *Collector) ObserveTick(d time.Duration) {
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
}

// SetStatusCounts replaces the per-status train gauges.
func (c *Collector) SetStatusCounts(counts map[string]int) {
	for status, n := range counts {
		c.TrainsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

func (c *Collector) ObserveRequest(method, route string, code int) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server error")
		}
	}()
	log.WithField("addr", addr).Info("metrics listening")
	return srv
}
