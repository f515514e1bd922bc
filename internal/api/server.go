// Package api serves the simulation over HTTP: clock controls, train and
// station queries, GeoJSON and GTFS-Realtime exports and a WebSocket stream.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/metrics"
	"hsr-simulator/internal/precompute"
	"hsr-simulator/internal/sim"
)

type Server struct {
	sim     *sim.Simulator
	derived *precompute.Runtime
	hub     *Hub
	metrics *metrics.Collector
	geojson gcache.Cache
	engine  *gin.Engine
}

// NewServer wires the routes. derived may be nil when no segment tables were loaded.
func NewServer(s *sim.Simulator, derived *precompute.Runtime, hub *Hub, m *metrics.Collector) *Server {
	srv := &Server{sim: s, derived: derived, hub: hub, metrics: m}
	srv.geojson = gcache.New(64).
		LRU().
		Expiration(time.Hour).
		LoaderFunc(func(key interface{}) (interface{}, error) {
			return srv.lineGeoJSON(key.(string))
		}).
		Build()

	r := gin.New()
	r.Use(gin.Recovery(), srv.requestLogger())

	r.GET("/healthz", srv.health)
	r.GET("/ws", srv.stream)

	api := r.Group("/api")
	api.GET("/clock", srv.getClock)
	api.PUT("/clock/time", srv.putTime)
	api.PUT("/clock/playing", srv.putPlaying)
	api.PUT("/clock/speed", srv.putSpeed)

	api.GET("/trains", srv.listTrains)
	api.GET("/trains/:id", srv.getTrain)

	api.GET("/stations", srv.listStations)
	api.GET("/stations/:id", srv.getStation)

	api.GET("/lines", srv.listLines)
	api.GET("/lines/:id/segments", srv.lineSegments)
	api.GET("/lines/:id/geojson", srv.lineGeoJSONHandler)

	api.GET("/gtfs-rt/vehicle-positions", srv.vehiclePositions)

	srv.engine = r
	return srv
}

func (s *Server) Handler() http.Handler { return s.engine }

// Serve starts listening on addr in the background.
func (s *Server) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server error")
		}
	}()
	log.WithField("addr", addr).Info("api listening")
	return srv
}

// Shutdown stops srv, waiting at most timeout for in-flight requests.
func Shutdown(srv *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status())
		}
		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"client":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Debug("request")
	}
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
