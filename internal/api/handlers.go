package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/sim"
)

func (s *Server) health(c *gin.Context) {
	snap := s.sim.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"trains": len(snap.Positions),
		"clock":  snap.Clock,
	})
}

func (s *Server) getClock(c *gin.Context) {
	c.JSON(http.StatusOK, clockView(s.sim.Snapshot()))
}

func clockView(snap *sim.Snapshot) gin.H {
	return gin.H{
		"time":    snap.Time,
		"clock":   snap.Clock,
		"playing": snap.Playing,
		"speed":   snap.Speed,
	}
}

type timeRequest struct {
	Time  *float64 `json:"time"`
	Clock string   `json:"clock"`
}

func (s *Server) putTime(c *gin.Context) {
	var req timeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	var minutes float64
	switch {
	case req.Clock != "":
		ct, err := catalog.ParseClock(req.Clock)
		if err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		minutes = ct.Minutes()
	case req.Time != nil:
		minutes = *req.Time
	default:
		abort(c, http.StatusBadRequest, "time or clock is required")
		return
	}
	snap := s.sim.SetTime(minutes)
	log.WithField("clock", snap.Clock).Info("clock scrubbed")
	c.JSON(http.StatusOK, clockView(snap))
}

type playingRequest struct {
	Playing *bool `json:"playing" binding:"required"`
}

func (s *Server) putPlaying(c *gin.Context) {
	var req playingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, clockView(s.sim.SetPlaying(*req.Playing)))
}

type speedRequest struct {
	Speed int `json:"speed"`
}

func (s *Server) putSpeed(c *gin.Context) {
	var req speedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	speed, err := sim.ParseSpeed(req.Speed)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.sim.SetSpeed(speed)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, clockView(snap))
}

func (s *Server) listTrains(c *gin.Context) {
	snap := s.sim.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"clock":  snap.Clock,
		"time":   snap.Time,
		"trains": snap.Sorted(),
	})
}

// trainDetail is what the info panel shows for a selected train.
type trainDetail struct {
	Position    sim.TrainPosition  `json:"position"`
	Service     catalog.Service    `json:"service"`
	TrainType   *catalog.TrainType `json:"train_type,omitempty"`
	Origin      *catalog.Station   `json:"origin,omitempty"`
	Destination *catalog.Station   `json:"destination,omitempty"`
	NextStop    *catalog.Station   `json:"next_stop,omitempty"`
	Display     map[string]string  `json:"display"`
}

func (s *Server) getTrain(c *gin.Context) {
	id := c.Param("id")
	cat := s.sim.Catalog()
	svc, ok := cat.Service(id)
	if !ok {
		abort(c, http.StatusNotFound, "unknown service")
		return
	}
	snap := s.sim.Snapshot()
	pos, ok := snap.Positions[id]
	if !ok {
		abort(c, http.StatusNotFound, "service has no position")
		return
	}

	d := trainDetail{
		Position:    pos,
		Service:     svc,
		Origin:      stationRef(cat, svc.Origin()),
		Destination: stationRef(cat, svc.Destination()),
		NextStop:    stationRef(cat, pos.NextStopID),
		Display: map[string]string{
			"clock":    snap.Clock,
			"speed":    catalog.FormatSpeed(pos.Speed),
			"progress": catalog.FormatProgress(pos.TotalProgress),
		},
	}
	if tt, ok := cat.TrainType(svc.TrainTypeID); ok {
		d.TrainType = &tt
	}
	if tr, ok := s.sim.Tracks()[svc.LineID]; ok {
		d.Display["line_length"] = catalog.FormatDistance(tr.Total)
		d.Display["travelled"] = catalog.FormatDistance(tr.Travelled(svc, pos))
	}
	c.JSON(http.StatusOK, d)
}

func stationRef(cat *catalog.Catalog, id string) *catalog.Station {
	if id == "" {
		return nil
	}
	st, ok := cat.Station(id)
	if !ok {
		return nil
	}
	return &st
}

func (s *Server) listStations(c *gin.Context) {
	stations := append([]catalog.Station(nil), s.sim.Catalog().Stations...)
	sort.Slice(stations, func(i, j int) bool { return stations[i].ID < stations[j].ID })
	c.JSON(http.StatusOK, stations)
}

type callView struct {
	ServiceID string            `json:"service_id"`
	LineID    string            `json:"line_id"`
	NameEN    string            `json:"name_en"`
	Direction catalog.Direction `json:"direction"`
	Arrival   catalog.ClockTime `json:"arrival"`
	Departure catalog.ClockTime `json:"departure"`
}

func (s *Server) getStation(c *gin.Context) {
	cat := s.sim.Catalog()
	st, ok := cat.Station(c.Param("id"))
	if !ok {
		abort(c, http.StatusNotFound, "unknown station")
		return
	}
	calls := cat.CallsAt(st.ID)
	views := make([]callView, 0, len(calls))
	for _, call := range calls {
		views = append(views, callView{
			ServiceID: call.ServiceID,
			LineID:    call.LineID,
			NameEN:    call.NameEN,
			Direction: call.Direction,
			Arrival:   call.Stop.Arrival,
			Departure: call.Stop.Departure,
		})
	}
	c.JSON(http.StatusOK, gin.H{"station": st, "calls": views})
}

type lineSummary struct {
	ID         string   `json:"id"`
	NameEN     string   `json:"name_en"`
	NameJA     string   `json:"name_ja,omitempty"`
	Color      string   `json:"color"`
	StationIDs []string `json:"station_ids_in_order"`
	LengthKm   float64  `json:"length_km"`
	ArcMode    bool     `json:"arc_mode"`
}

func (s *Server) listLines(c *gin.Context) {
	tracks := s.sim.Tracks()
	lines := s.sim.Catalog().Lines
	out := make([]lineSummary, 0, len(lines))
	for _, l := range lines {
		ls := lineSummary{ID: l.ID, NameEN: l.NameEN, NameJA: l.NameJA, Color: l.Color, StationIDs: l.StationIDs}
		if tr, ok := tracks[l.ID]; ok {
			ls.LengthKm = tr.Total
			ls.ArcMode = tr.StationArc != nil
		}
		out = append(out, ls)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) lineSegments(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.sim.Catalog().Line(id); !ok {
		abort(c, http.StatusNotFound, "unknown line")
		return
	}
	if s.derived == nil {
		abort(c, http.StatusNotFound, "no derived segment tables loaded")
		return
	}
	table, ok := s.derived.Lines[id]
	if !ok {
		abort(c, http.StatusNotFound, "line has no derived segment table")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"line_id":         id,
		"run_id":          s.derived.RunID,
		"total_length_km": table.TotalLengthKm,
		"segments":        table.Segments,
	})
}

func (s *Server) stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	s.hub.Register(conn, s.sim.Snapshot())
}
