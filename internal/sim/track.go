package sim

import (
	"math"

	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/geo"
	"hsr-simulator/internal/precompute"
)

// Track is a line prepared for interpolation. StationArc is nil when no
// derived segment table was available for the line.
type Track struct {
	LineID     string
	Path       []geo.Point
	Cum        []float64
	Total      float64
	StationArc map[string]float64
}

// StaleTableKm is how far a derived table's total length may drift from the
// current path before BuildTracks warns that the geometry changed.
const StaleTableKm = 0.5

// Tracks is keyed by line id.
type Tracks map[string]*Track

// BuildTracks prepares every line. rt may be nil, in which case all tracks use
// index-fraction interpolation.
func BuildTracks(lines []catalog.Line, rt *precompute.Runtime) Tracks {
	out := make(Tracks, len(lines))
	for _, l := range lines {
		path := l.Path()
		cum := precompute.ArcLengths(path)
		tr := &Track{LineID: l.ID, Path: path, Cum: cum}
		if len(cum) > 0 {
			tr.Total = cum[len(cum)-1]
		}
		if rt != nil {
			if table, ok := rt.Lines[l.ID]; ok && len(table.Segments) > 0 {
				tr.StationArc = precompute.StationArcs(table)
				if TableIsStale(table, tr.Total) {
					log.WithFields(log.Fields{
						"line":     l.ID,
						"table_km": table.TotalLengthKm,
						"path_km":  tr.Total,
					}).Warn("derived table length differs from line path; rerun precompute")
				}
			}
		}
		out[l.ID] = tr
	}
	return out
}

// stopArcs returns the arc length of each stop, or nil when the track has no
// table or any stop is not on it.
func (t *Track) stopArcs(stops []catalog.Stop) []float64 {
	if t.StationArc == nil || len(t.Cum) != len(t.Path) {
		return nil
	}
	arcs := make([]float64, len(stops))
	for i, st := range stops {
		a, ok := t.StationArc[st.StationID]
		if !ok {
			return nil
		}
		arcs[i] = a
	}
	return arcs
}

// TableIsStale reports whether table was derived from a path of a different
// length than pathKm.
func TableIsStale(table precompute.LineTable, pathKm float64) bool {
	return math.Abs(table.TotalLengthKm-pathKm) > StaleTableKm
}

// Travelled is the distance in km a train at p has covered since leaving the
// origin of svc, whichever way it runs along the path.
func (t *Track) Travelled(svc catalog.Service, p TrainPosition) float64 {
	var start float64
	if arcs := t.stopArcs(svc.Stops); arcs != nil {
		start = arcs[0]
	} else if svc.Direction == catalog.DirectionUp {
		start = t.Total
	}
	return math.Abs(p.PathFraction*t.Total - start)
}
