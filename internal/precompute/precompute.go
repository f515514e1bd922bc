// Package precompute derives per-line segment tables from line paths and
// station coordinates: cumulative arc length, nearest-vertex station matching
// and one Segment per consecutive station pair.
package precompute

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/geo"
)

var (
	ErrUnknownStation = errors.New("unknown station")
	ErrShortPath      = errors.New("path has fewer than 2 points")
)

type Segment struct {
	FromStationID   string  `json:"from_station_id"`
	ToStationID     string  `json:"to_station_id"`
	DistanceKm      float64 `json:"distance_km"`
	PolylineIndices [2]int  `json:"polyline_indices"`
	ArcLengthStart  float64 `json:"arc_length_start"`
	ArcLengthEnd    float64 `json:"arc_length_end"`
}

type LineTable struct {
	TotalLengthKm float64   `json:"total_length_km"`
	Segments      []Segment `json:"segments"`
}

// Runtime is the derived record persisted between precompute runs and the simulator.
type Runtime struct {
	RunID       uuid.UUID            `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Lines       map[string]LineTable `json:"lines"`
}

// Stamp assigns a fresh run id and generation time.
func (r *Runtime) Stamp(now time.Time) {
	r.RunID = uuid.New()
	r.GeneratedAt = now.UTC()
}

type DiagnosticKind string

const (
	ZeroLength   DiagnosticKind = "zero_length"
	NonMonotonic DiagnosticKind = "non_monotonic"
)

// Diagnostic flags a segment whose stations map onto the path out of order or onto
// the same vertex. The segment itself is still emitted unchanged.
type Diagnostic struct {
	LineID    string         `json:"line_id"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Kind      DiagnosticKind `json:"kind"`
	FromIndex int            `json:"from_index"`
	ToIndex   int            `json:"to_index"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %s %s -> %s: %s (vertex %d -> %d)", d.LineID, d.From, d.To, d.Kind, d.FromIndex, d.ToIndex)
}

// ArcLengths returns the cumulative haversine distance (km) at each path vertex.
func ArcLengths(path []geo.Point) []float64 {
	if len(path) == 0 {
		return nil
	}
	cum := make([]float64, len(path))
	for i := 1; i < len(path); i++ {
		cum[i] = cum[i-1] + geo.Haversine(path[i-1], path[i])
	}
	return cum
}

// NearestVertex returns the index of the path vertex closest to p.
// On ties the first vertex wins.
func NearestVertex(path []geo.Point, p geo.Point) int {
	best := 0
	bestDist := math.Inf(1)
	for i, v := range path {
		if d := geo.Haversine(p, v); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// BuildLine computes the segment table of one line.
func BuildLine(line catalog.Line, stations map[string]catalog.Station) (LineTable, []Diagnostic, error) {
	path := line.Path()
	if len(path) < 2 {
		return LineTable{}, nil, fmt.Errorf("line %q: %w", line.ID, ErrShortPath)
	}
	arc := ArcLengths(path)

	idx := make([]int, len(line.StationIDs))
	for i, sid := range line.StationIDs {
		st, ok := stations[sid]
		if !ok {
			return LineTable{}, nil, fmt.Errorf("line %q station %q: %w", line.ID, sid, ErrUnknownStation)
		}
		idx[i] = NearestVertex(path, st.Point())
	}

	table := LineTable{TotalLengthKm: arc[len(arc)-1]}
	var diags []Diagnostic
	for i := 0; i+1 < len(line.StationIDs); i++ {
		from, to := idx[i], idx[i+1]
		seg := Segment{
			FromStationID:   line.StationIDs[i],
			ToStationID:     line.StationIDs[i+1],
			DistanceKm:      arc[to] - arc[from],
			PolylineIndices: [2]int{from, to},
			ArcLengthStart:  arc[from],
			ArcLengthEnd:    arc[to],
		}
		table.Segments = append(table.Segments, seg)

		var kind DiagnosticKind
		switch {
		case to == from:
			kind = ZeroLength
		case to < from:
			kind = NonMonotonic
		}
		if kind != "" {
			diags = append(diags, Diagnostic{
				LineID: line.ID, From: seg.FromStationID, To: seg.ToStationID,
				Kind: kind, FromIndex: from, ToIndex: to,
			})
		}
		log.WithFields(log.Fields{
			"line": line.ID, "from": seg.FromStationID, "to": seg.ToStationID,
			"km": math.Round(seg.DistanceKm*10) / 10,
		}).Debug("segment")
	}
	if table.Segments == nil {
		table.Segments = []Segment{}
	}
	return table, diags, nil
}

// Build computes segment tables for every line in the catalog. The first
// content error aborts the run.
func Build(cat *catalog.Catalog) (*Runtime, []Diagnostic, error) {
	stations := cat.StationMap()
	rt := &Runtime{Lines: make(map[string]LineTable, len(cat.Lines))}
	var diags []Diagnostic
	for _, line := range cat.Lines {
		table, d, err := BuildLine(line, stations)
		if err != nil {
			return nil, nil, err
		}
		rt.Lines[line.ID] = table
		diags = append(diags, d...)
		log.WithFields(log.Fields{
			"line":     line.ID,
			"segments": len(table.Segments),
			"total_km": math.Round(table.TotalLengthKm*10) / 10,
		}).Info("line processed")
	}
	return rt, diags, nil
}

// StationArcs maps each station of a table to its arc length along the path.
// A station listed twice keeps its first position.
func StationArcs(table LineTable) map[string]float64 {
	out := make(map[string]float64, len(table.Segments)+1)
	for _, s := range table.Segments {
		if _, ok := out[s.FromStationID]; !ok {
			out[s.FromStationID] = s.ArcLengthStart
		}
		if _, ok := out[s.ToStationID]; !ok {
			out[s.ToStationID] = s.ArcLengthEnd
		}
	}
	return out
}
