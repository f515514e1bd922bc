package sim

import (
	"math"

	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/geo"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
)

// NominalSegmentKm is the distance assumed for speed estimates when a service
// has no derived segment table.
const NominalSegmentKm = 50.0

// TrainPosition is recomputed from scratch on every evaluation.
type TrainPosition struct {
	ServiceID           string  `json:"service_id"`
	LineID              string  `json:"line_id"`
	Lat                 float64 `json:"lat"`
	Lon                 float64 `json:"lon"`
	Heading             float64 `json:"heading"`
	Progress            float64 `json:"progress"`
	TotalProgress       float64 `json:"total_progress"`
	PathFraction        float64 `json:"path_fraction"`
	CurrentSegmentIndex int     `json:"current_segment_index"`
	Speed               float64 `json:"speed"`
	Status              Status  `json:"status"`
	NextStopID          string  `json:"next_stop_id,omitempty"`
}

// scheduleState is where a service is in its timetable at a given time,
// independent of geometry.
type scheduleState struct {
	status      Status
	segment     int
	segProgress float64 // eased while running
	route       float64
	nextStop    string
	duration    float64 // running segment length in minutes
}

// ComputePositions evaluates every service at time t using index-fraction
// interpolation over the raw line paths.
func ComputePositions(services []catalog.Service, lines []catalog.Line, t float64) map[string]TrainPosition {
	return ComputeWithTracks(services, BuildTracks(lines, nil), t)
}

// ComputeWithTracks evaluates every service at time t. Services whose line is
// missing, or with fewer than two stops, are left out of the result.
func ComputeWithTracks(services []catalog.Service, tracks Tracks, t float64) map[string]TrainPosition {
	out := make(map[string]TrainPosition, len(services))
	for _, svc := range services {
		tr, ok := tracks[svc.LineID]
		if !ok || tr == nil || len(svc.Stops) < 2 || len(tr.Path) == 0 {
			continue
		}
		out[svc.ID] = position(svc, tr, t)
	}
	return out
}

func position(svc catalog.Service, tr *Track, t float64) TrainPosition {
	st := locate(svc.Stops, t)
	pos := TrainPosition{
		ServiceID:           svc.ID,
		LineID:              svc.LineID,
		Progress:            st.segProgress,
		TotalProgress:       st.route,
		CurrentSegmentIndex: st.segment,
		Status:              st.status,
		NextStopID:          st.nextStop,
	}

	if arcs := tr.stopArcs(svc.Stops); arcs != nil {
		placeOnArc(&pos, tr, arcs, st)
	} else {
		placeByFraction(&pos, tr, svc.Direction, st)
	}
	return pos
}

// placeOnArc positions the train by true distance along the path.
func placeOnArc(pos *TrainPosition, tr *Track, arcs []float64, st scheduleState) {
	i := st.segment
	from, to := arcs[i], arcs[i+1]

	var dist float64
	switch st.status {
	case StatusWaiting:
		dist = arcs[0]
	case StatusCompleted:
		dist = arcs[len(arcs)-1]
	case StatusStopped:
		dist = to
	default:
		dist = from + st.segProgress*(to-from)
	}

	p, heading := geo.AlongPath(tr.Path, tr.Cum, dist)
	reversed := to < from || (to == from && arcs[len(arcs)-1] < arcs[0])
	if reversed {
		heading = geo.Reverse(heading)
	}
	pos.Lat, pos.Lon, pos.Heading = p.Lat, p.Lon, heading
	if tr.Total > 0 {
		pos.PathFraction = dist / tr.Total
	}
	if st.status == StatusRunning {
		pos.Speed = estimateSpeed(math.Abs(to-from), st.duration, st.segProgress)
	}
}

// placeByFraction treats the path as evenly weighted vertex gaps. Services
// running up the line traverse it mirrored.
func placeByFraction(pos *TrainPosition, tr *Track, dir catalog.Direction, st scheduleState) {
	frac := st.route
	if dir == catalog.DirectionUp {
		frac = 1 - frac
	}
	p, heading := geo.PointAt(tr.Path, frac)
	if dir == catalog.DirectionUp {
		heading = geo.Reverse(heading)
	}
	pos.Lat, pos.Lon, pos.Heading = p.Lat, p.Lon, heading
	pos.PathFraction = frac
	if st.status == StatusRunning {
		pos.Speed = estimateSpeed(NominalSegmentKm, st.duration, st.segProgress)
	}
}

// locate brackets t within the stop list. Stops must have non-decreasing
// times; when no bracket matches the waiting defaults are returned.
func locate(stops []catalog.Stop, t float64) scheduleState {
	n := len(stops)
	first := stops[0].Departure.Minutes()
	last := stops[n-1].Arrival.Minutes()

	st := scheduleState{status: StatusWaiting, nextStop: stops[0].StationID}
	switch {
	case t < first:
		return st
	case t >= last:
		return scheduleState{status: StatusCompleted, segment: n - 2, segProgress: 1, route: 1}
	}

	legs := float64(n - 1)
	for i := 0; i < n-1; i++ {
		dep := stops[i].Departure.Minutes()
		arr := stops[i+1].Arrival.Minutes()
		nextDep := stops[i+1].Departure.Minutes()

		if t >= dep && t < arr {
			dur := arr - dep
			p := math.Max(0, math.Min(1, (t-dep)/dur))
			eased := ease(p)
			return scheduleState{
				status:      StatusRunning,
				segment:     i,
				segProgress: eased,
				route:       (float64(i) + eased) / legs,
				nextStop:    stops[i+1].StationID,
				duration:    dur,
			}
		}
		if t >= arr && t < nextDep {
			return scheduleState{
				status:      StatusStopped,
				segment:     i,
				segProgress: 1,
				route:       float64(i+1) / legs,
				nextStop:    stops[i+1].StationID,
			}
		}
	}
	return st
}

// ease is a symmetric quadratic ease-in/ease-out.
func ease(p float64) float64 {
	if p < 0.5 {
		return 2 * p * p
	}
	return 1 - math.Pow(-2*p+2, 2)/2
}

// estimateSpeed gives km/h for a segment, slowed towards both ends of the ease curve.
func estimateSpeed(km, durationMin, eased float64) float64 {
	if durationMin <= 0 {
		return 0
	}
	return math.Round(km / (durationMin / 60) * (1 - math.Abs(eased-0.5)*0.4))
}
