package sim

import (
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsr-simulator/internal/catalog"
	"hsr-simulator/internal/geo"
	"hsr-simulator/internal/precompute"
)

// corridor runs due west along latitude 35 with uneven vertex spacing, so
// index-fraction and arc-length interpolation disagree.
func corridor() (catalog.Line, []catalog.Station) {
	line := catalog.Line{
		ID:         "l1",
		NameEN:     "Corridor",
		Color:      "#112233",
		Polyline:   [][2]float64{{35, 139}, {35, 138.9}, {35, 138.8}, {35, 138}},
		StationIDs: []string{"a", "b", "c"},
	}
	stations := []catalog.Station{
		{ID: "a", NameEN: "A", Lat: 35, Lon: 139},
		{ID: "b", NameEN: "B", Lat: 35, Lon: 138.8},
		{ID: "c", NameEN: "C", Lat: 35, Lon: 138},
	}
	return line, stations
}

func twoStop(id string, dir catalog.Direction) catalog.Service {
	return catalog.Service{
		ID: id, LineID: "l1", TrainTypeID: "t1", Direction: dir,
		Stops: []catalog.Stop{
			{StationID: "a", Arrival: 360, Departure: 360},
			{StationID: "c", Arrival: 390, Departure: 390},
		},
	}
}

func threeStop(id string) catalog.Service {
	return catalog.Service{
		ID: id, LineID: "l1", TrainTypeID: "t1", Direction: catalog.DirectionDown,
		Stops: []catalog.Stop{
			{StationID: "a", Arrival: 600, Departure: 600},
			{StationID: "b", Arrival: 620, Departure: 623},
			{StationID: "c", Arrival: 660, Departure: 660},
		},
	}
}

func at(t *testing.T, svc catalog.Service, minutes float64) TrainPosition {
	t.Helper()
	line, _ := corridor()
	got := ComputePositions([]catalog.Service{svc}, []catalog.Line{line}, minutes)
	p, ok := got[svc.ID]
	require.True(t, ok)
	return p
}

func TestTwoStopScenario(t *testing.T) {
	svc := twoStop("s1", catalog.DirectionDown)

	waiting := at(t, svc, 359) // 05:59
	assert.Equal(t, StatusWaiting, waiting.Status)
	assert.Equal(t, 0.0, waiting.TotalProgress)
	assert.Equal(t, "a", waiting.NextStopID)
	assert.Equal(t, 0.0, waiting.Speed)

	mid := at(t, svc, 375) // 06:15
	assert.Equal(t, StatusRunning, mid.Status)
	assert.InDelta(t, 0.5, mid.Progress, 1e-12)
	assert.InDelta(t, 0.5, mid.TotalProgress, 1e-12)
	assert.Equal(t, 0, mid.CurrentSegmentIndex)
	assert.Equal(t, "c", mid.NextStopID)
	// 50 km in 30 min at the top of the curve
	assert.Equal(t, 100.0, mid.Speed)

	done := at(t, svc, 390) // 06:30
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 1.0, done.TotalProgress)
	assert.Empty(t, done.NextStopID)
	assert.Equal(t, 0, done.CurrentSegmentIndex)
}

func TestTwoStopScenarioOnDiagonal(t *testing.T) {
	line := catalog.Line{ID: "l1", Polyline: [][2]float64{{35.0, 139.0}, {35.5, 139.5}}}
	svc := twoStop("s1", catalog.DirectionDown)
	eval := func(minutes float64) TrainPosition {
		return ComputePositions([]catalog.Service{svc}, []catalog.Line{line}, minutes)["s1"]
	}

	waiting := eval(359)
	assert.Equal(t, StatusWaiting, waiting.Status)
	assert.InDelta(t, 35.0, waiting.Lat, 1e-12)
	assert.InDelta(t, 139.0, waiting.Lon, 1e-12)

	mid := eval(375)
	assert.Equal(t, StatusRunning, mid.Status)
	assert.InDelta(t, 0.5, mid.TotalProgress, 1e-12)
	assert.InDelta(t, 35.25, mid.Lat, 1e-9)
	assert.InDelta(t, 139.25, mid.Lon, 1e-9)

	done := eval(390)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 1.0, done.TotalProgress)
	assert.InDelta(t, 35.5, done.Lat, 1e-12)
	assert.InDelta(t, 139.5, done.Lon, 1e-12)
}

func TestEaseCurve(t *testing.T) {
	assert.Equal(t, 0.0, ease(0))
	assert.Equal(t, 0.5, ease(0.5))
	assert.Equal(t, 1.0, ease(1))
	assert.InDelta(t, 0.125, ease(0.25), 1e-12)
	assert.InDelta(t, 0.875, ease(0.75), 1e-12)
}

func TestStatusBoundaries(t *testing.T) {
	svc := threeStop("s3")

	tests := []struct {
		name     string
		minutes  float64
		status   Status
		progress float64
		segment  int
		nextStop string
	}{
		{"first departure", 600, StatusRunning, 0, 0, "b"},
		{"arrival with dwell", 620, StatusStopped, 0.5, 0, "b"},
		{"dwelling", 622, StatusStopped, 0.5, 0, "b"},
		{"departure i is i over n-1", 623, StatusRunning, 0.5, 1, "c"},
		{"final arrival", 660, StatusCompleted, 1, 1, ""},
		{"after midnight wrap back", 10, StatusWaiting, 0, 0, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := at(t, svc, tt.minutes)
			assert.Equal(t, tt.status, p.Status)
			assert.InDelta(t, tt.progress, p.TotalProgress, 1e-12)
			assert.Equal(t, tt.segment, p.CurrentSegmentIndex)
			assert.Equal(t, tt.nextStop, p.NextStopID)
		})
	}
}

func TestZeroDwellResolvesToRunning(t *testing.T) {
	svc := threeStop("s3")
	svc.Stops[1].Departure = svc.Stops[1].Arrival

	p := at(t, svc, 620)
	assert.Equal(t, StatusRunning, p.Status)
	assert.Equal(t, 1, p.CurrentSegmentIndex)
	assert.InDelta(t, 0.5, p.TotalProgress, 1e-12)
}

func TestBetweenEndpointsRunningOrStopped(t *testing.T) {
	svc := threeStop("s3")
	prev := -1.0
	for m := 600.0; m < 660; m += 0.25 {
		p := at(t, svc, m)
		assert.Contains(t, []Status{StatusRunning, StatusStopped}, p.Status, "t=%v", m)
		assert.GreaterOrEqual(t, p.TotalProgress, prev, "t=%v", m)
		assert.GreaterOrEqual(t, p.TotalProgress, 0.0)
		assert.LessOrEqual(t, p.TotalProgress, 1.0)
		prev = p.TotalProgress
	}
}

func TestDirectionMirror(t *testing.T) {
	line, _ := corridor()
	path := line.Path()
	down := twoStop("down", catalog.DirectionDown)
	up := twoStop("up", catalog.DirectionUp)

	for _, m := range []float64{359, 365, 375, 383, 400} {
		got := ComputePositions([]catalog.Service{down, up}, []catalog.Line{line}, m)
		d, u := got["down"], got["up"]

		assert.Equal(t, d.TotalProgress, u.TotalProgress)
		assert.InDelta(t, 1-d.PathFraction, u.PathFraction, 1e-12)

		pt, h := geo.PointAt(path, 1-d.TotalProgress)
		assert.InDelta(t, pt.Lat, u.Lat, 1e-12)
		assert.InDelta(t, pt.Lon, u.Lon, 1e-12)
		assert.InDelta(t, geo.Reverse(h), u.Heading, 1e-9)
	}
}

func TestOmittedServices(t *testing.T) {
	line, _ := corridor()
	orphan := twoStop("orphan", catalog.DirectionDown)
	orphan.LineID = "nope"
	short := twoStop("short", catalog.DirectionDown)
	short.Stops = short.Stops[:1]
	ok := twoStop("ok", catalog.DirectionDown)

	got := ComputePositions([]catalog.Service{orphan, short, ok}, []catalog.Line{line}, 375)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "ok")
}

func TestComputeIsIdempotent(t *testing.T) {
	line, _ := corridor()
	services := []catalog.Service{twoStop("a", catalog.DirectionDown), threeStop("b")}
	first := ComputePositions(services, []catalog.Line{line}, 612.3)
	second := ComputePositions(services, []catalog.Line{line}, 612.3)
	assert.Equal(t, first, second)
}

func arcTracks(t *testing.T) Tracks {
	t.Helper()
	line, stations := corridor()
	rt, diags, err := precompute.Build(catalog.New(stations, []catalog.Line{line}, nil, nil))
	require.NoError(t, err)
	require.Empty(t, diags)
	return BuildTracks([]catalog.Line{line}, rt)
}

func TestArcModeFollowsRealDistance(t *testing.T) {
	tracks := arcTracks(t)
	tr := tracks["l1"]
	require.NotNil(t, tr.StationArc)
	svc := threeStop("s3")

	// dwelling at b sits on b's vertex, not at the index midpoint of the path
	p := ComputeWithTracks([]catalog.Service{svc}, tracks, 621)["s3"]
	assert.Equal(t, StatusStopped, p.Status)
	assert.InDelta(t, 138.8, p.Lon, 1e-9)
	assert.InDelta(t, tr.StationArc["b"]/tr.Total, p.PathFraction, 1e-12)

	fallback := ComputePositions([]catalog.Service{svc}, []catalog.Line{{
		ID: "l1", Polyline: [][2]float64{{35, 139}, {35, 138.9}, {35, 138.8}, {35, 138}},
	}}, 621)["s3"]
	assert.InDelta(t, 0.5, fallback.PathFraction, 1e-12)
	assert.InDelta(t, 138.85, fallback.Lon, 1e-9)

	// speed uses the measured a->b distance: 20 minute leg at its midpoint
	mid := ComputeWithTracks([]catalog.Service{svc}, tracks, 610)["s3"]
	assert.Equal(t, StatusRunning, mid.Status)
	ab := tr.StationArc["b"] - tr.StationArc["a"]
	assert.Equal(t, float64(int(ab/(20.0/60)+0.5)), mid.Speed)
	// the nominal 50 km leg would give 150 km/h
	assert.Less(t, mid.Speed, 150.0)

	dist := tr.StationArc["a"] + 0.5*ab
	pt, h := geo.AlongPath(tr.Path, tr.Cum, dist)
	assert.InDelta(t, pt.Lon, mid.Lon, 1e-9)
	assert.InDelta(t, h, mid.Heading, 1e-9)
}

func TestArcModeReverseTraversal(t *testing.T) {
	tracks := arcTracks(t)
	tr := tracks["l1"]
	down := twoStop("down", catalog.DirectionDown)
	up := catalog.Service{
		ID: "up", LineID: "l1", TrainTypeID: "t1", Direction: catalog.DirectionUp,
		Stops: []catalog.Stop{
			{StationID: "c", Arrival: 360, Departure: 360},
			{StationID: "a", Arrival: 390, Departure: 390},
		},
	}

	got := ComputeWithTracks([]catalog.Service{down, up}, tracks, 370)
	d, u := got["down"], got["up"]
	require.Equal(t, StatusRunning, u.Status)

	// up starts at c and moves towards a, heading against path order
	total := tr.Total
	assert.InDelta(t, total-d.PathFraction*total, u.PathFraction*total, 1e-6)
	_, h := geo.AlongPath(tr.Path, tr.Cum, u.PathFraction*total)
	assert.InDelta(t, geo.Reverse(h), u.Heading, 1e-9)
	assert.Equal(t, d.Speed, u.Speed)

	waiting := ComputeWithTracks([]catalog.Service{up}, tracks, 300)["up"]
	assert.InDelta(t, 138.0, waiting.Lon, 1e-9)
	assert.InDelta(t, 1.0, waiting.PathFraction, 1e-12)
}

func TestArcModeRequiresCoverage(t *testing.T) {
	tracks := arcTracks(t)
	svc := twoStop("s1", catalog.DirectionDown)
	svc.Stops[1].StationID = "elsewhere"

	p := ComputeWithTracks([]catalog.Service{svc}, tracks, 375)["s1"]
	// index-fraction fallback at route progress 0.5
	assert.InDelta(t, 0.5, p.PathFraction, 1e-12)
	assert.Equal(t, 100.0, p.Speed)
}

func TestTravelledFromOrigin(t *testing.T) {
	line, _ := corridor()
	up := catalog.Service{
		ID: "up", LineID: "l1", TrainTypeID: "t1", Direction: catalog.DirectionUp,
		Stops: []catalog.Stop{
			{StationID: "c", Arrival: 360, Departure: 360},
			{StationID: "a", Arrival: 390, Departure: 390},
		},
	}
	down := twoStop("down", catalog.DirectionDown)

	for name, tracks := range map[string]Tracks{
		"fallback": BuildTracks([]catalog.Line{line}, nil),
		"arc":      arcTracks(t),
	} {
		t.Run(name, func(t *testing.T) {
			tr := tracks["l1"]
			travelled := func(svc catalog.Service, minutes float64) float64 {
				p := ComputeWithTracks([]catalog.Service{svc}, tracks, minutes)[svc.ID]
				return tr.Travelled(svc, p)
			}

			assert.InDelta(t, 0, travelled(up, 360), 1e-9)
			assert.InDelta(t, tr.Total/2, travelled(up, 375), 1e-6)
			assert.InDelta(t, tr.Total, travelled(up, 390), 1e-9)

			assert.InDelta(t, 0, travelled(down, 360), 1e-9)
			assert.InDelta(t, tr.Total, travelled(down, 390), 1e-9)
		})
	}
}

func TestStaleTableWarning(t *testing.T) {
	line, stations := corridor()
	rt, _, err := precompute.Build(catalog.New(stations, []catalog.Line{line}, nil, nil))
	require.NoError(t, err)

	hook := logtest.NewGlobal()
	defer hook.Reset()

	tracks := BuildTracks([]catalog.Line{line}, rt)
	assert.False(t, TableIsStale(rt.Lines["l1"], tracks["l1"].Total))
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, log.WarnLevel, e.Level, e.Message)
	}

	// the path grew after the table was derived
	line.Polyline = append(line.Polyline, [2]float64{35, 137})
	hook.Reset()
	tracks = BuildTracks([]catalog.Line{line}, rt)
	assert.True(t, TableIsStale(rt.Lines["l1"], tracks["l1"].Total))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "l1", hook.LastEntry().Data["line"])
}
