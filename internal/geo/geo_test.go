package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Point
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "Tokyo to Shin-Osaka (~402 km)",
			a:         Point{35.6812, 139.7671},
			b:         Point{34.7334, 135.5001},
			wantKm:    402,
			tolerance: 3,
		},
		{
			name:      "same point returns zero",
			a:         Point{35.0, 139.0},
			b:         Point{35.0, 139.0},
			wantKm:    0,
			tolerance: 1e-9,
		},
		{
			name:      "equator quarter circumference",
			a:         Point{0, 0},
			b:         Point{0, 90},
			wantKm:    math.Pi / 2 * earthRadiusKm,
			tolerance: 1e-6,
		},
		{
			name:      "one degree of latitude",
			a:         Point{35, 139},
			b:         Point{36, 139},
			wantKm:    earthRadiusKm * math.Pi / 180,
			tolerance: 1e-6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantKm, Haversine(tt.a, tt.b), tt.tolerance)
		})
	}
}

func TestHaversine_Symmetry(t *testing.T) {
	a := Point{35.6812, 139.7671}
	b := Point{34.7334, 135.5001}
	assert.Equal(t, Haversine(a, b), Haversine(b, a))
}

func TestBearing_Cardinal(t *testing.T) {
	origin := Point{0, 0}
	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"north", Point{1, 0}, 0},
		{"east", Point{0, 1}, 90},
		{"south", Point{-1, 0}, 180},
		{"west", Point{0, -1}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Bearing(origin, tt.to), 1e-9)
		})
	}
}

func TestReverse(t *testing.T) {
	assert.InDelta(t, 180.0, Reverse(0), 1e-12)
	assert.InDelta(t, 45.0, Reverse(225), 1e-12)
	assert.InDelta(t, 270.0, Reverse(90), 1e-12)
}

func TestPointAt(t *testing.T) {
	path := []Point{{35.0, 139.0}, {35.5, 139.5}, {36.0, 139.5}}

	p, _ := PointAt(path, 0)
	assert.Equal(t, path[0], p)

	p, h := PointAt(path, 1)
	assert.InDelta(t, 36.0, p.Lat, 1e-12)
	assert.InDelta(t, 139.5, p.Lon, 1e-12)
	assert.InDelta(t, 0.0, h, 1e-9, "last gap runs due north")

	// progress 0.25 sits halfway through the first of two equal-weight gaps
	p, h = PointAt(path, 0.25)
	assert.InDelta(t, 35.25, p.Lat, 1e-12)
	assert.InDelta(t, 139.25, p.Lon, 1e-12)
	assert.InDelta(t, Bearing(path[0], path[1]), h, 1e-12)

	// heading is constant within a gap
	_, h1 := PointAt(path, 0.05)
	_, h2 := PointAt(path, 0.45)
	assert.Equal(t, h1, h2)
}

func TestPointAt_Degenerate(t *testing.T) {
	p, h := PointAt(nil, 0.5)
	assert.Equal(t, Point{}, p)
	assert.Zero(t, h)

	single := []Point{{1, 2}}
	p, _ = PointAt(single, 0.7)
	assert.Equal(t, single[0], p)

	// out-of-range progress is clamped to the path ends
	path := []Point{{0, 0}, {0, 1}}
	p, _ = PointAt(path, 1.5)
	assert.Equal(t, path[1], p)
	p, _ = PointAt(path, -0.5)
	assert.Equal(t, path[0], p)
}

func TestAlongPath(t *testing.T) {
	path := []Point{{0, 0}, {1, 0}, {1, 1}}
	cum := []float64{0, 100, 300}

	p, h := AlongPath(path, cum, 50)
	assert.InDelta(t, 0.5, p.Lat, 1e-12)
	assert.InDelta(t, 0.0, h, 1e-9)

	p, h = AlongPath(path, cum, 200)
	assert.InDelta(t, 1.0, p.Lat, 1e-12)
	assert.InDelta(t, 0.5, p.Lon, 1e-12)
	assert.InDelta(t, Bearing(path[1], path[2]), h, 1e-12)

	p, _ = AlongPath(path, cum, -10)
	assert.Equal(t, path[0], p)
	p, _ = AlongPath(path, cum, 1000)
	assert.Equal(t, path[2], p)
}

func TestAlongPath_ZeroLengthGap(t *testing.T) {
	path := []Point{{0, 0}, {0, 0}, {1, 0}}
	cum := []float64{0, 0, 111}
	p, _ := AlongPath(path, cum, 55.5)
	assert.InDelta(t, 0.5, p.Lat, 1e-12)
}

func TestPathGeoJSON(t *testing.T) {
	path := []Point{{Lat: 35.681, Lon: 139.767}, {Lat: 35.170, Lon: 136.881}}
	data, err := MarshalPath(path)
	if !assert.NoError(t, err) {
		return
	}
	assert.JSONEq(t, `{"type":"LineString","coordinates":[[139.767,35.681],[136.881,35.17]]}`, string(data))

	got, err := UnmarshalPath(data)
	assert.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = UnmarshalPath([]byte(`{"type":"Point","coordinates":[139.767,35.681]}`))
	assert.ErrorIs(t, err, ErrNotLineString)

	_, err = UnmarshalPath([]byte(`not json`))
	assert.Error(t, err)
}
