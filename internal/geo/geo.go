package geo

import (
	"math"
	"sort"
)

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func toRad(d float64) float64 { return d * math.Pi / 180 }

// Haversine returns the great-circle distance in kilometers.
func Haversine(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// Bearing returns the initial bearing (forward azimuth) from a to b in degrees [0,360).
func Bearing(a, b Point) float64 {
	dLon := toRad(b.Lon - a.Lon)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	brng := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(brng+360, 360)
}

// Reverse turns a heading around by 180 degrees.
func Reverse(heading float64) float64 {
	return math.Mod(heading+180, 360)
}

// Lerp interpolates linearly in latitude/longitude space.
func Lerp(a, b Point, f float64) Point {
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lon: a.Lon + (b.Lon-a.Lon)*f,
	}
}

// PointAt maps a fraction of the path to a coordinate and heading, treating each
// of the len(path)-1 vertex gaps as an equal share regardless of its real length.
// The heading is the bearing of the gap the point falls in.
func PointAt(path []Point, progress float64) (Point, float64) {
	n := len(path)
	if n == 0 {
		return Point{}, 0
	}
	if n == 1 {
		return path[0], 0
	}
	progress = math.Max(0, math.Min(1, progress))
	exact := progress * float64(n-1)
	idx := int(math.Floor(exact))
	if idx > n-2 {
		idx = n - 2
	}
	frac := exact - float64(idx)
	p1, p2 := path[idx], path[idx+1]
	return Lerp(p1, p2, frac), Bearing(p1, p2)
}

// AlongPath interpolates by distance (km) using the cumulative table cum, which
// must have one entry per path vertex.
func AlongPath(path []Point, cum []float64, dist float64) (Point, float64) {
	n := len(path)
	if n == 0 {
		return Point{}, 0
	}
	if n == 1 || len(cum) != n {
		return path[0], 0
	}
	if dist <= 0 {
		return path[0], Bearing(path[0], path[1])
	}
	if dist >= cum[n-1] {
		return path[n-1], Bearing(path[n-2], path[n-1])
	}
	i := sort.SearchFloat64s(cum, dist)
	if i == 0 {
		i = 1
	}
	d0, d1 := cum[i-1], cum[i]
	p0, p1 := path[i-1], path[i]
	if d1 == d0 {
		return p0, Bearing(p0, p1)
	}
	return Lerp(p0, p1, (dist-d0)/(d1-d0)), Bearing(p0, p1)
}
