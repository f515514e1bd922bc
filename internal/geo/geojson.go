package geo

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
)

var ErrNotLineString = errors.New("geometry is not a LineString")

// LineString converts a path to a geometry. Coordinates are [lon, lat] as GeoJSON requires.
func LineString(path []Point) *geom.LineString {
	coords := make([]geom.Coord, len(path))
	for i, p := range path {
		coords[i] = geom.Coord{p.Lon, p.Lat}
	}
	return geom.NewLineString(geom.XY).MustSetCoords(coords)
}

func PointGeom(p Point) *geom.Point {
	return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{p.Lon, p.Lat})
}

// MarshalPath encodes a path as a GeoJSON LineString.
func MarshalPath(path []Point) ([]byte, error) {
	return gjson.Marshal(LineString(path))
}

// UnmarshalPath decodes a GeoJSON LineString into a path.
func UnmarshalPath(data []byte) ([]Point, error) {
	var g geom.T
	if err := gjson.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotLineString, g)
	}
	coords := ls.Coords()
	path := make([]Point, len(coords))
	for i, c := range coords {
		path[i] = Point{Lat: c.Y(), Lon: c.X()}
	}
	return path, nil
}
