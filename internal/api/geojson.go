package api

import (
	"errors"
	"net/http"

	"github.com/bluele/gcache"
	"github.com/gin-gonic/gin"
	gjson "github.com/twpayne/go-geom/encoding/geojson"

	"hsr-simulator/internal/geo"
)

var errUnknownLine = errors.New("unknown line")

// lineGeoJSON renders a line and its stations as a FeatureCollection.
// Results are cached by line id; the catalog never changes at runtime.
func (s *Server) lineGeoJSON(id string) (*gjson.FeatureCollection, error) {
	cat := s.sim.Catalog()
	line, ok := cat.Line(id)
	if !ok {
		return nil, errUnknownLine
	}
	fc := &gjson.FeatureCollection{}
	fc.Features = append(fc.Features, &gjson.Feature{
		ID:       line.ID,
		Geometry: geo.LineString(line.Path()),
		Properties: map[string]interface{}{
			"kind":    "line",
			"name_en": line.NameEN,
			"name_ja": line.NameJA,
			"color":   line.Color,
		},
	})
	for _, sid := range line.StationIDs {
		st, ok := cat.Station(sid)
		if !ok {
			continue
		}
		fc.Features = append(fc.Features, &gjson.Feature{
			ID:       st.ID,
			Geometry: geo.PointGeom(st.Point()),
			Properties: map[string]interface{}{
				"kind":    "station",
				"name_en": st.NameEN,
				"name_ja": st.NameJA,
			},
		})
	}
	return fc, nil
}

func (s *Server) lineGeoJSONHandler(c *gin.Context) {
	v, err := s.geojson.Get(c.Param("id"))
	switch {
	case errors.Is(err, errUnknownLine):
		abort(c, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, gcache.KeyNotFoundError):
		abort(c, http.StatusNotFound, "unknown line")
		return
	case err != nil:
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, v.(*gjson.FeatureCollection))
}
