package api

import (
	"net/http"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/gin-gonic/gin"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"hsr-simulator/internal/sim"
)

const gtfsRealtimeVersion = "2.0"

// VehiclePositionsFeed builds a full-dataset feed of every train that is
// running or standing at a station. Waiting and completed trains are omitted.
func VehiclePositionsFeed(snap *sim.Snapshot) *gtfs.FeedMessage {
	ts := uint64(snap.ComputedAt.Unix())
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(ts),
		},
	}
	for _, p := range snap.Sorted() {
		var status *gtfs.VehiclePosition_VehicleStopStatus
		switch p.Status {
		case sim.StatusRunning:
			status = gtfs.VehiclePosition_IN_TRANSIT_TO.Enum()
		case sim.StatusStopped:
			status = gtfs.VehiclePosition_STOPPED_AT.Enum()
		default:
			continue
		}
		vp := &gtfs.VehiclePosition{
			Trip: &gtfs.TripDescriptor{
				TripId:  proto.String(p.ServiceID),
				RouteId: proto.String(p.LineID),
			},
			Vehicle: &gtfs.VehicleDescriptor{
				Id: proto.String(p.ServiceID),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(float32(p.Lat)),
				Longitude: proto.Float32(float32(p.Lon)),
				Bearing:   proto.Float32(float32(p.Heading)),
				Speed:     proto.Float32(float32(p.Speed / 3.6)), // m/s
			},
			CurrentStatus: status,
			Timestamp:     proto.Uint64(ts),
		}
		if p.NextStopID != "" {
			vp.StopId = proto.String(p.NextStopID)
		}
		feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
			Id:      proto.String(p.ServiceID),
			Vehicle: vp,
		})
	}
	return feed
}

func (s *Server) vehiclePositions(c *gin.Context) {
	feed := VehiclePositionsFeed(s.sim.Snapshot())
	if c.Query("format") == "json" {
		b, err := protojson.Marshal(feed)
		if err != nil {
			abort(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, "application/json", b)
		return
	}
	b, err := proto.Marshal(feed)
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/x-protobuf", b)
}
