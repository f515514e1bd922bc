package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/sim"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	nc          *nats.Conn
	conn        Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("hsr-simulator"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := newPublisher(nc, prefix, logSubjects, m)
	p.nc = nc
	return p, nil
}

func newPublisher(conn Conn, prefix string, logSubjects bool, m PublisherMetrics) *NATSPublisher {
	if prefix == "" {
		prefix = "trains"
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logSubjects: logSubjects, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// PositionMessage is the per-train payload on <prefix>.<line>.<service>.
type PositionMessage struct {
	ServiceID     string    `json:"serviceId"`
	LineID        string    `json:"lineId"`
	Timestamp     time.Time `json:"timestamp"`
	SimTime       float64   `json:"simTime"`
	Clock         string    `json:"clock"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	Heading       float64   `json:"heading"`
	Progress      float64   `json:"progress"`
	TotalProgress float64   `json:"totalProgress"`
	SpeedKmh      float64   `json:"speedKmh"`
	Status        string    `json:"status"`
	NextStopID    string    `json:"nextStopId,omitempty"`
}

func NewPositionMessage(snap *sim.Snapshot, p sim.TrainPosition) PositionMessage {
	return PositionMessage{
		ServiceID:     p.ServiceID,
		LineID:        p.LineID,
		Timestamp:     snap.ComputedAt,
		SimTime:       snap.Time,
		Clock:         snap.Clock,
		Lat:           p.Lat,
		Lon:           p.Lon,
		Heading:       p.Heading,
		Progress:      p.Progress,
		TotalProgress: p.TotalProgress,
		SpeedKmh:      p.Speed,
		Status:        string(p.Status),
		NextStopID:    p.NextStopID,
	}
}

// Subject builds the NATS subject for one train.
func (p *NATSPublisher) Subject(lineID, serviceID string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(lineID), subjectToken(serviceID))
}

func (p *NATSPublisher) PublishPosition(msg PositionMessage) error {
	subject := p.Subject(msg.LineID, msg.ServiceID)
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.WithField("subject", subject).Debug("nats publish")
	}
	start := time.Now()
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// Consume publishes one message per train in the snapshot. It satisfies sim.Sink.
func (p *NATSPublisher) Consume(snap *sim.Snapshot) {
	for _, pos := range snap.Sorted() {
		if err := p.PublishPosition(NewPositionMessage(snap, pos)); err != nil {
			log.WithError(err).WithField("service", pos.ServiceID).Warn("publish error")
		}
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
