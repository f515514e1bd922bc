// Package catalog holds the static reference data the simulator runs on:
// stations, lines, train types and the service timetable.
package catalog

import "sort"

// Catalog is immutable once built; lookups are safe for concurrent use.
type Catalog struct {
	Stations   []Station
	Lines      []Line
	TrainTypes []TrainType
	Services   []Service

	stationByID   map[string]int
	lineByID      map[string]int
	trainTypeByID map[string]int
	serviceByID   map[string]int
}

// New indexes the given records. Later duplicates shadow earlier ones in lookups;
// Validate reports duplicates.
func New(stations []Station, lines []Line, trainTypes []TrainType, services []Service) *Catalog {
	c := &Catalog{
		Stations:      stations,
		Lines:         lines,
		TrainTypes:    trainTypes,
		Services:      services,
		stationByID:   make(map[string]int, len(stations)),
		lineByID:      make(map[string]int, len(lines)),
		trainTypeByID: make(map[string]int, len(trainTypes)),
		serviceByID:   make(map[string]int, len(services)),
	}
	for i, s := range stations {
		c.stationByID[s.ID] = i
	}
	for i, l := range lines {
		c.lineByID[l.ID] = i
	}
	for i, t := range trainTypes {
		c.trainTypeByID[t.ID] = i
	}
	for i, s := range services {
		c.serviceByID[s.ID] = i
	}
	return c
}

func (c *Catalog) Station(id string) (Station, bool) {
	i, ok := c.stationByID[id]
	if !ok {
		return Station{}, false
	}
	return c.Stations[i], true
}

func (c *Catalog) Line(id string) (Line, bool) {
	i, ok := c.lineByID[id]
	if !ok {
		return Line{}, false
	}
	return c.Lines[i], true
}

func (c *Catalog) TrainType(id string) (TrainType, bool) {
	i, ok := c.trainTypeByID[id]
	if !ok {
		return TrainType{}, false
	}
	return c.TrainTypes[i], true
}

func (c *Catalog) Service(id string) (Service, bool) {
	i, ok := c.serviceByID[id]
	if !ok {
		return Service{}, false
	}
	return c.Services[i], true
}

// StationMap returns a copy of the station index keyed by id.
func (c *Catalog) StationMap() map[string]Station {
	out := make(map[string]Station, len(c.Stations))
	for _, s := range c.Stations {
		out[s.ID] = s
	}
	return out
}

// Call is one service stopping at a station.
type Call struct {
	ServiceID string
	LineID    string
	NameEN    string
	Direction Direction
	Stop      Stop
}

// CallsAt lists every scheduled stop at stationID ordered by departure time.
func (c *Catalog) CallsAt(stationID string) []Call {
	var calls []Call
	for _, svc := range c.Services {
		for _, st := range svc.Stops {
			if st.StationID != stationID {
				continue
			}
			calls = append(calls, Call{
				ServiceID: svc.ID,
				LineID:    svc.LineID,
				NameEN:    svc.NameEN,
				Direction: svc.Direction,
				Stop:      st,
			})
		}
	}
	sort.SliceStable(calls, func(i, j int) bool {
		if calls[i].Stop.Departure != calls[j].Stop.Departure {
			return calls[i].Stop.Departure < calls[j].Stop.Departure
		}
		return calls[i].ServiceID < calls[j].ServiceID
	})
	return calls
}
