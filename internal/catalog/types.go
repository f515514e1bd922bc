package catalog

import "hsr-simulator/internal/geo"

// Direction is the traversal sense of a service along its line's station order.
type Direction string

const (
	DirectionDown Direction = "down" // away from the line origin
	DirectionUp   Direction = "up"   // towards the line origin
)

type StationMetadata struct {
	OpenedYear      int `json:"opened_year,omitempty" yaml:"opened_year,omitempty"`
	Platforms       int `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	DailyPassengers int `json:"daily_passengers,omitempty" yaml:"daily_passengers,omitempty"`
}

type Station struct {
	ID       string           `json:"id" yaml:"id" validate:"required"`
	NameEN   string           `json:"name_en" yaml:"name_en" validate:"required"`
	NameJA   string           `json:"name_ja,omitempty" yaml:"name_ja,omitempty"`
	Lat      float64          `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon      float64          `json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
	LineIDs  []string         `json:"line_ids" yaml:"line_ids"`
	Metadata *StationMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (s Station) Point() geo.Point { return geo.Point{Lat: s.Lat, Lon: s.Lon} }

// Line is a physical route. Polyline holds [lat, lon] pairs in path order and is
// usually much denser than the station list.
type Line struct {
	ID         string       `json:"id" yaml:"id" validate:"required"`
	NameEN     string       `json:"name_en" yaml:"name_en" validate:"required"`
	NameJA     string       `json:"name_ja,omitempty" yaml:"name_ja,omitempty"`
	Color      string       `json:"color" yaml:"color" validate:"required,hexcolor"`
	Polyline   [][2]float64 `json:"polyline" yaml:"polyline" validate:"min=2"`
	StationIDs []string     `json:"station_ids_in_order" yaml:"station_ids_in_order"`
}

// Path converts the polyline into points.
func (l Line) Path() []geo.Point {
	pts := make([]geo.Point, len(l.Polyline))
	for i, p := range l.Polyline {
		pts[i] = geo.Point{Lat: p[0], Lon: p[1]}
	}
	return pts
}

type TrainType struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	NameEN      string   `json:"name_en" yaml:"name_en" validate:"required"`
	NameJA      string   `json:"name_ja,omitempty" yaml:"name_ja,omitempty"`
	MaxSpeedKmh float64  `json:"max_speed_kmh" yaml:"max_speed_kmh" validate:"gt=0"`
	LengthM     float64  `json:"length_m" yaml:"length_m" validate:"gt=0"`
	Cars        int      `json:"cars" yaml:"cars" validate:"gt=0"`
	LiveryKey   string   `json:"livery_key" yaml:"livery_key" validate:"required"`
	FactsEN     []string `json:"facts_en" yaml:"facts_en"`
}

type Stop struct {
	StationID string    `json:"station_id" yaml:"station_id" validate:"required"`
	Arrival   ClockTime `json:"arrival" yaml:"arrival"`
	Departure ClockTime `json:"departure" yaml:"departure"`
}

// Service is one scheduled run. Stops are in calling order.
type Service struct {
	ID          string    `json:"id" yaml:"id" validate:"required"`
	LineID      string    `json:"line_id" yaml:"line_id" validate:"required"`
	TrainTypeID string    `json:"train_type_id" yaml:"train_type_id" validate:"required"`
	NameEN      string    `json:"name_en" yaml:"name_en"`
	Direction   Direction `json:"direction" yaml:"direction" validate:"oneof=up down"`
	Stops       []Stop    `json:"stops" yaml:"stops" validate:"min=2,dive"`
}

// FirstDeparture is the departure time of the first stop in minutes since midnight.
func (s Service) FirstDeparture() float64 {
	if len(s.Stops) == 0 {
		return 0
	}
	return s.Stops[0].Departure.Minutes()
}

// LastArrival is the arrival time of the final stop in minutes since midnight.
func (s Service) LastArrival() float64 {
	if len(s.Stops) == 0 {
		return 0
	}
	return s.Stops[len(s.Stops)-1].Arrival.Minutes()
}

func (s Service) Origin() string {
	if len(s.Stops) == 0 {
		return ""
	}
	return s.Stops[0].StationID
}

func (s Service) Destination() string {
	if len(s.Stops) == 0 {
		return ""
	}
	return s.Stops[len(s.Stops)-1].StationID
}
