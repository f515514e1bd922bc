package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"hsr-simulator/internal/catalog"
)

// Speed is the simulation multiplier: simulated minutes per wall-clock minute.
type Speed int

const (
	SpeedRealtime Speed = 1
	SpeedFast     Speed = 10
	SpeedFastest  Speed = 60
)

var ErrInvalidSpeed = errors.New("speed must be 1, 10 or 60")

// ParseSpeed accepts only the fixed multipliers.
func ParseSpeed(n int) (Speed, error) {
	switch s := Speed(n); s {
	case SpeedRealtime, SpeedFast, SpeedFastest:
		return s, nil
	}
	return 0, fmt.Errorf("%w: got %d", ErrInvalidSpeed, n)
}

// State is the simulation clock: a time of day in minutes plus play controls.
type State struct {
	Time    float64 `json:"time"`
	Playing bool    `json:"playing"`
	Speed   Speed   `json:"speed"`
}

// Tick advances the clock by elapsed wall time scaled by Speed. A paused
// state is returned unchanged.
func (s State) Tick(elapsed time.Duration) State {
	if !s.Playing || elapsed <= 0 {
		return s
	}
	s.Time = NormalizeTime(s.Time + elapsed.Minutes()*float64(s.Speed))
	return s
}

// Clock renders the current time as HH:MM.
func (s State) Clock() string { return catalog.FormatClock(s.Time) }

// NormalizeTime wraps minutes into [0, 1440).
func NormalizeTime(minutes float64) float64 {
	m := math.Mod(minutes, catalog.MinutesPerDay)
	if m < 0 {
		m += catalog.MinutesPerDay
	}
	if m >= catalog.MinutesPerDay {
		m = 0
	}
	return m
}
