package catalog

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

const MinutesPerDay = 1440

var clockPattern = regexp.MustCompile(`^(\d{2}):(\d{2})$`)

// ClockTime is a time of day in whole minutes since midnight, written as HH:MM.
type ClockTime int

// ParseClock parses a two-digit HH:MM time of day.
func ParseClock(s string) (ClockTime, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if h > 23 || mm > 59 {
		return 0, fmt.Errorf("invalid clock time %q: out of range", s)
	}
	return ClockTime(h*60 + mm), nil
}

func (c ClockTime) Minutes() float64 { return float64(c) }

func (c ClockTime) String() string { return FormatClock(float64(c)) }

func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// FormatClock renders minutes since midnight as HH:MM. Hours wrap at 24 and
// fractional minutes are dropped.
func FormatClock(minutes float64) string {
	hours := int(math.Floor(minutes/60)) % 24
	if hours < 0 {
		hours += 24
	}
	mins := int(math.Floor(math.Mod(minutes, 60)))
	if mins < 0 {
		mins += 60
	}
	return fmt.Sprintf("%02d:%02d", hours, mins)
}
