package catalog

import (
	"fmt"
	"math"
)

func FormatSpeed(kmh float64) string {
	return fmt.Sprintf("%d km/h", int(math.Round(kmh)))
}

// FormatDistance uses meters below one kilometer and one decimal of km above.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}

func FormatProgress(progress float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(progress*100)))
}
