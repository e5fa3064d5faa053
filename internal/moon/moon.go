// Package moon computes the lunar phase for a given date.
package moon

import (
	"math"
	"time"
)

// synodicMonth is the mean lunation length in days.
const synodicMonth = 29.530588853

// referenceNewMoon is a known new moon instant (2000-01-06 18:14 UTC).
var referenceNewMoon = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

// Phase describes the moon at one instant. PhaseFraction runs 0..1 from new
// moon through full (0.5) and back; Illumination is the lit disc fraction.
type Phase struct {
	PhaseFraction float64 `json:"phase"`
	Illumination  float64 `json:"illumination"`
	Label         string  `json:"label"`
}

// quarter half-width: how close to an exact quarter the phase must be to get
// the quarter's name instead of the adjacent crescent/gibbous name.
const quarterWindow = 0.02

// At returns the moon phase for t.
func At(t time.Time) Phase {
	days := t.Sub(referenceNewMoon).Hours() / 24
	frac := math.Mod(days/synodicMonth, 1)
	if frac < 0 {
		frac += 1
	}

	return Phase{
		PhaseFraction: frac,
		Illumination:  (1 - math.Cos(2*math.Pi*frac)) / 2,
		Label:         label(frac),
	}
}

func label(frac float64) string {
	switch {
	case frac < quarterWindow || frac > 1-quarterWindow:
		return "New Moon"
	case frac < 0.25-quarterWindow:
		return "Waxing Crescent"
	case frac < 0.25+quarterWindow:
		return "First Quarter"
	case frac < 0.5-quarterWindow:
		return "Waxing Gibbous"
	case frac < 0.5+quarterWindow:
		return "Full Moon"
	case frac < 0.75-quarterWindow:
		return "Waning Gibbous"
	case frac < 0.75+quarterWindow:
		return "Last Quarter"
	default:
		return "Waning Crescent"
	}
}
