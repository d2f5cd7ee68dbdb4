package detector

import (
	"math"

	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
)

// Thresholds are the lower bounds, in percent, of each magnitude tier.
type Thresholds struct {
	Significant float64
	Major       float64
	Anomaly     float64
}

// DefaultThresholds returns the 15/25/50 tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Significant: conf.DefaultSignificant,
		Major:       conf.DefaultMajor,
		Anomaly:     conf.DefaultAnomaly,
	}
}

// ThresholdsFromSettings converts detection settings.
func ThresholdsFromSettings(s *conf.DetectionSettings) Thresholds {
	return Thresholds{Significant: s.Significant, Major: s.Major, Anomaly: s.Anomaly}
}

// PercentChange returns (current-previous)/previous*100. ok is false when
// previous is not positive, where the change is undefined.
func PercentChange(previous, current int) (pct float64, ok bool) {
	if previous <= 0 {
		return 0, false
	}
	return float64(current-previous) / float64(previous) * 100, true
}

// Classify maps a signed percentage change to its tier using |pct|.
// Lower bounds are inclusive.
func (t Thresholds) Classify(pct float64) datastore.Magnitude {
	abs := math.Abs(pct)
	switch {
	case abs >= t.Anomaly:
		return datastore.MagnitudeAnomaly
	case abs >= t.Major:
		return datastore.MagnitudeMajor
	case abs >= t.Significant:
		return datastore.MagnitudeSignificant
	default:
		return datastore.MagnitudeNone
	}
}

// round2 rounds to two decimals for storage and display.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func direction(pct float64) string {
	if pct > 0 {
		return datastore.DirectionIncrease
	}
	return datastore.DirectionDecrease
}
