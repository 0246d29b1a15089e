package domain

import (
	"strconv"
	"strings"
)

// Confidence tier thresholds on adjusted confidence.
const (
	highTier     = 0.8
	moderateTier = 0.6
	adjustCap    = 0.99
)

// NormalizeConfidence collapses the feed's mixed confidence encodings to a
// float in [0,1]. VIIRS reports categorical strings, MODIS percentages;
// anything unrecognized lands on 0.5.
func NormalizeConfidence(raw string) float64 {
	raw = strings.TrimSpace(raw)

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		switch strings.ToLower(raw) {
		case "l", "low":
			return 0.3
		case "n", "nominal":
			return 0.6
		case "h", "high":
			return 0.9
		default:
			return 0.5
		}
	}

	switch {
	case v >= 0 && v <= 1:
		return v
	case v > 1 && v <= 100:
		return v / 100.0
	default:
		return 0.5
	}
}

// AdjustConfidence applies the radiative-power bump: detections backed by
// high FRP are more trustworthy. The result is capped at 0.99 so synthetic
// certainty never reaches 1.0.
func AdjustConfidence(confidence, powerMW float64) float64 {
	switch {
	case powerMW > 500:
		confidence += 0.1
	case powerMW > 100:
		confidence += 0.05
	}
	if confidence > adjustCap {
		return adjustCap
	}
	return confidence
}

// Classification holds detections bucketed by adjusted confidence tier.
type Classification struct {
	High     []Detection `json:"high_confidence"`
	Moderate []Detection `json:"moderate_confidence"`
	Low      []Detection `json:"low_confidence"`
}

// Total returns the number of detections across all tiers.
func (c Classification) Total() int {
	return len(c.High) + len(c.Moderate) + len(c.Low)
}

// Classify buckets detections into high (>=0.8), moderate ([0.6,0.8)), and
// low (<0.6) tiers by adjusted confidence. Pure function: the input slice is
// not mutated and the same input always yields the same buckets.
func Classify(detections []Detection) Classification {
	var c Classification
	for _, d := range detections {
		d.Confidence = AdjustConfidence(d.Confidence, d.PowerMW)
		switch {
		case d.Confidence >= highTier:
			c.High = append(c.High, d)
		case d.Confidence >= moderateTier:
			c.Moderate = append(c.Moderate, d)
		default:
			c.Low = append(c.Low, d)
		}
	}
	return c
}
