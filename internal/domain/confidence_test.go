package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{name: "categorical low", raw: "l", want: 0.3},
		{name: "categorical low word", raw: "low", want: 0.3},
		{name: "categorical nominal", raw: "n", want: 0.6},
		{name: "categorical high", raw: "h", want: 0.9},
		{name: "categorical high upper case", raw: "H", want: 0.9},
		{name: "fraction passes through", raw: "0.85", want: 0.85},
		{name: "zero", raw: "0", want: 0},
		{name: "one", raw: "1", want: 1},
		{name: "percentage scaled", raw: "45", want: 0.45},
		{name: "percentage scaled high", raw: "85", want: 0.85},
		{name: "over one hundred", raw: "150", want: 0.5},
		{name: "negative", raw: "-5", want: 0.5},
		{name: "garbage", raw: "xyz", want: 0.5},
		{name: "empty", raw: "", want: 0.5},
		{name: "whitespace padded", raw: " h ", want: 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizeConfidence(tt.raw), 1e-9)
		})
	}
}

func TestAdjustConfidence(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		powerMW    float64
		want       float64
	}{
		{name: "no bump at low power", confidence: 0.5, powerMW: 50, want: 0.5},
		{name: "no bump at exactly 100", confidence: 0.5, powerMW: 100, want: 0.5},
		{name: "small bump above 100", confidence: 0.5, powerMW: 101, want: 0.55},
		{name: "small bump at exactly 500", confidence: 0.5, powerMW: 500, want: 0.55},
		{name: "large bump above 500", confidence: 0.5, powerMW: 501, want: 0.6},
		{name: "capped", confidence: 0.95, powerMW: 600, want: 0.99},
		{name: "cap exact", confidence: 0.99, powerMW: 600, want: 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AdjustConfidence(tt.confidence, tt.powerMW), 1e-9)
		})
	}
}

func TestClassify(t *testing.T) {
	detections := []Detection{
		{Confidence: 0.75, PowerMW: 600}, // adjusted 0.85, high
		{Confidence: 0.9, PowerMW: 50},   // high on its own
		{Confidence: 0.6, PowerMW: 0},    // moderate lower bound
		{Confidence: 0.7, PowerMW: 150},  // adjusted 0.75, moderate
		{Confidence: 0.3, PowerMW: 0},    // low
		{Confidence: 0.55, PowerMW: 100}, // exactly 100 gets no bump, low
	}

	c := Classify(detections)
	assert.Len(t, c.High, 2)
	assert.Len(t, c.Moderate, 2)
	assert.Len(t, c.Low, 2)
	assert.Equal(t, 6, c.Total())

	assert.InDelta(t, 0.85, c.High[0].Confidence, 1e-9)
	assert.InDelta(t, 0.75, c.Moderate[1].Confidence, 1e-9)

	// Input is not mutated.
	assert.InDelta(t, 0.75, detections[0].Confidence, 1e-9)
}

func TestClassify_Deterministic(t *testing.T) {
	detections := []Detection{
		{Confidence: 0.79, PowerMW: 120},
		{Confidence: 0.81, PowerMW: 0},
	}

	first := Classify(detections)
	second := Classify(detections)
	assert.Equal(t, first, second)
}

func TestClassify_Empty(t *testing.T) {
	c := Classify(nil)
	assert.Equal(t, 0, c.Total())
	assert.Empty(t, c.High)
	assert.Empty(t, c.Moderate)
	assert.Empty(t, c.Low)
}
