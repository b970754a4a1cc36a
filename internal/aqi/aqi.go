// Package aqi maps US AQI values to severity tiers and renders air-quality reports.
package aqi

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned for AQI values outside the documented domain (negative values).
var ErrOutOfRange = errors.New("aqi: value out of range")

// Tier is one of the six fixed AQI severity bands, ordered from best to worst.
type Tier int

const (
	Good Tier = iota
	Moderate
	UnhealthyForSensitive
	Unhealthy
	VeryUnhealthy
	Hazardous
)

type band struct {
	upper    int
	label    string
	icon     string
	advisory string
}

// bands are evaluated in order; the last band has no upper bound.
var bands = [...]band{
	Good:                  {50, "Good", "🟢", "Air quality is satisfactory."},
	Moderate:              {100, "Moderate", "🟡", "Sensitive individuals should limit outdoor activity."},
	UnhealthyForSensitive: {150, "Unhealthy for Sensitive Groups", "🟠", "Sensitive groups may experience health effects."},
	Unhealthy:             {200, "Unhealthy", "🔴", "Everyone may begin to experience health effects."},
	VeryUnhealthy:         {300, "Very Unhealthy", "🟣", "Health warnings of emergency conditions."},
	Hazardous:             {-1, "Hazardous", "🟤", "Health alert: avoid all outdoor exertion."},
}

// Classify returns the tier for a US AQI value. Negative values yield ErrOutOfRange.
func Classify(value int) (Tier, error) {
	if value < 0 {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, value)
	}
	for i, b := range bands {
		if b.upper >= 0 && value <= b.upper {
			return Tier(i), nil
		}
	}
	return Hazardous, nil
}

// Label returns the human-readable tier name.
func (t Tier) Label() string {
	if !t.valid() {
		return "Unknown"
	}
	return bands[t].label
}

// Icon returns the colour marker shown next to the label.
func (t Tier) Icon() string {
	if !t.valid() {
		return "⚪"
	}
	return bands[t].icon
}

// Advisory returns the health advice for the tier.
func (t Tier) Advisory() string {
	if !t.valid() {
		return ""
	}
	return bands[t].advisory
}

// String implements fmt.Stringer.
func (t Tier) String() string {
	return t.Label()
}

func (t Tier) valid() bool {
	return t >= Good && t <= Hazardous
}

// Measurement is a single air-quality reading returned by the upstream API.
type Measurement struct {
	LocationLabel      string
	AQI                int
	DominantPollutant  string
	TemperatureCelsius float64
}
