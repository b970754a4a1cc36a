package aqi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/aqibot/core/telegram/format"
)

var pollutantNames = map[string]string{
	"p1": "PM10",
	"p2": "PM2.5",
	"o3": "Ozone (O3)",
	"n2": "Nitrogen dioxide (NO2)",
	"s2": "Sulfur dioxide (SO2)",
	"co": "Carbon monoxide (CO)",
}

// PollutantName expands an IQAir pollutant code. Unknown codes are returned unchanged.
func PollutantName(code string) string {
	if name, ok := pollutantNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

// Format renders a measurement and its tier as a Markdown report:
// location, index with tier, dominant pollutant, temperature, advisory.
func Format(m Measurement, t Tier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s Air Quality* 💨\n\n", format.MD(m.LocationLabel))
	fmt.Fprintf(&b, "*Current AQI (US):* %d - %s %s\n", m.AQI, t.Icon(), t.Label())
	fmt.Fprintf(&b, "*Main Pollutant:* %s\n", format.MD(PollutantName(m.DominantPollutant)))
	fmt.Fprintf(&b, "*Temperature:* %s°C\n\n", strconv.FormatFloat(m.TemperatureCelsius, 'f', -1, 64))
	fmt.Fprintf(&b, "ℹ️ _%s_", t.Advisory())
	return b.String()
}
