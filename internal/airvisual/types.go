package airvisual

import (
	"encoding/json"
	"fmt"

	"github.com/m3rciful/aqibot/internal/aqi"
)

// AirVisual API response types.

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// failMessage extracts the error text of a "fail" payload, where data is either
// {"message": "..."} or a bare string.
func (r response) failMessage() string {
	if len(r.Data) == 0 {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Data, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(r.Data, &s); err == nil {
		return s
	}
	return string(r.Data)
}

type payload struct {
	City    string   `json:"city"`
	State   string   `json:"state"`
	Country string   `json:"country"`
	Current *current `json:"current"`
}

// current mirrors data.current. Pointers tell an absent or null field apart
// from a real zero reading.
type current struct {
	Pollution *struct {
		AQIUS  *int    `json:"aqius"`
		MainUS *string `json:"mainus"`
	} `json:"pollution"`
	Weather *struct {
		TP *float64 `json:"tp"`
	} `json:"weather"`
}

func (p payload) measurement(label string) (aqi.Measurement, error) {
	c := p.Current
	switch {
	case c == nil:
		return aqi.Measurement{}, fmt.Errorf("%w: no current block", ErrInvalidMeasurement)
	case c.Pollution == nil || c.Pollution.AQIUS == nil || c.Pollution.MainUS == nil:
		return aqi.Measurement{}, fmt.Errorf("%w: pollution incomplete", ErrInvalidMeasurement)
	case c.Weather == nil || c.Weather.TP == nil:
		return aqi.Measurement{}, fmt.Errorf("%w: weather incomplete", ErrInvalidMeasurement)
	case *c.Pollution.AQIUS < 0:
		return aqi.Measurement{}, fmt.Errorf("%w: aqius=%d", ErrInvalidMeasurement, *c.Pollution.AQIUS)
	}
	return aqi.Measurement{
		LocationLabel:      label,
		AQI:                *c.Pollution.AQIUS,
		DominantPollutant:  *c.Pollution.MainUS,
		TemperatureCelsius: *c.Weather.TP,
	}, nil
}
