package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var ErrMalformedTelemetry = errors.New("malformed telemetry payload")

var digits = regexp.MustCompile(`\d+`)

// Telemetry is the JSON body devices publish on their telemetry topic.
type Telemetry struct {
	Temperature float64
	Humidity    float64
}

// SensorIDFromTopic returns the first integer embedded in topic, or
// fallback when there is none.
func SensorIDFromTopic(topic string, fallback int64) int64 {
	m := digits.FindString(topic)
	if m == "" {
		return fallback
	}
	id, err := strconv.ParseInt(m, 10, 64)
	if err != nil || id < 1 {
		return fallback
	}
	return id
}

// DecodeTelemetry parses a {"temperature":..,"humidity":..} body. Both
// fields are required.
func DecodeTelemetry(payload []byte) (Telemetry, error) {
	var raw struct {
		Temperature *float64 `json:"temperature"`
		Humidity    *float64 `json:"humidity"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Telemetry{}, fmt.Errorf("%w: %v", ErrMalformedTelemetry, err)
	}
	if raw.Temperature == nil || raw.Humidity == nil {
		return Telemetry{}, fmt.Errorf("%w: temperature and humidity are required", ErrMalformedTelemetry)
	}
	return Telemetry{Temperature: *raw.Temperature, Humidity: *raw.Humidity}, nil
}
