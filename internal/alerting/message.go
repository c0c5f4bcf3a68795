package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/coldchain/coldchain-monitor/internal/domain"
	"github.com/coldchain/coldchain-monitor/internal/escalation"
	"github.com/coldchain/coldchain-monitor/internal/notify"
)

// BuildMessage renders the alert text for one tier. Tiers above the first
// carry an ESCALATION prefix in the subject.
func BuildMessage(sensor domain.Sensor, reading domain.Reading, count int, tier escalation.Tier, incidentID int64) notify.Message {
	subject := fmt.Sprintf("Temperature alert: %s (%s)", sensor.Name, sensor.Location)
	if tier.Level > 1 {
		subject = fmt.Sprintf("ESCALATION L%d: %s", tier.Level, subject)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sensor: %s (#%d)\n", sensor.Name, sensor.ID)
	fmt.Fprintf(&b, "Location: %s\n", sensor.Location)
	fmt.Fprintf(&b, "Temperature: %.1fC (allowed %.1fC to %.1fC)\n", reading.Temperature, sensor.MinTemp, sensor.MaxTemp)
	fmt.Fprintf(&b, "Humidity: %.1f%%\n", reading.Humidity)
	fmt.Fprintf(&b, "Time: %s\n", reading.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Alerts in last 24h: %d\n", count)
	if incidentID > 0 {
		fmt.Fprintf(&b, "Incident: #%d\n", incidentID)
	}

	return notify.Message{
		Subject:  subject,
		Body:     b.String(),
		Severity: tier.Severity,
		Tier:     tier.Level,
		Sensor:   notify.SensorRef{ID: sensor.ID, Name: sensor.Name, Location: sensor.Location},
		Reading: notify.ReadingRef{
			ID:          reading.ID,
			Temperature: reading.Temperature,
			Humidity:    reading.Humidity,
			Timestamp:   reading.Timestamp,
		},
	}
}
