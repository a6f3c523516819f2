package summary

import (
	"fmt"
	"strings"
)

// VitalsWindow bounds how many readings reach the prompt. Telemetry is dense;
// the action timeline is sparse and always sent whole.
const VitalsWindow = 5

const (
	notAvailable = "N/A"
	unknown      = "Unknown"
	unknownTime  = "Unknown time"
)

// RecentVitals returns the last VitalsWindow readings by position. The caller
// owns ordering; nothing is re-sorted.
func RecentVitals(vitals []VitalReading) []VitalReading {
	if len(vitals) <= VitalsWindow {
		return vitals
	}
	return vitals[len(vitals)-VitalsWindow:]
}

// RenderVitals formats the recent window. An empty input yields "" so the
// section header is omitted.
func RenderVitals(vitals []VitalReading) string {
	recent := RecentVitals(vitals)
	if len(recent) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("VITAL SIGNS DATA:\n")
	for i, v := range recent {
		fmt.Fprintf(&b, "Reading %d (%s):\n", i+1, v.Timestamp.Or(unknownTime))
		fmt.Fprintf(&b, "  - Heart Rate: %s BPM\n", v.HeartRate.Or(notAvailable))
		fmt.Fprintf(&b, "  - Blood Pressure: %s/%s mmHg\n", v.BPSystolic.Or(notAvailable), v.BPDiastolic.Or(notAvailable))
		fmt.Fprintf(&b, "  - SpO2: %s%%\n", v.OxygenSaturation.Or(notAvailable))
		fmt.Fprintf(&b, "  - Respiratory Rate: %s/min\n", v.RespiratoryRate.Or(notAvailable))
		fmt.Fprintf(&b, "  - Temperature: %s°F\n", v.Temperature.Or(notAvailable))
		fmt.Fprintf(&b, "  - Source: %s\n\n", v.Source.Or(notAvailable))
	}
	return b.String()
}

// RenderTimeline formats every action in input order.
func RenderTimeline(actions []Action) string {
	if len(actions) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("PARAMEDIC ACTIONS:\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s: %s\n", a.Timestamp.Or(unknownTime), a.Action.Or("Unknown action"))
		fmt.Fprintf(&b, "  Type: %s\n", a.ActionType.Or(unknown))
		fmt.Fprintf(&b, "  Details: %s\n", a.Details.Or("No details"))
		fmt.Fprintf(&b, "  Source: %s\n\n", a.Source.Or(unknown))
	}
	return b.String()
}
