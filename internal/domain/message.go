package domain

import (
	"fmt"
	"strings"
	"time"
)

// displayZone is the timezone readings are rendered in for users. The sensor
// network and its audience are in Emilia-Romagna.
var displayZone = loadDisplayZone()

func loadDisplayZone() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatAlertMessage builds the notification text delivered when a station
// reading crosses a subscription threshold.
func FormatAlertMessage(obs Observation, threshold float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Avviso soglia: %s ha raggiunto %.2f (soglia %.2f).", obs.Name, obs.Value, threshold)
	if glyph := Classify(obs.Value, obs.Thresholds).Glyph(); glyph != "" {
		b.WriteString(" ")
		b.WriteString(glyph)
	}
	b.WriteString("\nUltimo rilevamento: ")
	b.WriteString(FormatTimestamp(obs.Timestamp))
	return b.String()
}

// FormatTimestamp renders an epoch-millisecond reading time in the display
// timezone, or "non disponibile" when the timestamp is absent.
func FormatTimestamp(millis int64) string {
	if millis <= 0 {
		return "non disponibile"
	}
	return time.UnixMilli(millis).In(displayZone).Format("02-01-2006 15:04")
}
