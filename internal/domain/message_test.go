package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAlertMessage(t *testing.T) {
	obs := Observation{
		Name:       "Cesena",
		Value:      2.7,
		Timestamp:  1726667100000, // 18-09-2024 15:45 Europe/Rome
		Thresholds: Thresholds{Yellow: 1.0, Orange: 2.0, Red: 3.0},
	}

	msg := FormatAlertMessage(obs, 2.5)

	assert.Contains(t, msg, "Avviso soglia: Cesena ha raggiunto 2.70 (soglia 2.50).")
	assert.Contains(t, msg, "🟠")
	assert.Contains(t, msg, "Ultimo rilevamento: 18-09-2024 15:45")
}

func TestFormatAlertMessage_NoThresholds(t *testing.T) {
	obs := Observation{
		Name:       "Ponte Verucchio",
		Value:      1.2,
		Thresholds: Thresholds{Yellow: UnknownValue, Orange: UnknownValue, Red: UnknownValue},
	}

	msg := FormatAlertMessage(obs, 1.0)

	assert.Contains(t, msg, "ha raggiunto 1.20 (soglia 1.00).")
	assert.NotContains(t, msg, "🟢")
	assert.Contains(t, msg, "non disponibile")
}

func TestFormatTimestamp_Absent(t *testing.T) {
	assert.Equal(t, "non disponibile", FormatTimestamp(0))
}
