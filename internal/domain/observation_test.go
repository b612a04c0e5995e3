package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnown(t *testing.T) {
	assert.False(t, Known(UnknownValue))
	assert.True(t, Known(0))
	assert.True(t, Known(-2.5))
}

func TestClassify(t *testing.T) {
	thresholds := Thresholds{Yellow: 1.0, Orange: 2.0, Red: 3.0}

	tests := []struct {
		name  string
		value float64
		want  Level
	}{
		{"below yellow", 0.4, LevelGreen},
		{"at yellow", 1.0, LevelGreen},
		{"between yellow and orange", 1.5, LevelYellow},
		{"at orange", 2.0, LevelYellow},
		{"between orange and red", 2.7, LevelOrange},
		{"at red", 3.0, LevelOrange},
		{"above red", 3.1, LevelRed},
		{"unknown value", UnknownValue, LevelUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.value, thresholds))
		})
	}
}

func TestClassify_PartialThresholds(t *testing.T) {
	partial := Thresholds{Yellow: 1.0, Orange: 2.0, Red: UnknownValue}
	assert.Equal(t, LevelUnknown, Classify(1.5, partial))
}

func TestSubscriptionTriggered(t *testing.T) {
	sub := Subscription{State: StateActive}
	assert.False(t, sub.Triggered())
	sub.State = StateTriggered
	assert.True(t, sub.Triggered())
}
