package domain

// UnknownValue is the sentinel the sensor network uses for "no value decided
// yet". It stands in for missing readings and missing thresholds alike and is
// stored as-is so records survive round-trips through the typed-number store.
const UnknownValue = -9999.0

// Known reports whether v is a real number rather than the unknown sentinel.
func Known(v float64) bool {
	return v != UnknownValue
}

// Thresholds holds a station's yellow/orange/red reference levels.
// Any of the three may be UnknownValue.
type Thresholds struct {
	Yellow float64
	Orange float64
	Red    float64
}

// Observation is one reading for one station as supplied by the upstream
// feed in a single fetch cycle. Timestamp is epoch milliseconds of the
// reading; Value may be UnknownValue when the sensor reported nothing.
type Observation struct {
	StationID    string
	Name         string
	OrderIndex   int
	Lon          string
	Lat          string
	Thresholds   Thresholds
	Basin        string
	Province     string
	Municipality string
	Timestamp    int64
	Value        float64
}

// HasValue reports whether the observation carries a real reading.
func (o Observation) HasValue() bool {
	return Known(o.Value)
}

// Station is the latest-known-state record persisted per station: the most
// recent reading plus write-once metadata.
type Station struct {
	Name         string
	StationID    string
	OrderIndex   int
	Lon          string
	Lat          string
	Thresholds   Thresholds
	Basin        string
	Province     string
	Municipality string
	Timestamp    int64
	Value        float64
}

// Level classifies a reading against the station thresholds.
type Level int

const (
	LevelUnknown Level = iota // value or thresholds unavailable
	LevelGreen
	LevelYellow
	LevelOrange
	LevelRed
)

// Classify maps a value onto the four-color alert scale. It returns
// LevelUnknown when the value or any threshold is the unknown sentinel,
// mirroring the upstream convention that partial threshold sets are not
// classified.
func Classify(value float64, t Thresholds) Level {
	if !Known(value) || !Known(t.Yellow) || !Known(t.Orange) || !Known(t.Red) {
		return LevelUnknown
	}
	switch {
	case value <= t.Yellow:
		return LevelGreen
	case value <= t.Orange:
		return LevelYellow
	case value <= t.Red:
		return LevelOrange
	default:
		return LevelRed
	}
}

func (l Level) String() string {
	switch l {
	case LevelGreen:
		return "green"
	case LevelYellow:
		return "yellow"
	case LevelOrange:
		return "orange"
	case LevelRed:
		return "red"
	default:
		return "unknown"
	}
}

// Glyph returns the user-facing marker for a level, empty for LevelUnknown.
func (l Level) Glyph() string {
	switch l {
	case LevelGreen:
		return "🟢"
	case LevelYellow:
		return "🟡"
	case LevelOrange:
		return "🟠"
	case LevelRed:
		return "🔴"
	default:
		return ""
	}
}
