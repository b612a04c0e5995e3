package domain

// SubscriptionState is the lifecycle state of an alert subscription.
type SubscriptionState string

const (
	// StateActive means the subscription is watching for a threshold crossing.
	StateActive SubscriptionState = "active"
	// StateTriggered means a notification was delivered and further alerts
	// are suppressed until the cooldown elapses.
	StateTriggered SubscriptionState = "triggered"
)

// Subscription pairs a station with a chat and a user-chosen threshold.
// Exactly one row exists per (station, chat). TriggeredAt (epoch ms) and
// TriggeredValue are meaningful only while State is StateTriggered.
type Subscription struct {
	Station        string
	ChatID         int64
	Threshold      float64
	CreatedAt      int64 // epoch seconds
	ThreadID       *int64
	State          SubscriptionState
	TriggeredAt    int64
	TriggeredValue float64
}

// Triggered reports whether the subscription is in the suppressed state.
func (s Subscription) Triggered() bool {
	return s.State == StateTriggered
}
