// Package alerts implements the alert subscription lifecycle: Active rows
// watch a station, a delivered notification moves them to Triggered, and a
// time-based cooldown returns them to Active.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/river-alert-service/internal/domain"
	"github.com/couchcryptid/river-alert-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// MaxSubscriptionsPerChat caps how many subscriptions a chat may hold. The
// cap applies only when creating a new (station, chat) pair; updating an
// existing pair always succeeds.
const MaxSubscriptionsPerChat = 3

// DefaultCooldown is how long a triggered subscription stays suppressed
// before automatic reactivation.
const DefaultCooldown = 24 * time.Hour

// ErrSubscriptionLimit is returned by Subscribe when the chat already holds
// the maximum number of subscriptions. It is a declined operation, not a
// failure.
var ErrSubscriptionLimit = errors.New("subscription limit reached")

// SubscriptionStore is the persistence surface the engine drives.
type SubscriptionStore interface {
	Upsert(ctx context.Context, sub domain.Subscription) error
	Delete(ctx context.Context, station string, chatID int64) (bool, error)
	Exists(ctx context.Context, station string, chatID int64) (bool, error)
	ListForChat(ctx context.Context, chatID int64) ([]domain.Subscription, error)
	ListPendingForStation(ctx context.Context, station string) ([]domain.Subscription, error)
	CountForChat(ctx context.Context, chatID int64, limit int) (int, error)
	MarkTriggered(ctx context.Context, station string, chatID int64, triggeredAt int64, value float64) error
	ReactivateExpired(ctx context.Context, station string, now time.Time, cooldown time.Duration) (int, error)
}

// Sender delivers one notification to one chat. Implementations must not
// retry internally: a failed delivery leaves the subscription Active, and the
// next fetch cycle retries structurally.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, threadID *int64) error
}

// Engine evaluates threshold subscriptions against fresh observations and
// owns every subscription state transition.
type Engine struct {
	store    SubscriptionStore
	sender   Sender
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	cooldown time.Duration
}

// New creates an Engine. A zero cooldown falls back to DefaultCooldown.
func New(store SubscriptionStore, sender Sender, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, cooldown time.Duration) *Engine {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Engine{
		store:    store,
		sender:   sender,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		cooldown: cooldown,
	}
}

// Subscribe creates or updates the subscription for (station, chat). New
// pairs are rejected with ErrSubscriptionLimit once the chat holds
// MaxSubscriptionsPerChat rows; updates to an existing pair bypass the cap
// and reset the subscription to Active with the new threshold.
func (e *Engine) Subscribe(ctx context.Context, station string, chatID int64, threshold float64, threadID *int64) error {
	exists, err := e.store.Exists(ctx, station, chatID)
	if err != nil {
		return fmt.Errorf("subscribe %s/%d: %w", station, chatID, err)
	}
	if !exists {
		count, err := e.store.CountForChat(ctx, chatID, MaxSubscriptionsPerChat)
		if err != nil {
			return fmt.Errorf("subscribe %s/%d: %w", station, chatID, err)
		}
		if count >= MaxSubscriptionsPerChat {
			return ErrSubscriptionLimit
		}
	}

	sub := domain.Subscription{
		Station:   station,
		ChatID:    chatID,
		Threshold: threshold,
		CreatedAt: e.clock.Now().Unix(),
		ThreadID:  threadID,
		State:     domain.StateActive,
	}
	if err := e.store.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("subscribe %s/%d: %w", station, chatID, err)
	}
	return nil
}

// Unsubscribe deletes the subscription and reports whether one existed.
func (e *Engine) Unsubscribe(ctx context.Context, station string, chatID int64) (bool, error) {
	return e.store.Delete(ctx, station, chatID)
}

// ListForChat returns all of a chat's subscriptions for display. Positions in
// the returned slice are stable within one response only.
func (e *Engine) ListForChat(ctx context.Context, chatID int64) ([]domain.Subscription, error) {
	return e.store.ListForChat(ctx, chatID)
}

// Exists reports whether (station, chat) already holds a subscription in
// either state, used by callers to decide whether the cap applies.
func (e *Engine) Exists(ctx context.Context, station string, chatID int64) (bool, error) {
	return e.store.Exists(ctx, station, chatID)
}

// Report summarizes one station's alert evaluation.
type Report struct {
	Reactivated      int
	Delivered        int
	DeliveryFailures int
}

// ProcessStation runs the per-station evaluation after ingestion: reactivate
// expired cooldowns, list pending subscriptions, and deliver a notification
// for each one whose threshold the observation meets. Subscriptions are
// evaluated sequentially so a delivery failure cannot race a MarkTriggered
// for another subscriber's row.
func (e *Engine) ProcessStation(ctx context.Context, obs domain.Observation) (Report, error) {
	var report Report

	if !obs.HasValue() {
		return report, nil
	}

	now := e.clock.Now()

	reactivated, err := e.store.ReactivateExpired(ctx, obs.Name, now, e.cooldown)
	if err != nil {
		return report, fmt.Errorf("reactivate expired for %s: %w", obs.Name, err)
	}
	report.Reactivated = reactivated
	if reactivated > 0 {
		e.metrics.AlertsReactivated.Add(float64(reactivated))
		e.logger.Info("reactivated expired alerts", "station", obs.Name, "count", reactivated)
	}

	pending, err := e.store.ListPendingForStation(ctx, obs.Name)
	if err != nil {
		return report, fmt.Errorf("list pending for %s: %w", obs.Name, err)
	}

	for _, sub := range pending {
		if obs.Value < sub.Threshold {
			continue
		}

		text := domain.FormatAlertMessage(obs, sub.Threshold)
		if err := e.sender.Send(ctx, sub.ChatID, text, sub.ThreadID); err != nil {
			// Leave the row Active: the next cycle retries.
			report.DeliveryFailures++
			e.metrics.AlertsDeliveryFailures.Inc()
			e.logger.Error("alert delivery failed",
				"station", obs.Name,
				"chat_id", sub.ChatID,
				"error", err,
			)
			continue
		}

		triggeredAt := obs.Timestamp
		if triggeredAt <= 0 {
			triggeredAt = now.UnixMilli()
		}
		if err := e.store.MarkTriggered(ctx, obs.Name, sub.ChatID, triggeredAt, obs.Value); err != nil {
			// Delivered but not recorded: the next cycle may deliver again.
			// Accepted at-least-once behavior.
			e.logger.Error("failed to mark alert triggered",
				"station", obs.Name,
				"chat_id", sub.ChatID,
				"error", err,
			)
			continue
		}

		report.Delivered++
		e.metrics.AlertsDelivered.Inc()
		e.logger.Info("alert delivered",
			"station", obs.Name,
			"chat_id", sub.ChatID,
			"threshold", sub.Threshold,
			"value", obs.Value,
		)
	}

	return report, nil
}
