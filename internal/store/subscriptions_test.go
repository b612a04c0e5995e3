package store

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/river-alert-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSubscription(station string, chatID int64) domain.Subscription {
	return domain.Subscription{
		Station:   station,
		ChatID:    chatID,
		Threshold: 2.0,
		CreatedAt: 1700000000,
	}
}

func TestUpsertAndListForChat(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()

	first := testSubscription("Cesena", 1)
	first.CreatedAt = 100
	second := testSubscription("Ravenna", 1)
	second.CreatedAt = 200
	threadID := int64(77)
	second.ThreadID = &threadID

	require.NoError(t, subs.Upsert(ctx, first))
	require.NoError(t, subs.Upsert(ctx, second))

	got, err := subs.ListForChat(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Cesena", got[0].Station)
	assert.Equal(t, "Ravenna", got[1].Station)
	assert.Equal(t, domain.StateActive, got[0].State)
	require.NotNil(t, got[1].ThreadID)
	assert.Equal(t, int64(77), *got[1].ThreadID)

	other, err := subs.ListForChat(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUpsert_ResetsTriggeredState(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()

	sub := testSubscription("Cesena", 1)
	require.NoError(t, subs.Upsert(ctx, sub))
	require.NoError(t, subs.MarkTriggered(ctx, "Cesena", 1, 12345, 2.5))

	// Re-subscribing replaces the threshold and clears the cooldown.
	sub.Threshold = 4.0
	require.NoError(t, subs.Upsert(ctx, sub))

	got, err := subs.ListForChat(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.StateActive, got[0].State)
	assert.Equal(t, 4.0, got[0].Threshold)
	assert.Zero(t, got[0].TriggeredAt)
	assert.Zero(t, got[0].TriggeredValue)
}

func TestUpsert_ClearsThreadID(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()

	threadID := int64(5)
	sub := testSubscription("Cesena", 1)
	sub.ThreadID = &threadID
	require.NoError(t, subs.Upsert(ctx, sub))

	sub.ThreadID = nil
	require.NoError(t, subs.Upsert(ctx, sub))

	got, err := subs.ListForChat(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].ThreadID)
}

func TestDelete_Idempotent(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()

	require.NoError(t, subs.Upsert(ctx, testSubscription("Cesena", 1)))

	existed, err := subs.Delete(ctx, "Cesena", 1)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = subs.Delete(ctx, "Cesena", 1)
	require.NoError(t, err)
	assert.False(t, existed)

	// Index entries are gone too.
	pending, err := subs.ListPendingForStation(ctx, "Cesena")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExists(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()

	ok, err := subs.Exists(ctx, "Cesena", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, subs.Upsert(ctx, testSubscription("Cesena", 1)))

	ok, err = subs.Exists(ctx, "Cesena", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Triggered rows still exist.
	require.NoError(t, subs.MarkTriggered(ctx, "Cesena", 1, 12345, 2.5))
	ok, err = subs.Exists(ctx, "Cesena", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListPendingForStation_FiltersTriggered(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()

	require.NoError(t, subs.Upsert(ctx, testSubscription("Cesena", 1)))
	require.NoError(t, subs.Upsert(ctx, testSubscription("Cesena", 2)))
	require.NoError(t, subs.MarkTriggered(ctx, "Cesena", 2, 12345, 2.5))

	pending, err := subs.ListPendingForStation(ctx, "Cesena")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].ChatID)
}

func TestCountForChat_Bounded(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()

	count, err := subs.CountForChat(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for _, station := range []string{"A", "B"} {
		require.NoError(t, subs.Upsert(ctx, testSubscription(station, 1)))
	}

	count, err = subs.CountForChat(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, station := range []string{"C", "D", "E"} {
		require.NoError(t, subs.Upsert(ctx, testSubscription(station, 1)))
	}

	// Capped at the limit even though five rows exist.
	count, err = subs.CountForChat(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMarkTriggered_RecordsFields(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()

	require.NoError(t, subs.Upsert(ctx, testSubscription("Cesena", 1)))
	require.NoError(t, subs.MarkTriggered(ctx, "Cesena", 1, 1726667100000, 2.5))

	got, err := subs.ListForChat(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.StateTriggered, got[0].State)
	assert.Equal(t, int64(1726667100000), got[0].TriggeredAt)
	assert.Equal(t, 2.5, got[0].TriggeredValue)
}

func TestReactivateExpired(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()
	now := time.UnixMilli(1726667100000)
	cooldown := 24 * time.Hour

	// Expired: triggered one second past the cooldown window.
	require.NoError(t, subs.Upsert(ctx, testSubscription("Cesena", 1)))
	require.NoError(t, subs.MarkTriggered(ctx, "Cesena", 1, now.Add(-cooldown-time.Second).UnixMilli(), 2.5))

	// Still cooling down.
	require.NoError(t, subs.Upsert(ctx, testSubscription("Cesena", 2)))
	require.NoError(t, subs.MarkTriggered(ctx, "Cesena", 2, now.Add(-time.Hour).UnixMilli(), 2.5))

	// Active rows are untouched.
	require.NoError(t, subs.Upsert(ctx, testSubscription("Cesena", 3)))

	reactivated, err := subs.ReactivateExpired(ctx, "Cesena", now, cooldown)
	require.NoError(t, err)
	assert.Equal(t, 1, reactivated)

	got, err := subs.ListForChat(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.StateActive, got[0].State)
	assert.Zero(t, got[0].TriggeredAt)

	still, err := subs.ListForChat(ctx, 2)
	require.NoError(t, err)
	require.Len(t, still, 1)
	assert.Equal(t, domain.StateTriggered, still[0].State)

	// Second pass is a no-op.
	reactivated, err = subs.ReactivateExpired(ctx, "Cesena", now, cooldown)
	require.NoError(t, err)
	assert.Equal(t, 0, reactivated)
}

func TestReactivateExpired_ExactBoundary(t *testing.T) {
	subs := NewSubscriptions(newTestClient(t))
	ctx := context.Background()
	now := time.UnixMilli(1726667100000)
	cooldown := 24 * time.Hour

	require.NoError(t, subs.Upsert(ctx, testSubscription("Cesena", 1)))
	require.NoError(t, subs.MarkTriggered(ctx, "Cesena", 1, now.Add(-cooldown).UnixMilli(), 2.5))

	// now - triggered_at == cooldown reactivates.
	reactivated, err := subs.ReactivateExpired(ctx, "Cesena", now, cooldown)
	require.NoError(t, err)
	assert.Equal(t, 1, reactivated)
}
