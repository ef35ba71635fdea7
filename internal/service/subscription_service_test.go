package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dialogbot/internal/repository/stubs"
)

func newSubscriptionFixture(t *testing.T) (*SubscriptionService, *time.Time) {
	t.Helper()
	store := stubs.NewMemoryStore()
	svc := NewSubscriptionService(store.Subscriptions)
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestSubscribeActivatesPlan(t *testing.T) {
	ctx := context.Background()
	svc, now := newSubscriptionFixture(t)

	sub, err := svc.Subscribe(ctx, 1, "basic")
	require.NoError(t, err)
	require.Equal(t, "basic", sub.Plan)
	require.Equal(t, *now, sub.StartDate)
	require.Equal(t, now.Add(30*24*time.Hour), sub.EndDate)
	require.NotNil(t, sub.MaxRequests)
	require.Equal(t, 100, *sub.MaxRequests)

	active, err := svc.IsActive(ctx, 1, "basic")
	require.NoError(t, err)
	require.True(t, active)

	// the plan name has to match, holding premium is not holding basic
	active, err = svc.IsActive(ctx, 1, "premium")
	require.NoError(t, err)
	require.False(t, active)
}

func TestSubscriptionExpires(t *testing.T) {
	ctx := context.Background()
	svc, now := newSubscriptionFixture(t)

	_, err := svc.Subscribe(ctx, 1, "basic")
	require.NoError(t, err)

	*now = now.Add(31 * 24 * time.Hour)

	active, err := svc.IsActive(ctx, 1, "basic")
	require.NoError(t, err)
	require.False(t, active)

	sub, err := svc.ActiveForUser(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, sub)
}

func TestSubscribeReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSubscriptionFixture(t)

	_, err := svc.Subscribe(ctx, 1, "basic")
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, 1, "premium")
	require.NoError(t, err)

	subs, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "premium", subs[0].Plan)
	require.True(t, subs[0].HasFeature(FeatureImageGeneration))
}

func TestSubscribeUnknownPlan(t *testing.T) {
	svc, _ := newSubscriptionFixture(t)
	_, err := svc.Subscribe(context.Background(), 1, "platinum")
	require.ErrorIs(t, err, ErrUnknownPlan)
}

func TestRenewExtendsActiveSubscription(t *testing.T) {
	ctx := context.Background()
	svc, now := newSubscriptionFixture(t)

	sub, err := svc.Subscribe(ctx, 1, "basic")
	require.NoError(t, err)
	firstEnd := sub.EndDate

	*now = now.Add(10 * 24 * time.Hour)
	renewed, err := svc.Renew(ctx, 1, "basic", 15)
	require.NoError(t, err)
	require.Equal(t, firstEnd.Add(15*24*time.Hour), renewed.EndDate)
	require.Equal(t, sub.StartDate, renewed.StartDate)
}

func TestRenewRestartsExpiredSubscription(t *testing.T) {
	ctx := context.Background()
	svc, now := newSubscriptionFixture(t)

	_, err := svc.Subscribe(ctx, 1, "basic")
	require.NoError(t, err)

	*now = now.Add(60 * 24 * time.Hour)
	// not an additive extension of the old end date
	renewed, err := svc.Renew(ctx, 1, "basic", 10)
	require.NoError(t, err)
	require.Equal(t, *now, renewed.StartDate)
	require.Equal(t, now.Add(10*24*time.Hour), renewed.EndDate)

	active, err := svc.IsActive(ctx, 1, "basic")
	require.NoError(t, err)
	require.True(t, active)
}

func TestRenewWithoutMatchingSubscription(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSubscriptionFixture(t)

	_, err := svc.Renew(ctx, 1, "basic", 10)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)

	// holding another plan does not count
	_, err = svc.Subscribe(ctx, 1, "premium")
	require.NoError(t, err)
	_, err = svc.Renew(ctx, 1, "basic", 10)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)

	_, err = svc.Renew(ctx, 1, "platinum", 10)
	require.ErrorIs(t, err, ErrUnknownPlan)
}

func TestCancelSubscription(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSubscriptionFixture(t)

	_, err := svc.Subscribe(ctx, 1, "unlimited")
	require.NoError(t, err)

	removed, err := svc.Cancel(ctx, 1)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = svc.Cancel(ctx, 1)
	require.NoError(t, err)
	require.False(t, removed)
}
