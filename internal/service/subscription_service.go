package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialogbot/internal/models"
	"dialogbot/internal/repository"
)

var ErrUnknownPlan = errors.New("unknown subscription plan")
var ErrSubscriptionNotFound = errors.New("subscription not found")

const (
	FeatureBasicModel      = "basic_model"
	FeaturePremiumModel    = "premium_model"
	FeatureImageGeneration = "image_generation"
	FeaturePrioritySupport = "priority_support"
)

// Plan describes what a paid tier grants: how long it lasts, how many
// generations it covers and which features it unlocks. MaxRequests nil
// means unmetered.
type Plan struct {
	Name            string
	Duration        time.Duration
	PriceMinorUnits int64
	MaxRequests     *int
	Features        []string
}

func intPtr(v int) *int { return &v }

var plans = map[string]Plan{
	"basic": {
		Name:            "basic",
		Duration:        30 * 24 * time.Hour,
		PriceMinorUnits: 29900,
		MaxRequests:     intPtr(100),
		Features:        []string{FeatureBasicModel},
	},
	"premium": {
		Name:            "premium",
		Duration:        90 * 24 * time.Hour,
		PriceMinorUnits: 79900,
		MaxRequests:     intPtr(500),
		Features:        []string{FeatureBasicModel, FeaturePremiumModel, FeatureImageGeneration},
	},
	"unlimited": {
		Name:            "unlimited",
		Duration:        365 * 24 * time.Hour,
		PriceMinorUnits: 199900,
		Features:        []string{FeatureBasicModel, FeaturePremiumModel, FeatureImageGeneration, FeaturePrioritySupport},
	},
}

// PlanByName returns the tier definition for a plan name.
func PlanByName(name string) (Plan, bool) {
	plan, ok := plans[name]
	return plan, ok
}

// PlanNames returns the known tiers in ascending order of scope.
func PlanNames() []string {
	return []string{"basic", "premium", "unlimited"}
}

type SubscriptionService struct {
	subscriptions repository.SubscriptionStore
	now           func() time.Time
}

func NewSubscriptionService(subscriptions repository.SubscriptionStore) *SubscriptionService {
	return &SubscriptionService{subscriptions: subscriptions, now: time.Now}
}

// Subscribe grants the user the named plan starting now. A user holds at
// most one subscription row: subscribing again replaces the previous one
// atomically, whatever its plan or state.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID int64, planName string) (*models.Subscription, error) {
	plan, ok := plans[planName]
	if !ok {
		return nil, ErrUnknownPlan
	}
	start := s.now()
	sub := &models.Subscription{
		UserID:      userID,
		Plan:        plan.Name,
		StartDate:   start,
		EndDate:     start.Add(plan.Duration),
		MaxRequests: plan.MaxRequests,
		Features:    plan.Features,
	}
	created, err := s.subscriptions.Replace(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("replace subscription: %w", err)
	}
	return created, nil
}

// IsActive reports whether the user currently holds the named plan. It is
// true only when the stored plan matches and the period covers now; an
// active "premium" subscription does not answer true for "basic".
func (s *SubscriptionService) IsActive(ctx context.Context, userID int64, planName string) (bool, error) {
	sub, err := s.subscriptions.FindByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("find subscription: %w", err)
	}
	if sub == nil {
		return false, nil
	}
	return sub.Plan == planName && sub.ActiveAt(s.now()), nil
}

// ActiveForUser returns the user's subscription if its period covers now,
// nil otherwise.
func (s *SubscriptionService) ActiveForUser(ctx context.Context, userID int64) (*models.Subscription, error) {
	sub, err := s.subscriptions.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	if sub == nil || !sub.ActiveAt(s.now()) {
		return nil, nil
	}
	return sub, nil
}

// Renew extends the user's subscription to the named plan by extraDays. An
// active subscription keeps its start and gains the days on top of its end
// date; an expired one restarts from now. Without a subscription to that
// plan the call fails with ErrSubscriptionNotFound, it never auto-creates.
func (s *SubscriptionService) Renew(ctx context.Context, userID int64, planName string, extraDays int) (*models.Subscription, error) {
	if _, ok := plans[planName]; !ok {
		return nil, ErrUnknownPlan
	}
	sub, err := s.subscriptions.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	if sub == nil || sub.Plan != planName {
		return nil, ErrSubscriptionNotFound
	}
	now := s.now()
	extra := time.Duration(extraDays) * 24 * time.Hour
	if sub.ActiveAt(now) {
		sub.EndDate = sub.EndDate.Add(extra)
	} else {
		sub.StartDate = now
		sub.EndDate = now.Add(extra)
	}
	if err := s.subscriptions.UpdateDates(ctx, sub.ID, sub.StartDate, sub.EndDate); err != nil {
		return nil, fmt.Errorf("update subscription dates: %w", err)
	}
	return sub, nil
}

// Cancel removes the user's subscription and reports whether one existed.
func (s *SubscriptionService) Cancel(ctx context.Context, userID int64) (bool, error) {
	removed, err := s.subscriptions.DeleteByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return removed, nil
}

func (s *SubscriptionService) List(ctx context.Context, userID int64) ([]models.Subscription, error) {
	subs, err := s.subscriptions.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}
