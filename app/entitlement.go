package app

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/subscription"
	"go.uber.org/zap"

	"github.com/2456Zebra/novahunt-sub001/app/models"
)

// liveCheckTimeout bounds the optional provider query so a slow billing
// provider can never block a request for long.
const liveCheckTimeout = time.Second

// Entitlements computes a user's current plan. The stored subscription
// record is a cache; in live-check mode the provider is consulted and
// preferred, but a provider failure falls back to the record rather than
// failing the request.
type Entitlements struct {
	subs      *Subscriptions
	liveCheck bool
	log       *zap.Logger
}

func NewEntitlements(subs *Subscriptions, liveCheck bool, log *zap.Logger) *Entitlements {
	return &Entitlements{subs: subs, liveCheck: liveCheck, log: log}
}

// Resolve returns the user's plan. Anonymous callers are free with no
// lookup. This never returns an error: entitlement resolution degrades, it
// does not fail.
func (e *Entitlements) Resolve(ctx context.Context, userID string) models.Plan {
	if userID == "" {
		return models.PlanFree
	}

	sub, err := e.subs.ByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNoSubscription) {
			e.log.Warn("subscription lookup failed, treating as free",
				zap.String("user_id", userID), zap.Error(err))
		}
		return models.PlanFree
	}

	plan := models.PlanFree
	if sub.Active && sub.Plan == models.PlanPro {
		plan = models.PlanPro
	}

	if e.liveCheck && sub.StripeCustomerID != "" {
		livePlan, err := liveSubscriptionPlan(ctx, sub.StripeCustomerID)
		if err != nil {
			e.log.Warn("live entitlement check failed, using stored record",
				zap.String("user_id", userID), zap.Error(err))
			return plan
		}
		// The live answer wins, but it is never written back here; only
		// verified webhook events mutate the record.
		return livePlan
	}

	return plan
}

// liveSubscriptionPlan asks Stripe whether the customer has any active
// subscription.
func liveSubscriptionPlan(ctx context.Context, customerID string) (models.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, liveCheckTimeout)
	defer cancel()

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := subscription.List(params)
	if iter.Next() {
		return models.PlanPro, nil
	}
	if err := iter.Err(); err != nil {
		return models.PlanFree, err
	}
	return models.PlanFree, nil
}
