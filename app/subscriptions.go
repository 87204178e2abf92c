package app

import (
	"context"
	"database/sql"
	"errors"

	"github.com/2456Zebra/novahunt-sub001/app/config"
	"github.com/2456Zebra/novahunt-sub001/app/models"
)

// ErrNoSubscription indicates the user has never had a billing interaction.
var ErrNoSubscription = errors.New("no subscription record")

// planTransition is the state change a verified billing event requests.
// UserID may be empty when the provider only references its customer id.
type planTransition struct {
	UserID     string
	CustomerID string
	Plan       models.Plan
	Active     bool
}

// applyOutcome reports what ApplyEvent did with a verified event.
type applyOutcome int

const (
	applyDuplicate applyOutcome = iota // event id seen before, no-op
	applyUpdated                       // record transitioned
	applyNoop                          // recognized event, no transition requested
	applyStale                         // older than the stored record, ignored
	applyNoTarget                      // no record matches the customer ref
)

// Subscriptions persists entitlement records. Records change only through
// ApplyEvent; the resolver and handlers read them.
type Subscriptions struct {
	db    *sql.DB
	quota config.QuotaConfig
}

func NewSubscriptions(db *sql.DB, quota config.QuotaConfig) *Subscriptions {
	return &Subscriptions{db: db, quota: quota}
}

// ByUser loads the entitlement record for a user.
func (s *Subscriptions) ByUser(ctx context.Context, userID string) (models.Subscription, error) {
	var sub models.Subscription
	var customer sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, plan, stripe_customer_id, active, last_event_id, last_event_ts, updated_at
		FROM subscriptions
		WHERE user_id = $1;
	`, userID).Scan(&sub.UserID, &sub.Plan, &customer, &sub.Active, &sub.LastEventID, &sub.LastEventTS, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Subscription{}, ErrNoSubscription
		}
		return models.Subscription{}, err
	}
	sub.StripeCustomerID = customer.String
	return sub, nil
}

// AttachCustomer creates the entitlement record at the first billing
// interaction, binding the provider customer reference to the user.
func (s *Subscriptions) AttachCustomer(ctx context.Context, userID, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, plan, stripe_customer_id, active)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (user_id) DO UPDATE
		SET stripe_customer_id = EXCLUDED.stripe_customer_id
		WHERE subscriptions.stripe_customer_id IS NULL;
	`, userID, models.PlanFree, customerID)
	return err
}

// ApplyEvent records the event id and applies the transition as one
// transaction. A duplicate event id commits nothing; an event older than the
// stored record keeps its dedup row but cannot regress state. When the plan
// changes, the user's quota is granted for the new plan inside the same
// transaction.
func (s *Subscriptions) ApplyEvent(ctx context.Context, evt models.BillingEvent, tr *planTransition) (applyOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return applyDuplicate, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO billing_events (event_id, event_type, customer_id, created_ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING;
	`, evt.EventID, evt.EventType, evt.CustomerID, evt.CreatedTS)
	if err != nil {
		return applyDuplicate, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return applyDuplicate, err
	}
	if inserted == 0 {
		return applyDuplicate, nil
	}

	outcome := applyNoop
	if tr != nil {
		outcome, err = s.applyTransition(ctx, tx, evt, tr)
		if err != nil {
			return outcome, err
		}
	}

	if err := tx.Commit(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (s *Subscriptions) applyTransition(ctx context.Context, tx *sql.Tx, evt models.BillingEvent, tr *planTransition) (applyOutcome, error) {
	cur, found, err := lockSubscription(ctx, tx, tr)
	if err != nil {
		return applyNoTarget, err
	}

	switch {
	case !found && tr.UserID == "":
		// Provider references a customer we never created a record for.
		return applyNoTarget, nil
	case found && cur.LastEventTS > evt.CreatedTS:
		// Out-of-order delivery; a fresher event already applied.
		return applyStale, nil
	}

	if found {
		_, err = tx.ExecContext(ctx, `
			UPDATE subscriptions
			SET plan = $1,
			    active = $2,
			    stripe_customer_id = COALESCE(NULLIF($3, ''), stripe_customer_id),
			    last_event_id = $4,
			    last_event_ts = $5,
			    updated_at = now()
			WHERE user_id = $6;
		`, tr.Plan, tr.Active, tr.CustomerID, evt.EventID, evt.CreatedTS, cur.UserID)
	} else {
		cur.UserID = tr.UserID
		cur.Plan = ""
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscriptions (user_id, plan, stripe_customer_id, active, last_event_id, last_event_ts)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6);
		`, tr.UserID, tr.Plan, tr.CustomerID, tr.Active, evt.EventID, evt.CreatedTS)
	}
	if err != nil {
		return applyUpdated, err
	}

	if cur.Plan != tr.Plan {
		if err := s.grantPlanQuota(ctx, tx, cur.UserID, tr.Plan); err != nil {
			return applyUpdated, err
		}
	}
	return applyUpdated, nil
}

// lockSubscription loads and row-locks the transition target by user id or,
// failing that, by provider customer reference.
func lockSubscription(ctx context.Context, tx *sql.Tx, tr *planTransition) (models.Subscription, bool, error) {
	var (
		row *sql.Row
		sub models.Subscription
	)
	if tr.UserID != "" {
		row = tx.QueryRowContext(ctx, `
			SELECT user_id, plan, last_event_ts
			FROM subscriptions
			WHERE user_id = $1
			FOR UPDATE;
		`, tr.UserID)
	} else {
		row = tx.QueryRowContext(ctx, `
			SELECT user_id, plan, last_event_ts
			FROM subscriptions
			WHERE stripe_customer_id = $1
			FOR UPDATE;
		`, tr.CustomerID)
	}
	err := row.Scan(&sub.UserID, &sub.Plan, &sub.LastEventTS)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Subscription{}, false, nil
	}
	if err != nil {
		return models.Subscription{}, false, err
	}
	return sub, true, nil
}

// grantPlanQuota resets the user's quota to the new plan's allowance. Only
// the entitlement transition path and the periodic reset call this; feature
// handlers never grant.
func (s *Subscriptions) grantPlanQuota(ctx context.Context, tx *sql.Tx, userID string, plan models.Plan) error {
	searches, reveals := s.quota.FreeSearches, s.quota.FreeReveals
	if plan == models.PlanPro {
		searches, reveals = s.quota.ProSearches, s.quota.ProReveals
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO usage_quotas (user_id, searches_remaining, reveals_remaining, period_start)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET searches_remaining = EXCLUDED.searches_remaining,
		    reveals_remaining = EXCLUDED.reveals_remaining,
		    period_start = now();
	`, userID, searches, reveals)
	return err
}
