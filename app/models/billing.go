package models

import "time"

// Subscription is the per-user durable entitlement record. It is created
// lazily at the first billing interaction and mutated only by verified
// provider events.
type Subscription struct {
	UserID           string    `db:"user_id"`
	Plan             Plan      `db:"plan"`
	StripeCustomerID string    `db:"stripe_customer_id"`
	Active           bool      `db:"active"`
	LastEventID      string    `db:"last_event_id"`
	LastEventTS      int64     `db:"last_event_ts"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// BillingEvent is an inbound provider notification after signature
// verification. EventID is globally unique and applied at most once.
type BillingEvent struct {
	EventID    string    `db:"event_id"`
	EventType  string    `db:"event_type"`
	CustomerID string    `db:"customer_id"`
	CreatedTS  int64     `db:"created_ts"`
	ReceivedAt time.Time `db:"received_at"`
}
