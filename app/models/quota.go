package models

import "time"

// QuotaKind names a metered action.
type QuotaKind string

const (
	QuotaSearch QuotaKind = "search"
	QuotaReveal QuotaKind = "reveal"
)

// Quota is a snapshot of a user's remaining metered actions.
type Quota struct {
	SearchesRemaining int       `db:"searches_remaining"`
	RevealsRemaining  int       `db:"reveals_remaining"`
	PeriodStart       time.Time `db:"period_start"`
}
