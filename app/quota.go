package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/2456Zebra/novahunt-sub001/app/config"
	"github.com/2456Zebra/novahunt-sub001/app/models"
)

// ErrQuotaExhausted indicates a metered action was denied; nothing was
// consumed.
var ErrQuotaExhausted = errors.New("quota exhausted")

// Quotas tracks per-user remaining counts for metered actions. All mutation
// happens through single conditional statements, so concurrent consumes for
// the same user cannot both pass a quota of one.
type Quotas struct {
	db  *sql.DB
	cfg config.QuotaConfig
}

func NewQuotas(db *sql.DB, cfg config.QuotaConfig) *Quotas {
	return &Quotas{db: db, cfg: cfg}
}

func quotaColumn(kind models.QuotaKind) (string, error) {
	switch kind {
	case models.QuotaSearch:
		return "searches_remaining", nil
	case models.QuotaReveal:
		return "reveals_remaining", nil
	default:
		return "", fmt.Errorf("unknown quota kind %q", kind)
	}
}

// Consume takes one unit of the given kind. It decrements only when a unit
// remains; a zero balance or a missing row denies the action.
func (q *Quotas) Consume(ctx context.Context, userID string, kind models.QuotaKind) error {
	column, err := quotaColumn(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE usage_quotas
		SET %[1]s = %[1]s - 1
		WHERE user_id = $1 AND %[1]s > 0;
	`, column)

	res, err := q.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Accounts created before quota seeding get their free allowance
		// on first use, then retry once.
		seeded, err := q.seed(ctx, userID)
		if err != nil {
			return err
		}
		if !seeded {
			return ErrQuotaExhausted
		}
		res, err = q.db.ExecContext(ctx, query, userID)
		if err != nil {
			return err
		}
		if rows, err = res.RowsAffected(); err != nil {
			return err
		}
		if rows == 0 {
			return ErrQuotaExhausted
		}
	}
	return nil
}

// Snapshot reads the user's remaining counts without consuming anything. A
// missing row is seeded for the user's plan first, the same as Consume.
func (q *Quotas) Snapshot(ctx context.Context, userID string) (models.Quota, error) {
	quota, err := q.snapshot(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := q.seed(ctx, userID); err != nil {
			return models.Quota{}, err
		}
		quota, err = q.snapshot(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown user; report the free allowance.
			return models.Quota{
				SearchesRemaining: q.cfg.FreeSearches,
				RevealsRemaining:  q.cfg.FreeReveals,
			}, nil
		}
	}
	return quota, err
}

func (q *Quotas) snapshot(ctx context.Context, userID string) (models.Quota, error) {
	var quota models.Quota
	err := q.db.QueryRowContext(ctx, `
		SELECT searches_remaining, reveals_remaining, period_start
		FROM usage_quotas
		WHERE user_id = $1;
	`, userID).Scan(&quota.SearchesRemaining, &quota.RevealsRemaining, &quota.PeriodStart)
	if err != nil {
		return models.Quota{}, err
	}
	return quota, nil
}

// Seed creates the allowance row for an account.
func (q *Quotas) Seed(ctx context.Context, userID string) error {
	_, err := q.seed(ctx, userID)
	return err
}

// seed inserts the allowance for the user's current plan. Fresh signups have
// no subscription record and seed at the free allowance.
func (q *Quotas) seed(ctx context.Context, userID string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO usage_quotas (user_id, searches_remaining, reveals_remaining)
		SELECT u.id,
		       CASE WHEN s.active AND s.plan = 'pro' THEN $2 ELSE $4 END,
		       CASE WHEN s.active AND s.plan = 'pro' THEN $3 ELSE $5 END
		FROM users u
		LEFT JOIN subscriptions s ON s.user_id = u.id
		WHERE u.id = $1
		ON CONFLICT (user_id) DO NOTHING;
	`, userID, q.cfg.ProSearches, q.cfg.ProReveals, q.cfg.FreeSearches, q.cfg.FreeReveals)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ResetAll restores every user's allowance for their current plan. Invoked
// by the periodic reset job, never by feature handlers.
func (q *Quotas) ResetAll(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE usage_quotas
		SET searches_remaining = CASE WHEN s.plan = 'pro' THEN $1 ELSE $3 END,
		    reveals_remaining = CASE WHEN s.plan = 'pro' THEN $2 ELSE $4 END,
		    period_start = now()
		FROM (
		    SELECT u.id,
		           COALESCE(CASE WHEN sub.active THEN sub.plan END, 'free') AS plan
		    FROM users u
		    LEFT JOIN subscriptions sub ON sub.user_id = u.id
		) s
		WHERE usage_quotas.user_id = s.id;
	`, q.cfg.ProSearches, q.cfg.ProReveals, q.cfg.FreeSearches, q.cfg.FreeReveals)
	return err
}
