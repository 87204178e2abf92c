package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/2456Zebra/novahunt-sub001/app/models"
)

// In-memory stand-ins for the SQL-backed stores. The fake sink mirrors the
// dedup and monotonic-stamp semantics of Subscriptions.ApplyEvent so the
// processor and handlers can be exercised without Postgres.

type fakeUsers struct {
	mu        sync.Mutex
	byEmail   map[string]models.User
	passwords map[string]string
	seq       int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]models.User{}, passwords: map[string]string{}}
}

func (f *fakeUsers) Create(_ context.Context, email, password string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[email]; exists {
		return models.User{}, ErrEmailTaken
	}
	f.seq++
	user := models.User{ID: fmt.Sprintf("user-%d", f.seq), Email: email}
	f.byEmail[email] = user
	f.passwords[email] = password
	return user, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok || f.passwords[email] != password {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("user %s not found", id)
}

type fakeQuotas struct {
	mu       sync.Mutex
	searches map[string]int
	reveals  map[string]int

	freeSearches int
	freeReveals  int
}

func newFakeQuotas(freeSearches, freeReveals int) *fakeQuotas {
	return &fakeQuotas{
		searches:     map[string]int{},
		reveals:      map[string]int{},
		freeSearches: freeSearches,
		freeReveals:  freeReveals,
	}
}

func (f *fakeQuotas) Consume(_ context.Context, userID string, kind models.QuotaKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seedLocked(userID)
	counts := f.searches
	if kind == models.QuotaReveal {
		counts = f.reveals
	}
	if counts[userID] <= 0 {
		return ErrQuotaExhausted
	}
	counts[userID]--
	return nil
}

func (f *fakeQuotas) Snapshot(_ context.Context, userID string) (models.Quota, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seedLocked(userID)
	return models.Quota{
		SearchesRemaining: f.searches[userID],
		RevealsRemaining:  f.reveals[userID],
	}, nil
}

// seedLocked mirrors the store's lazy row creation: a user with no row gets
// the free allowance on first touch.
func (f *fakeQuotas) seedLocked(userID string) {
	if _, ok := f.searches[userID]; !ok {
		f.searches[userID] = f.freeSearches
		f.reveals[userID] = f.freeReveals
	}
}

func (f *fakeQuotas) drop(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.searches, userID)
	delete(f.reveals, userID)
}

func (f *fakeQuotas) Seed(_ context.Context, userID string) error {
	f.grant(userID, f.freeSearches, f.freeReveals)
	return nil
}

func (f *fakeQuotas) grant(userID string, searches, reveals int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches[userID] = searches
	f.reveals[userID] = reveals
}

type fakeSink struct {
	mu         sync.Mutex
	applied    map[string]bool
	subs       map[string]*models.Subscription // keyed by user id
	byCustomer map[string]string               // customer id -> user id

	quotas      *fakeQuotas
	proSearches int
	proReveals  int

	applyErr   error
	applyCalls int
}

func newFakeSink(quotas *fakeQuotas, proSearches, proReveals int) *fakeSink {
	return &fakeSink{
		applied:     map[string]bool{},
		subs:        map[string]*models.Subscription{},
		byCustomer:  map[string]string{},
		quotas:      quotas,
		proSearches: proSearches,
		proReveals:  proReveals,
	}
}

func (f *fakeSink) ApplyEvent(_ context.Context, evt models.BillingEvent, tr *planTransition) (applyOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return applyDuplicate, f.applyErr
	}
	if f.applied[evt.EventID] {
		return applyDuplicate, nil
	}
	f.applied[evt.EventID] = true
	if tr == nil {
		return applyNoop, nil
	}
	f.applyCalls++

	userID := tr.UserID
	if userID == "" {
		userID = f.byCustomer[tr.CustomerID]
	}
	if userID == "" {
		return applyNoTarget, nil
	}

	sub := f.subs[userID]
	if sub == nil {
		sub = &models.Subscription{UserID: userID, Plan: models.PlanFree}
		f.subs[userID] = sub
	}
	if sub.LastEventTS > evt.CreatedTS {
		return applyStale, nil
	}

	prevPlan := sub.Plan
	sub.Plan = tr.Plan
	sub.Active = tr.Active
	sub.LastEventID = evt.EventID
	sub.LastEventTS = evt.CreatedTS
	if tr.CustomerID != "" {
		sub.StripeCustomerID = tr.CustomerID
		f.byCustomer[tr.CustomerID] = userID
	}

	if prevPlan != tr.Plan && f.quotas != nil {
		searches, reveals := f.quotas.freeSearches, f.quotas.freeReveals
		if tr.Plan == models.PlanPro {
			searches, reveals = f.proSearches, f.proReveals
		}
		f.quotas.grant(userID, searches, reveals)
	}
	return applyUpdated, nil
}

func (f *fakeSink) planFor(userID string) models.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub := f.subs[userID]; sub != nil && sub.Active && sub.Plan == models.PlanPro {
		return models.PlanPro
	}
	return models.PlanFree
}

// sinkResolver resolves plans straight out of the fake sink's state.
type sinkResolver struct {
	sink *fakeSink
}

func (r sinkResolver) Resolve(_ context.Context, userID string) models.Plan {
	if userID == "" {
		return models.PlanFree
	}
	return r.sink.planFor(userID)
}

type fakeBilling struct {
	checkoutURL string
	portalURL   string
	err         error
}

func (f *fakeBilling) CheckoutURL(context.Context, models.User) (string, error) {
	return f.checkoutURL, f.err
}

func (f *fakeBilling) PortalURL(context.Context, models.User) (string, error) {
	return f.portalURL, f.err
}
