package app

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"

	"github.com/2456Zebra/novahunt-sub001/app/config"
	"github.com/2456Zebra/novahunt-sub001/app/models"
)

// ErrBillingNotConfigured indicates a billing operation was requested
// without the Stripe configuration it needs.
var ErrBillingNotConfigured = errors.New("billing not configured")

// subscriptionStore is the slice of Subscriptions the billing flows need.
type subscriptionStore interface {
	ByUser(ctx context.Context, userID string) (models.Subscription, error)
	AttachCustomer(ctx context.Context, userID, customerID string) error
}

// Billing talks to Stripe for the interactive flows: customer bootstrap,
// checkout, and the billing portal. Webhook-driven state belongs to
// EventProcessor.
type Billing struct {
	subs        subscriptionStore
	cfg         config.StripeConfig
	newCustomer func(ctx context.Context, user models.User) (string, error)
}

// NewBilling wires the Stripe API key and returns the billing service.
func NewBilling(subs subscriptionStore, cfg config.StripeConfig) *Billing {
	stripe.Key = cfg.SecretKey
	return &Billing{subs: subs, cfg: cfg, newCustomer: newStripeCustomer}
}

func newStripeCustomer(ctx context.Context, user models.User) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	params.Context = ctx
	params.AddMetadata("user_id", user.ID)

	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

// ensureCustomer finds or creates the Stripe customer for a user and binds
// it to the user's subscription record. This is the lazy first billing
// interaction that creates the record.
func (b *Billing) ensureCustomer(ctx context.Context, user models.User) (string, error) {
	sub, err := b.subs.ByUser(ctx, user.ID)
	if err == nil && sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}
	if err != nil && !errors.Is(err, ErrNoSubscription) {
		return "", err
	}

	custID, err := b.newCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	if err := b.subs.AttachCustomer(ctx, user.ID, custID); err != nil {
		return "", err
	}

	// AttachCustomer keeps the first customer ref it sees, so a concurrent
	// request may have bound a different one. The stored ref is the one the
	// checkout session must use.
	sub, err = b.subs.ByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	return sub.StripeCustomerID, nil
}

// CheckoutURL starts a subscription checkout session for the user and
// returns the redirect URL.
func (b *Billing) CheckoutURL(ctx context.Context, user models.User) (string, error) {
	priceID := b.cfg.PriceIDProMonthly
	frontendURL := strings.TrimRight(b.cfg.FrontendURL, "/")
	if priceID == "" || frontendURL == "" {
		return "", ErrBillingNotConfigured
	}

	customerID, err := b.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		// Carried through to checkout.session.completed so the webhook can
		// resolve the user even before the customer ref is stored.
		ClientReferenceID: stripe.String(user.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/billing/success"),
		CancelURL:  stripe.String(frontendURL + "/billing/cancel"),
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// PortalURL creates a billing portal session for an existing customer.
func (b *Billing) PortalURL(ctx context.Context, user models.User) (string, error) {
	frontendURL := strings.TrimRight(b.cfg.FrontendURL, "/")
	if frontendURL == "" {
		return "", ErrBillingNotConfigured
	}

	sub, err := b.subs.ByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if sub.StripeCustomerID == "" {
		return "", ErrNoSubscription
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.StripeCustomerID),
		ReturnURL: stripe.String(frontendURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := portal.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}
