package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/2456Zebra/novahunt-sub001/app/models"
)

var (
	// ErrBadSignature indicates the webhook payload failed authenticity
	// verification; no state was touched.
	ErrBadSignature = errors.New("webhook signature verification failed")

	// ErrMalformedEvent indicates a verified payload that cannot be parsed.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// eventSink applies a verified event and its transition atomically and
// idempotently.
type eventSink interface {
	ApplyEvent(ctx context.Context, evt models.BillingEvent, tr *planTransition) (applyOutcome, error)
}

// EventProcessor consumes provider webhook events and drives the
// subscription state machine. Signature verification happens over the raw
// body before anything else; parsing and state changes follow only for
// authentic events.
type EventProcessor struct {
	sink   eventSink
	secret string
	log    *zap.Logger
}

func NewEventProcessor(sink eventSink, webhookSecret string, log *zap.Logger) *EventProcessor {
	return &EventProcessor{sink: sink, secret: webhookSecret, log: log}
}

// Handle verifies and applies one raw webhook delivery. The payload must be
// the unmodified request body; re-serializing would break the signature.
func (p *EventProcessor) Handle(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		p.secret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		webhookEvents.WithLabelValues("bad_signature").Inc()
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	tr, err := transitionFor(event)
	if err != nil {
		webhookEvents.WithLabelValues("malformed").Inc()
		return err
	}

	evt := models.BillingEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
		CreatedTS: event.Created,
	}
	if tr != nil {
		evt.CustomerID = tr.CustomerID
	}

	outcome, err := p.sink.ApplyEvent(ctx, evt, tr)
	if err != nil {
		// Validated but not durably applied: surface as transient so the
		// provider redelivers.
		webhookEvents.WithLabelValues("storage_error").Inc()
		return fmt.Errorf("apply event %s: %w", event.ID, err)
	}

	switch outcome {
	case applyDuplicate:
		webhookEvents.WithLabelValues("duplicate").Inc()
		p.log.Info("duplicate webhook event ignored", zap.String("event_id", event.ID))
	case applyStale:
		webhookEvents.WithLabelValues("stale").Inc()
		p.log.Info("stale webhook event ignored",
			zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
	case applyNoTarget:
		webhookEvents.WithLabelValues("unknown_customer").Inc()
		p.log.Warn("webhook event for unknown customer",
			zap.String("event_id", event.ID), zap.String("customer", evt.CustomerID))
	case applyUpdated:
		webhookEvents.WithLabelValues("applied").Inc()
		p.log.Info("subscription updated from webhook",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("plan", string(tr.Plan)))
	default:
		webhookEvents.WithLabelValues("ignored").Inc()
	}
	return nil
}

// transitionFor maps a provider event to the plan transition it requests.
// Unrecognized event types return nil: they are acknowledged without state
// change so the provider does not retry them forever.
func transitionFor(event stripe.Event) (*planTransition, error) {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", ErrMalformedEvent, err)
		}
		customerID := ""
		if sess.Customer != nil {
			customerID = sess.Customer.ID
		}
		if customerID == "" && sess.ClientReferenceID == "" {
			return nil, fmt.Errorf("%w: checkout session missing customer", ErrMalformedEvent)
		}
		return &planTransition{
			UserID:     sess.ClientReferenceID,
			CustomerID: customerID,
			Plan:       models.PlanPro,
			Active:     true,
		}, nil

	case "customer.subscription.created", "customer.subscription.updated":
		// Created covers subscriptions started outside checkout, via the
		// Stripe dashboard or API.
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %v", ErrMalformedEvent, err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil, fmt.Errorf("%w: subscription missing customer", ErrMalformedEvent)
		}
		active := sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing
		plan := models.PlanFree
		if active {
			plan = models.PlanPro
		}
		return &planTransition{CustomerID: sub.Customer.ID, Plan: plan, Active: active}, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %v", ErrMalformedEvent, err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil, fmt.Errorf("%w: subscription missing customer", ErrMalformedEvent)
		}
		return &planTransition{CustomerID: sub.Customer.ID, Plan: models.PlanFree, Active: false}, nil

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: invoice: %v", ErrMalformedEvent, err)
		}
		if inv.Customer == nil || inv.Customer.ID == "" {
			return nil, fmt.Errorf("%w: invoice missing customer", ErrMalformedEvent)
		}
		return &planTransition{CustomerID: inv.Customer.ID, Plan: models.PlanFree, Active: false}, nil

	default:
		return nil, nil
	}
}
