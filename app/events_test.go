package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/2456Zebra/novahunt-sub001/app/models"
)

const testWebhookSecret = "whsec_test"

// signPayload builds a Stripe-Signature header for a payload, the same
// scheme ConstructEvent verifies.
func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(eventID, customerID, userID string, created int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"checkout.session.completed","created":%d,"data":{"object":{"customer":%q,"client_reference_id":%q}}}`,
		eventID, created, customerID, userID,
	))
}

func subscriptionDeletedPayload(eventID, customerID string, created int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"customer.subscription.deleted","created":%d,"data":{"object":{"customer":%q,"status":"canceled"}}}`,
		eventID, created, customerID,
	))
}

func subscriptionStatusPayload(eventID, eventType, customerID, status string, created int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"created":%d,"data":{"object":{"customer":%q,"status":%q}}}`,
		eventID, eventType, created, customerID, status,
	))
}

func invoicePaymentFailedPayload(eventID, customerID string, created int64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"invoice.payment_failed","created":%d,"data":{"object":{"customer":%q}}}`,
		eventID, created, customerID,
	))
}

func newTestProcessor(t *testing.T) (*EventProcessor, *fakeSink, *fakeQuotas) {
	t.Helper()
	quotas := newFakeQuotas(2, 1)
	sink := newFakeSink(quotas, 5, 3)
	return NewEventProcessor(sink, testWebhookSecret, zap.NewNop()), sink, quotas
}

func TestHandleBadSignature(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)

	payload := checkoutCompletedPayload("evt_1", "cus_1", "user-1", time.Now().Unix())
	err := proc.Handle(context.Background(), payload, signPayload(payload, "whsec_other", time.Now()))

	require.ErrorIs(t, err, ErrBadSignature)
	require.Empty(t, sink.applied, "no state change on bad signature")
}

func TestHandleTamperedPayload(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)

	payload := checkoutCompletedPayload("evt_1", "cus_1", "user-1", time.Now().Unix())
	header := signPayload(payload, testWebhookSecret, time.Now())
	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = 'x'

	err := proc.Handle(context.Background(), tampered, header)
	require.ErrorIs(t, err, ErrBadSignature)
	require.Empty(t, sink.applied)
}

func TestHandleCheckoutCompleted(t *testing.T) {
	proc, sink, quotas := newTestProcessor(t)

	payload := checkoutCompletedPayload("evt_1", "cus_1", "user-1", time.Now().Unix())
	err := proc.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	require.Equal(t, models.PlanPro, sink.planFor("user-1"))

	// Pro transition granted the pro allowance in the same apply.
	snap, err := quotas.Snapshot(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 5, snap.SearchesRemaining)
	require.Equal(t, 3, snap.RevealsRemaining)
}

func TestHandleDuplicateDelivery(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)

	payload := checkoutCompletedPayload("evt_1", "cus_1", "user-1", time.Now().Unix())
	header := signPayload(payload, testWebhookSecret, time.Now())

	require.NoError(t, proc.Handle(context.Background(), payload, header))
	require.NoError(t, proc.Handle(context.Background(), payload, header))

	require.Equal(t, 1, sink.applyCalls, "second delivery must be a no-op")
	require.Equal(t, models.PlanPro, sink.planFor("user-1"))
}

func TestHandleOutOfOrderDelivery(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)

	now := time.Now().Unix()
	upgrade := checkoutCompletedPayload("evt_2", "cus_1", "user-1", now)
	require.NoError(t, proc.Handle(context.Background(), upgrade,
		signPayload(upgrade, testWebhookSecret, time.Now())))

	// A cancellation event created before the upgrade arrives late; it must
	// not regress the record.
	stale := subscriptionDeletedPayload("evt_1", "cus_1", now-100)
	require.NoError(t, proc.Handle(context.Background(), stale,
		signPayload(stale, testWebhookSecret, time.Now())))

	require.Equal(t, models.PlanPro, sink.planFor("user-1"))
}

func TestHandleSubscriptionDeleted(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)

	now := time.Now().Unix()
	upgrade := checkoutCompletedPayload("evt_1", "cus_1", "user-1", now)
	require.NoError(t, proc.Handle(context.Background(), upgrade,
		signPayload(upgrade, testWebhookSecret, time.Now())))

	canceled := subscriptionDeletedPayload("evt_2", "cus_1", now+100)
	require.NoError(t, proc.Handle(context.Background(), canceled,
		signPayload(canceled, testWebhookSecret, time.Now())))

	require.Equal(t, models.PlanFree, sink.planFor("user-1"))
}

func TestHandleSubscriptionCreated(t *testing.T) {
	proc, sink, quotas := newTestProcessor(t)

	now := time.Now().Unix()
	// Bind the customer first, as checkout would.
	bind := checkoutCompletedPayload("evt_1", "cus_1", "user-1", now)
	require.NoError(t, proc.Handle(context.Background(), bind,
		signPayload(bind, testWebhookSecret, time.Now())))

	// Drop back to free, then a subscription created outside checkout (via
	// the dashboard or API) must upgrade again.
	canceled := subscriptionDeletedPayload("evt_2", "cus_1", now+100)
	require.NoError(t, proc.Handle(context.Background(), canceled,
		signPayload(canceled, testWebhookSecret, time.Now())))
	require.Equal(t, models.PlanFree, sink.planFor("user-1"))

	created := subscriptionStatusPayload("evt_3", "customer.subscription.created", "cus_1", "active", now+200)
	require.NoError(t, proc.Handle(context.Background(), created,
		signPayload(created, testWebhookSecret, time.Now())))

	require.Equal(t, models.PlanPro, sink.planFor("user-1"))
	snap, err := quotas.Snapshot(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 5, snap.SearchesRemaining)
}

func TestHandleSubscriptionUpdatedStatus(t *testing.T) {
	tests := []struct {
		status string
		want   models.Plan
	}{
		{"active", models.PlanPro},
		{"trialing", models.PlanPro},
		{"past_due", models.PlanFree},
		{"canceled", models.PlanFree},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			proc, sink, _ := newTestProcessor(t)

			now := time.Now().Unix()
			bind := checkoutCompletedPayload("evt_1", "cus_1", "user-1", now)
			require.NoError(t, proc.Handle(context.Background(), bind,
				signPayload(bind, testWebhookSecret, time.Now())))

			updated := subscriptionStatusPayload("evt_2", "customer.subscription.updated", "cus_1", tt.status, now+100)
			require.NoError(t, proc.Handle(context.Background(), updated,
				signPayload(updated, testWebhookSecret, time.Now())))

			require.Equal(t, tt.want, sink.planFor("user-1"))
		})
	}
}

func TestHandleInvoicePaymentFailed(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)

	now := time.Now().Unix()
	bind := checkoutCompletedPayload("evt_1", "cus_1", "user-1", now)
	require.NoError(t, proc.Handle(context.Background(), bind,
		signPayload(bind, testWebhookSecret, time.Now())))
	require.Equal(t, models.PlanPro, sink.planFor("user-1"))

	failed := invoicePaymentFailedPayload("evt_2", "cus_1", now+100)
	require.NoError(t, proc.Handle(context.Background(), failed,
		signPayload(failed, testWebhookSecret, time.Now())))

	require.Equal(t, models.PlanFree, sink.planFor("user-1"))
}

func TestHandleUnrecognizedEventType(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)

	payload := []byte(`{"id":"evt_1","type":"customer.updated","created":1700000000,"data":{"object":{}}}`)
	err := proc.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret, time.Now()))

	require.NoError(t, err, "unrecognized event types are acknowledged")
	require.Zero(t, sink.applyCalls)
}

func TestHandleStorageFailure(t *testing.T) {
	proc, sink, _ := newTestProcessor(t)
	sink.applyErr = errors.New("db down")

	payload := checkoutCompletedPayload("evt_1", "cus_1", "user-1", time.Now().Unix())
	err := proc.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret, time.Now()))

	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBadSignature)
	require.NotErrorIs(t, err, ErrMalformedEvent)
}

func TestHandleUnknownCustomer(t *testing.T) {
	proc, _, _ := newTestProcessor(t)

	payload := subscriptionDeletedPayload("evt_1", "cus_never_seen", time.Now().Unix())
	err := proc.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret, time.Now()))

	require.NoError(t, err, "unknown customers are acknowledged, not retried")
}
