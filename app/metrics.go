package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novahunt_billing_webhook_events_total",
		Help: "Webhook deliveries by processing result.",
	}, []string{"result"})

	quotaDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novahunt_quota_denials_total",
		Help: "Metered actions denied because the quota was exhausted.",
	}, []string{"kind"})
)
