// Package metrics registers the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts inbound text messages received on the webhook.
	WebhookEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rolesbot_webhook_events_total",
		Help: "Inbound text messages received on the webhook.",
	})

	// Commands counts routed commands by name.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rolesbot_commands_total",
		Help: "Commands dispatched by the router.",
	}, []string{"command"})

	// OutboundMessages counts gateway sends by result.
	OutboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rolesbot_outbound_messages_total",
		Help: "Outbound gateway sends by result.",
	}, []string{"result"})
)
