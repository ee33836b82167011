package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedEventsTotal tracks change-feed events applied per event type.
	FeedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffeequeue_feed_events_total",
			Help: "Total number of change-feed events received",
		},
		[]string{"type"},
	)

	// ReconnectsTotal tracks feed reconnect attempts and outcomes.
	ReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffeequeue_reconnects_total",
			Help: "Total number of feed reconnect attempts",
		},
		[]string{"outcome"},
	)

	// RefreshesTotal tracks polling refreshes by trigger.
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffeequeue_refreshes_total",
			Help: "Total number of full-state refreshes",
		},
		[]string{"trigger"},
	)

	// MutationsTotal tracks optimistic mutations by outcome.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffeequeue_mutations_total",
			Help: "Total number of optimistic mutations by outcome",
		},
		[]string{"outcome"},
	)

	// MutationRetriesTotal tracks retry attempts consumed by mutations.
	MutationRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coffeequeue_mutation_retries_total",
			Help: "Total number of mutation retry attempts",
		},
	)

	// PendingOverlays tracks unresolved optimistic overlays.
	PendingOverlays = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coffeequeue_pending_overlays",
			Help: "Number of unresolved optimistic overlays",
		},
	)

	// FeedConnected reports whether the change-feed subscription is live.
	FeedConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coffeequeue_feed_connected",
			Help: "1 when the change-feed subscription is connected",
		},
	)

	// QueueDepth tracks the number of non-terminal orders in the queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coffeequeue_queue_depth",
			Help: "Number of pending orders in the queue",
		},
	)
)
