// Package metrics exposes the prometheus instrumentation shared by the
// matching and collaboration services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesFormed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerprep_matches_formed_total",
		Help: "Pairs formed out of bucket queues.",
	})

	MatchesConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerprep_matches_confirmed_total",
		Help: "Pairs where both users confirmed within the window.",
	})

	MatchesAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerprep_matches_abandoned_total",
		Help: "Pairs torn down by the confirmation supervisor.",
	})

	QueueWaiters = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "peerprep_queue_waiters",
		Help: "Users currently blocked waiting for a partner, per bucket.",
	}, []string{"difficulty", "category"})

	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerprep_rooms_created_total",
		Help: "Rooms built from confirmed matches.",
	})

	RoomsCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerprep_rooms_cleaned_total",
		Help: "Rooms removed after grace-hold expiry or terminate.",
	})

	ExpiryEventsRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerprep_expiry_events_relayed_total",
		Help: "Keyspace expiry notifications republished to the durable stream.",
	})

	ExpiryEventsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peerprep_expiry_events_consumed_total",
		Help: "Stream entries acknowledged by room-manager consumers.",
	})
)
