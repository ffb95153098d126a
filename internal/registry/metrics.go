package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	occurrencesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracefunnel_occurrences_merged_total",
			Help: "Total number of event occurrences merged into the local rank data.",
		},
	)
	collectionBytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracefunnel_collection_bytes_sent_total",
			Help: "Bytes this rank sent to the coordinator during collection.",
		},
	)
	collectionBytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracefunnel_collection_bytes_received_total",
			Help: "Bytes the coordinator received during collection.",
		},
	)
	collectionSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracefunnel_collection_duration_seconds",
			Help: "Wall-clock duration of the last collection.",
		},
	)
)
