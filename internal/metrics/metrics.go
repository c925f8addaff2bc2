// Package metrics exposes the service's Prometheus collectors. Everything is
// registered on the default registry and served by promhttp in the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorhub_messages_received_total",
		Help: "Messages delivered by the broker subscription",
	})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorhub_parse_failures_total",
		Help: "Inbound payloads that were not valid JSON",
	})

	StoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorhub_store_write_failures_total",
		Help: "Ingest-path inserts that the store rejected",
	})

	BroadcastDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorhub_broadcast_deliveries_total",
		Help: "Messages enqueued to stream subscribers",
	})

	BroadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorhub_broadcast_drops_total",
		Help: "Messages dropped because a subscriber send buffer was full",
	})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sensorhub_stream_clients",
		Help: "Currently connected stream subscribers",
	})
)
