// Package metrics holds the Prometheus collectors shared by the services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_readings_ingested_total",
		Help: "Readings accepted, normalized and persisted.",
	})

	NormalizationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_normalization_failures_total",
		Help: "Submissions rejected as unparseable.",
	})

	StoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_store_write_failures_total",
		Help: "Durable writes that failed with an infrastructure fault.",
	})

	ReadingsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_readings_broadcast_total",
		Help: "Readings fanned out to observers.",
	})

	ObserversConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_observers_connected",
		Help: "Currently connected websocket observers.",
	})

	AlertViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alert_violations_total",
		Help: "Threshold violations emitted.",
	})

	DevicePushRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actuator_device_push_retries_total",
		Help: "Retried actuator wire pushes.",
	})

	DevicePushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "actuator_device_push_failures_total",
		Help: "Actuator wire pushes that exhausted retries.",
	})
)
