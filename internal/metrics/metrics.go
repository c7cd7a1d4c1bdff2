// Package metrics exposes Prometheus instrumentation for the tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the tracker records. A nil *Collector is a
// valid no-op receiver on the engine side, so tests can skip instrumentation.
type Collector struct {
	reg *prometheus.Registry

	Tracking    prometheus.Gauge
	BufferDepth prometheus.Gauge

	TripsStarted   prometheus.Counter
	TripsCompleted prometheus.Counter
	TripsCancelled prometheus.Counter

	SamplesReceived prometheus.Counter
	SamplesTrimmed  prometheus.Counter
	SamplesFlushed  prometheus.Counter

	FlushFailures prometheus.Counter
	FlushDuration prometheus.Histogram

	PositionsPublished  prometheus.Counter
	PositionPublishErrs prometheus.Counter
}

// NewCollector builds and registers every metric on a private registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Tracking: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldtrack_tracking",
			Help: "1 while a trip is being tracked, 0 otherwise.",
		}),
		BufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldtrack_upload_buffer_depth",
			Help: "Samples currently buffered and awaiting flush.",
		}),
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtrack_trips_started_total",
			Help: "Total trips started.",
		}),
		TripsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtrack_trips_completed_total",
			Help: "Total trips finalized as completed.",
		}),
		TripsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtrack_trips_cancelled_total",
			Help: "Total trips rolled back to cancelled during start.",
		}),
		SamplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtrack_samples_received_total",
			Help: "Total GPS samples accepted from the location source.",
		}),
		SamplesTrimmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtrack_samples_trimmed_total",
			Help: "Samples dropped from the upload buffer at the cap.",
		}),
		SamplesFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtrack_samples_flushed_total",
			Help: "Samples successfully persisted by flush calls.",
		}),
		FlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtrack_flush_failures_total",
			Help: "Flush attempts that failed and left the buffer intact.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldtrack_flush_duration_seconds",
			Help:    "Duration of buffer flushes to the trip store.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		PositionsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtrack_positions_published_total",
			Help: "Live position messages published.",
		}),
		PositionPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldtrack_position_publish_errors_total",
			Help: "Live position publish errors.",
		}),
	}

	reg.MustRegister(
		c.Tracking, c.BufferDepth,
		c.TripsStarted, c.TripsCompleted, c.TripsCancelled,
		c.SamplesReceived, c.SamplesTrimmed, c.SamplesFlushed,
		c.FlushFailures, c.FlushDuration,
		c.PositionsPublished, c.PositionPublishErrs,
	)

	return c
}

// Handler serves the collector's registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
