// Package publisher broadcasts live trip positions over NATS so dispatch
// dashboards can follow a driver in realtime without polling the database.
package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bosstrack/fieldtrack/internal/domain"
	"github.com/bosstrack/fieldtrack/internal/metrics"
)

// NATSPublisher publishes one message per accepted GPS sample on the subject
// fieldtrack.positions.<owner>.<trip>. Publishing is best-effort: a failed
// publish is counted and logged, never retried, because the sample is still
// headed for durable storage through the flush path.
type NATSPublisher struct {
	nc      *nats.Conn
	log     *slog.Logger
	metrics *metrics.Collector
}

// NewNATSPublisher connects to the given NATS URL with reconnect logging.
func NewNATSPublisher(url string, log *slog.Logger, m *metrics.Collector) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("fieldtrack"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publisher.NewNATSPublisher: %w", err)
	}
	return &NATSPublisher{nc: nc, log: log, metrics: m}, nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// PositionMessage is the wire shape of one live position event.
type PositionMessage struct {
	TripID    string    `json:"trip_id"`
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Bearing   *float64  `json:"bearing,omitempty"`
	SpeedMps  *float64  `json:"speed_mps,omitempty"`
}

// PublishSample broadcasts a sample for the given trip.
func (p *NATSPublisher) PublishSample(trip domain.Trip, sample domain.GeoSample) error {
	subject := fmt.Sprintf("fieldtrack.positions.%s.%s",
		subjectToken(trip.OwnerID.String()), subjectToken(trip.ID.String()))

	msg := PositionMessage{
		TripID:    trip.ID.String(),
		OwnerID:   trip.OwnerID.String(),
		Timestamp: sample.Timestamp,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Bearing:   sample.Bearing,
		SpeedMps:  sample.Speed,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("publisher.PublishSample: marshal: %w", err)
	}

	if err := p.nc.Publish(subject, b); err != nil {
		if p.metrics != nil {
			p.metrics.PositionPublishErrs.Inc()
		}
		return fmt.Errorf("publisher.PublishSample: %w", err)
	}
	if p.metrics != nil {
		p.metrics.PositionsPublished.Inc()
	}
	return nil
}

// subjectToken sanitizes a value for use as one NATS subject token.
// Tokens cannot contain spaces, '.', '>', or '*'.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
