package report

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"MirrorScope/internal/config"
	"MirrorScope/internal/model"
)

// NATSSink publishes each report as JSON to a NATS subject so downstream
// consumers (dashboards, long-term pipelines) can subscribe without
// touching the probe.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to the configured NATS server.
func NewNATSSink(cfg config.NATSConfig) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("report sink: connected to NATS server at %s", cfg.URL)
	return &NATSSink{nc: nc, subject: cfg.Subject}, nil
}

// Write implements Sink.
func (s *NATSSink) Write(r *model.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return s.nc.Publish(s.subject, data)
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Drain()
		log.Println("report sink: NATS connection drained and closed")
	}
}
