package transport

import (
	"context"
	"fmt"

	"github.com/landyrev/simple-nmea-simulator/simulator"
	"github.com/nats-io/nats.go"
)

// DefaultNATSSubject is used when no subject is configured.
const DefaultNATSSubject = "nmea.sentences"

// NATSPublisher defines the NATS operations used by NATSSink
type NATSPublisher interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// NATSSink publishes each sentence as one NATS message.
type NATSSink struct {
	conn    NATSPublisher
	subject string
}

// NewNATSSink connects to the NATS server at url.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("simple-nmea-simulator"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNATSSinkWithConn(nc, subject), nil
}

// NewNATSSinkWithConn creates a sink on an existing connection (useful for testing)
func NewNATSSinkWithConn(conn NATSPublisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSSink{conn: conn, subject: subject}
}

// Send publishes every sentence of the batch in order.
func (n *NATSSink) Send(_ context.Context, batch simulator.Batch) error {
	for _, s := range batch.Sentences {
		if err := n.conn.Publish(n.subject, []byte(s)); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", n.subject, err)
		}
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATSSink) Close() error {
	if n.conn == nil {
		return nil
	}
	err := n.conn.Flush()
	n.conn.Close()
	return err
}
