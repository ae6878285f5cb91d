package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultNATSSubject is the subject escalation records are published on.
const DefaultNATSSubject = "sahara.escalations"

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes escalation records to a NATS subject.
type NATSSink struct {
	conn    Publisher
	subject string
}

// NewNATSSink wraps an established connection.
func NewNATSSink(conn Publisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSSink{conn: conn, subject: subject}
}

// DialNATS connects to url and returns a sink plus the connection so the
// caller can drain it on shutdown.
func DialNATS(url, subject string) (*NATSSink, *nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("sahara-audit"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewNATSSink(conn, subject), conn, nil
}

// Publish implements Sink.
func (s *NATSSink) Publish(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %q: %w", s.subject, err)
	}
	return nil
}
