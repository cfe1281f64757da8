// internal/adapter/events/publisher.go

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn is the part of a NATS connection the publisher uses
type Conn interface {
	Publish(subj string, data []byte) error
}

// Event is the envelope of a run progress message
type Event struct {
	RunID   string      `json:"run_id"`
	Type    string      `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// Publisher publishes run events to NATS
type Publisher struct {
	conn  Conn
	topic string
	now   func() time.Time
}

// NewPublisher creates a new publisher; events go to "<topic>.<runID>.<event>"
func NewPublisher(conn Conn, topic string) *Publisher {
	return &Publisher{conn: conn, topic: topic, now: time.Now}
}

// Subject returns the subject of one run event
func Subject(topic, runID, event string) string {
	return fmt.Sprintf("%s.%s.%s", topic, runID, event)
}

// RunSubjects returns the wildcard subject matching every event of a run
func RunSubjects(topic, runID string) string {
	return fmt.Sprintf("%s.%s.>", topic, runID)
}

// Publish serializes and publishes one event
func (p *Publisher) Publish(runID, event string, payload interface{}) error {
	data, err := json.Marshal(Event{RunID: runID, Type: event, Time: p.now(), Payload: payload})
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}
	return p.conn.Publish(Subject(p.topic, runID, event), data)
}

var _ Conn = (*nats.Conn)(nil)
