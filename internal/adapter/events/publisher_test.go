package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	data     [][]byte
	err      error
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subj)
	c.data = append(c.data, data)
	return nil
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "simulation.abc.level", Subject("simulation", "abc", "level"))
	assert.Equal(t, "simulation.abc.>", RunSubjects("simulation", "abc"))
}

func TestPublish(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "simulation")
	p.now = func() time.Time { return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, p.Publish("abc", "level", map[string]int{"level": 1, "accepted": 2}))

	require.Equal(t, []string{"simulation.abc.level"}, conn.subjects)

	var event struct {
		RunID   string         `json:"run_id"`
		Type    string         `json:"type"`
		Time    time.Time      `json:"time"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(conn.data[0], &event))
	assert.Equal(t, "abc", event.RunID)
	assert.Equal(t, "level", event.Type)
	assert.Equal(t, 2, event.Payload["accepted"])
	assert.True(t, event.Time.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPublishErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewPublisher(conn, "simulation")

	assert.Error(t, p.Publish("abc", "started", nil))
	assert.Error(t, p.Publish("abc", "started", func() {}), "unserializable payloads are rejected")
}
