package testutils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dillspilit/scripthub/internal/pubsub"
)

// CollectingPublisher implements pubsub.Publisher by recording every message,
// so tests can assert on event streams without a running bus.
type CollectingPublisher struct {
	mu   sync.Mutex
	msgs []pubsub.Message
}

var _ pubsub.Publisher = (*CollectingPublisher)(nil)

// NewCollectingPublisher creates an empty collector.
func NewCollectingPublisher() *CollectingPublisher {
	return &CollectingPublisher{}
}

// Publish implements pubsub.Publisher.
func (c *CollectingPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

// Close implements pubsub.Publisher.
func (c *CollectingPublisher) Close() error { return nil }

// Messages returns a copy of everything published so far.
func (c *CollectingPublisher) Messages() []pubsub.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pubsub.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// OnTopic returns all recorded messages for one topic, in publish order.
func (c *CollectingPublisher) OnTopic(topic string) []pubsub.Message {
	var out []pubsub.Message
	for _, m := range c.Messages() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// WaitFor blocks until at least one message appears on the topic, failing
// the test after the timeout. It returns the first matching message.
func (c *CollectingPublisher) WaitFor(t *testing.T, topic string, timeout time.Duration) pubsub.Message {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if msgs := c.OnTopic(topic); len(msgs) > 0 {
			return msgs[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for a message on topic %s", topic)
	return pubsub.Message{}
}
