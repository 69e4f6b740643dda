package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillBridgePublishSubscribe(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 1)
	err := bridge.Subscribe(ctx, "test.topic", func(ctx context.Context, msg Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)

	err = bridge.Publish(ctx, Message{
		Topic:   "test.topic",
		Script:  "backup",
		Payload: []byte(`{"line":"hello"}`),
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "test.topic", msg.Topic)
		assert.Equal(t, "backup", msg.Script)
		assert.JSONEq(t, `{"line":"hello"}`, string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestWatermillBridgePreservesOrder(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	err := bridge.Subscribe(ctx, "ordered.topic", func(ctx context.Context, msg Message) error {
		mu.Lock()
		got = append(got, string(msg.Payload))
		n := len(got)
		mu.Unlock()
		if n == 5 {
			close(done)
		}
		return nil
	})
	require.NoError(t, err)

	want := []string{"a", "b", "c", "d", "e"}
	for _, p := range want {
		require.NoError(t, bridge.Publish(ctx, Message{Topic: "ordered.topic", Payload: []byte(p)}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

type testPayload struct {
	Line string `json:"line"`
}

func TestTypedPublishAndDecode(t *testing.T) {
	bridge := NewWatermillBridge()
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	event := NewEvent[testPayload]("pubsub.test.typed", "run", "test event")

	received := make(chan Message, 1)
	require.NoError(t, bridge.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		received <- msg
		return nil
	}))

	require.NoError(t, Publish(ctx, bridge, event, "backup", testPayload{Line: "out"}))

	select {
	case msg := <-received:
		payload, err := Decode(event, msg)
		require.NoError(t, err)
		assert.Equal(t, "out", payload.Line)
		assert.Equal(t, "backup", msg.Script)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for typed message")
	}
}
