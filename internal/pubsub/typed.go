package pubsub

import (
	"context"
	"encoding/json"

	"github.com/dillspilit/scripthub/internal/topicmgr"
)

// Event[T] pairs a registered topic with the payload type published on it,
// so publishing a wrong payload shape is a compile error rather than a
// wiring bug found at runtime.
type Event[T any] struct {
	topic topicmgr.Topic
}

// NewEvent defines a typed event and auto-registers its topic with the
// Default manager. Events are defined at package level, so a duplicate name
// panics at startup.
func NewEvent[T any](name, stage, description string) Event[T] {
	topic := topicmgr.Default().MustRegister(topicmgr.Topic{
		Name:        name,
		Stage:       stage,
		Description: description,
	})
	return Event[T]{topic: topic}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topic.Name
}

// Publish sends a typed event for the given script. The compiler ensures
// 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], script string, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.Publish(ctx, Message{
		Topic:   event.Name(),
		Script:  script,
		Payload: data,
	})
}

// Decode unmarshals a received message into the event's payload type.
func Decode[T any](event Event[T], msg Message) (T, error) {
	var payload T
	err := json.Unmarshal(msg.Payload, &payload)
	return payload, err
}
