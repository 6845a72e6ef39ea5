package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/meshgate-core/internal/events"
)

// EventSink publishes lifecycle events to meshgate/events/{type}.
// It implements events.Sink.
type EventSink struct {
	client *Client
}

// NewEventSink creates an EventSink publishing through client.
func NewEventSink(client *Client) *EventSink {
	return &EventSink{client: client}
}

// Name implements events.Sink.
func (s *EventSink) Name() string { return "mqtt" }

// Handle implements events.Sink. Events are not retained.
func (s *EventSink) Handle(_ context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return s.client.Publish(Topics{}.Event(e.Type), payload, byte(s.client.cfg.QoS), false)
}
