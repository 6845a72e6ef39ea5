package influxdb

import (
	"context"

	"github.com/nerrad567/meshgate-core/internal/events"
)

// EventSink records lifecycle events as gateway_event points.
// It implements events.Sink.
type EventSink struct {
	client *Client
}

// NewEventSink creates an EventSink writing through client.
func NewEventSink(client *Client) *EventSink {
	return &EventSink{client: client}
}

// Name implements events.Sink.
func (s *EventSink) Name() string { return "influxdb" }

// Handle implements events.Sink. Write errors surface through the
// WithErrorHandler callback given to Connect, not here.
func (s *EventSink) Handle(_ context.Context, e events.Event) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}
	s.client.WriteEvent(e)
	return nil
}
