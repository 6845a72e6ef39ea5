// Package events carries gateway lifecycle notifications from the domain
// packages to observers (MQTT, WebSocket clients, InfluxDB).
//
// Publishing never blocks a request: events are queued on a bounded
// channel and dispatched by Bus.Run. When the queue is full the event is
// dropped and a warning is logged.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	TypeGatewayCreated       = "gateway.created"
	TypeGatewayToggled       = "gateway.toggled"
	TypeGatewayDeleted       = "gateway.deleted"
	TypeGatewayAuthenticated = "gateway.authenticated"
	TypeDeviceRegistered     = "device.registered"
	TypeDeviceUpdated        = "device.updated"
	TypeDeviceDeleted        = "device.deleted"
	TypeRelayDenied          = "relay.denied"
)

// busBufferSize is the queue depth before events are dropped.
const busBufferSize = 256

// Event is a single lifecycle notification.
type Event struct {
	Type      string         `json:"type"`
	GatewayID string         `json:"gateway_id,omitempty"`
	DeviceID  string         `json:"device_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier accepts events. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Sink receives dispatched events.
type Sink interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

// Logger defines the logging interface used by the Bus.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Nop is a Notifier that discards every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Event) {}

// Bus fans events out to sinks from a single dispatch goroutine.
type Bus struct {
	queue  chan Event
	sinks  []Sink
	mu     sync.RWMutex
	logger Logger
}

// NewBus creates a Bus with the given sinks.
func NewBus(sinks ...Sink) *Bus {
	return &Bus{
		queue:  make(chan Event, busBufferSize),
		sinks:  sinks,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the bus.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// AddSink registers another sink. Safe to call while Run is active.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Notify queues an event. The timestamp is filled in if unset.
func (b *Bus) Notify(_ context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case b.queue <- e:
	default:
		b.logger.Warn("event queue full, dropping event", "type", e.Type)
	}
}

// Run dispatches queued events until ctx is cancelled, then drains what
// is left in the queue.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case e := <-b.queue:
			b.dispatch(ctx, e)
		case <-ctx.Done():
			for {
				select {
				case e := <-b.queue:
					b.dispatch(context.WithoutCancel(ctx), e)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Handle(ctx, e); err != nil {
			b.logger.Warn("event sink failed", "sink", s.Name(), "type", e.Type, "error", err)
		}
	}
}
