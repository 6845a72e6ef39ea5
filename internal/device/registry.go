package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/meshgate-core/internal/events"
)

// Logger defines the logging interface used by the Registry and Reconciler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry exposes the administrative operations on the device inventory.
// Devices are never created here; see Reconciler.
type Registry struct {
	repo     Repository
	logger   Logger
	notifier events.Notifier
	now      func() time.Time
}

// NewRegistry creates a device registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:     repo,
		logger:   noopLogger{},
		notifier: events.Nop{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetNotifier sets where lifecycle events are sent.
func (r *Registry) SetNotifier(n events.Notifier) {
	r.notifier = n
}

// List returns every device with its gateway, ordered by gateway name,
// type and name.
func (r *Registry) List(ctx context.Context) ([]View, error) {
	views, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if views == nil {
		views = []View{}
	}
	return views, nil
}

// ListByType returns every device of one type with its gateway.
func (r *Registry) ListByType(ctx context.Context, deviceType string) ([]View, error) {
	views, err := r.repo.ListByType(ctx, deviceType)
	if err != nil {
		return nil, fmt.Errorf("listing %s devices: %w", deviceType, err)
	}
	if views == nil {
		views = []View{}
	}
	return views, nil
}

// Get returns a single device with its gateway.
func (r *Registry) Get(ctx context.Context, id string) (*View, error) {
	return r.repo.GetByID(ctx, id)
}

// UpdateDescription replaces a device's description. The description is
// trimmed and must not be blank.
func (r *Registry) UpdateDescription(ctx context.Context, id, description string) (*Device, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrInvalidDescription
	}

	d, err := r.repo.UpdateDescription(ctx, id, description, r.now())
	if err != nil {
		return nil, err
	}

	r.logger.Info("device description updated", "device_id", d.ID)
	r.notifier.Notify(ctx, events.Event{
		Type:      events.TypeDeviceUpdated,
		GatewayID: d.GatewayID,
		DeviceID:  d.ID,
		Data:      map[string]any{"description": d.Description},
	})
	return d, nil
}

// Delete removes a device. A gateway reporting it again on its next boot
// recreates it with a new ID.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.logger.Info("device deleted", "device_id", id)
	r.notifier.Notify(ctx, events.Event{Type: events.TypeDeviceDeleted, DeviceID: id})
	return nil
}
