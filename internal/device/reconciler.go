package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/meshgate-core/internal/events"
	"github.com/nerrad567/meshgate-core/internal/gateway"
)

// GatewayAuthenticator resolves a gateway API key. *gateway.Registry
// implements it.
type GatewayAuthenticator interface {
	Authenticate(ctx context.Context, key string) (*gateway.Gateway, bool)
}

// Reconciler merges the device list a gateway reports at boot into the
// inventory. It only ever adds devices: entries already known are left
// untouched, and devices the gateway no longer reports are kept.
type Reconciler struct {
	gateways GatewayAuthenticator
	repo     Repository
	logger   Logger
	notifier events.Notifier
	now      func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(gateways GatewayAuthenticator, repo Repository) *Reconciler {
	return &Reconciler{
		gateways: gateways,
		repo:     repo,
		logger:   noopLogger{},
		notifier: events.Nop{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// SetNotifier sets where device.registered events are sent.
func (r *Reconciler) SetNotifier(n events.Notifier) {
	r.notifier = n
}

// Register authenticates key and reconciles reported against the
// gateway's known devices.
//
// The key is checked before anything else, so an invalid key fails with
// ErrUnauthorized whatever the list holds. An empty list fails with
// ErrNoDevices. Entries with an empty name or type are skipped. Every
// other entry yields one Outcome, in input order. Running Register again
// with the same list reports every device as existing with the same ID.
func (r *Reconciler) Register(ctx context.Context, key string, reported []Reported) (*Registration, error) {
	gw, ok := r.gateways.Authenticate(ctx, key)
	if !ok {
		return nil, ErrUnauthorized
	}
	if len(reported) == 0 {
		return nil, ErrNoDevices
	}

	reg := &Registration{
		Gateway:    gw.Name,
		GatewayID:  gw.ID,
		Registered: make([]Outcome, 0, len(reported)),
	}

	for i, rep := range reported {
		if rep.Name == "" || rep.Type == "" {
			r.logger.Debug("skipping reported device with missing field",
				"gateway_id", gw.ID, "index", i)
			continue
		}

		outcome, err := r.reconcileOne(ctx, gw.ID, rep)
		if err != nil {
			return nil, fmt.Errorf("registering %s %q: %w", rep.Type, rep.Name, err)
		}
		reg.Registered = append(reg.Registered, outcome)

		if outcome.Status == StatusCreated {
			r.notifier.Notify(ctx, events.Event{
				Type:      events.TypeDeviceRegistered,
				GatewayID: gw.ID,
				DeviceID:  outcome.ID,
				Data:      map[string]any{"name": outcome.Name, "type": outcome.Type},
			})
		}
	}

	r.logger.Info("gateway devices reconciled",
		"gateway_id", gw.ID,
		"reported", len(reported),
		"created", reg.Count(StatusCreated),
		"existing", reg.Count(StatusExisting),
	)
	return reg, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, gatewayID string, rep Reported) (Outcome, error) {
	outcome := Outcome{Name: rep.Name, Type: rep.Type}

	existing, err := r.repo.FindByNaturalKey(ctx, gatewayID, rep.Name, rep.Type)
	switch {
	case err == nil:
		outcome.ID = existing.ID
		outcome.Status = StatusExisting
		return outcome, nil
	case !errors.Is(err, ErrDeviceNotFound):
		return outcome, err
	}

	now := r.now()
	d := &Device{
		ID:          IDPrefix + uuid.NewString(),
		Name:        rep.Name,
		Type:        rep.Type,
		Description: rep.Name,
		GatewayID:   gatewayID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	inserted, err := r.repo.InsertIfAbsent(ctx, d)
	if err != nil {
		return outcome, err
	}
	if inserted {
		outcome.ID = d.ID
		outcome.Status = StatusCreated
		return outcome, nil
	}

	// Lost a race with a concurrent registration: the winner's row is the device.
	winner, err := r.repo.FindByNaturalKey(ctx, gatewayID, rep.Name, rep.Type)
	if err != nil {
		return outcome, fmt.Errorf("reading conflicting device: %w", err)
	}
	outcome.ID = winner.ID
	outcome.Status = StatusExisting
	return outcome, nil
}
