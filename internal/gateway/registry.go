package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/meshgate-core/internal/auth"
	"github.com/nerrad567/meshgate-core/internal/events"
)

// Logger defines the logging interface used by the Registry.
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

// Registry manages gateway identity on top of a Repository.
//
// There is no cache: every Authenticate reads the store, so
// ToggleActive is observed by the next call. All methods are safe for
// concurrent use.
type Registry struct {
	repo     Repository
	logger   Logger
	notifier events.Notifier
	now      func() time.Time
}

// NewRegistry creates a gateway registry over repo.
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

// Create issues a new secret and stores a gateway holding its hash.
// The plaintext key is only available in the returned CreateResult.
func (r *Registry) Create(ctx context.Context, name, organizationID string) (*CreateResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLength {
		return nil, ErrInvalidName
	}

	secret, err := auth.IssueSecret()
	if err != nil {
		return nil, fmt.Errorf("issuing gateway secret: %w", err)
	}

	now := r.now()
	g := &Gateway{
		ID:             IDPrefix + uuid.NewString(),
		Name:           name,
		OrganizationID: strings.TrimSpace(organizationID),
		APIKeyHash:     secret.Hash,
		APIKeyPrefix:   secret.Prefix,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.repo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	r.logger.Info("gateway created", "gateway_id", g.ID, "name", g.Name, "key_prefix", g.APIKeyPrefix)
	r.notifier.Notify(ctx, events.Event{
		Type:      events.TypeGatewayCreated,
		GatewayID: g.ID,
		Data:      map[string]any{"name": g.Name},
	})

	return &CreateResult{Gateway: g, APIKey: secret.Plaintext}, nil
}

// List returns all gateways, newest first.
func (r *Registry) List(ctx context.Context) ([]Gateway, error) {
	gateways, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing gateways: %w", err)
	}
	if gateways == nil {
		gateways = []Gateway{}
	}
	return gateways, nil
}

// Get returns a single gateway.
func (r *Registry) Get(ctx context.Context, id string) (*Gateway, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	return r.repo.GetByID(ctx, id)
}

// ToggleActive flips the gateway's active flag and returns the new state.
func (r *Registry) ToggleActive(ctx context.Context, id string) (*Gateway, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	g, err := r.repo.ToggleActive(ctx, id, r.now())
	if err != nil {
		return nil, err
	}

	r.logger.Info("gateway toggled", "gateway_id", g.ID, "active", g.Active)
	r.notifier.Notify(ctx, events.Event{
		Type:      events.TypeGatewayToggled,
		GatewayID: g.ID,
		Data:      map[string]any{"active": g.Active},
	})
	return g, nil
}

// Delete removes a gateway and every device it owns.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.logger.Info("gateway deleted", "gateway_id", id)
	r.notifier.Notify(ctx, events.Event{Type: events.TypeGatewayDeleted, GatewayID: id})
	return nil
}

// Authenticate resolves a plaintext key to an active gateway.
//
// The key is hashed exactly as presented. It fails closed: an empty key,
// an unknown key, a hash mismatch, an inactive gateway and a store error
// all return (nil, false). On success last_seen_at is stamped before the
// gateway is returned.
func (r *Registry) Authenticate(ctx context.Context, key string) (*Gateway, bool) {
	if key == "" {
		return nil, false
	}

	g, err := r.repo.GetByKeyHash(ctx, auth.HashSecret(key))
	if err != nil {
		if !errors.Is(err, ErrGatewayNotFound) {
			r.logger.Error("gateway lookup failed", "error", err)
		}
		return nil, false
	}

	if !auth.VerifySecret(key, g.APIKeyHash) {
		return nil, false
	}
	if !g.Active {
		r.logger.Debug("inactive gateway presented key", "gateway_id", g.ID)
		return nil, false
	}

	seen := r.now()
	if err := r.repo.TouchLastSeen(ctx, g.ID, seen); err != nil {
		r.logger.Warn("updating gateway last seen failed", "gateway_id", g.ID, "error", err)
	} else {
		g.LastSeenAt = &seen
	}

	r.notifier.Notify(ctx, events.Event{Type: events.TypeGatewayAuthenticated, GatewayID: g.ID})
	return g, true
}

// RecordLocalAPIURL stores the address a gateway reported for device
// control callbacks. Last write wins; reachability is not checked.
func (r *Registry) RecordLocalAPIURL(ctx context.Context, id, url string) error {
	url = strings.TrimSpace(url)
	if id == "" {
		return ErrInvalidID
	}
	if url == "" {
		return nil
	}
	if err := r.repo.SetLocalAPIURL(ctx, id, url, r.now()); err != nil {
		return fmt.Errorf("recording local api url: %w", err)
	}
	r.logger.Debug("gateway local api url recorded", "gateway_id", id, "url", url)
	return nil
}
