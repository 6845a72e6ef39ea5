package relay

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nerrad567/meshgate-core/internal/events"
	"github.com/nerrad567/meshgate-core/internal/gateway"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/config"
)

// localAPIURLParam is the query parameter a gateway may append to its
// publish URL to report its control address.
const localAPIURLParam = "local_api_url"

// Decision reasons.
const (
	ReasonUnrestricted  = "unrestricted action"
	ReasonAuthenticated = "gateway authenticated"
	ReasonWrongUser     = "publish user mismatch"
	ReasonBadCredential = "invalid api key or inactive gateway"
	ReasonInternal      = "internal error"
)

// Gateways is the part of the gateway registry the authorizer needs.
// *gateway.Registry implements it.
type Gateways interface {
	Authenticate(ctx context.Context, key string) (*gateway.Gateway, bool)
	RecordLocalAPIURL(ctx context.Context, id, url string) error
}

// Recorder receives every authorization outcome. *influxdb.Client and
// *metrics.Metrics implement it.
type Recorder interface {
	RecordRelayDecision(action string, allowed bool, reason string)
}

// Logger defines the logging interface used by the Authorizer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Request is the body of the relay's authorization callback.
type Request struct {
	User     string `json:"user"`
	Password string `json:"password"`
	IP       string `json:"ip"`
	Action   string `json:"action"`
	Path     string `json:"path"`
	Protocol string `json:"protocol"`
	ID       string `json:"id"`
	Query    string `json:"query"`

	// LocalAPIURL is an optional control address reported by the gateway.
	// When empty, the local_api_url parameter of Query is used instead.
	LocalAPIURL string `json:"local_api_url,omitempty"`
}

// addressHint returns the control address carried by the request, if any.
func (r Request) addressHint() string {
	if hint := strings.TrimSpace(r.LocalAPIURL); hint != "" {
		return hint
	}
	if r.Query == "" {
		return ""
	}
	values, err := url.ParseQuery(r.Query)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(values.Get(localAPIURLParam))
}

// Decision is the authorizer's answer.
type Decision struct {
	Allow     bool
	Action    Action
	Reason    string
	GatewayID string
}

// Authorizer answers the relay's authorization callback.
type Authorizer struct {
	publishUser string
	gateways    Gateways
	logger      Logger
	notifier    events.Notifier
	recorders   []Recorder
}

// NewAuthorizer creates an Authorizer. The publish user comes from
// configuration and never changes while the process runs.
func NewAuthorizer(cfg config.RelayConfig, gateways Gateways) *Authorizer {
	return &Authorizer{
		publishUser: cfg.PublishUser,
		gateways:    gateways,
		logger:      noopLogger{},
		notifier:    events.Nop{},
	}
}

// SetLogger sets the logger for the authorizer.
func (a *Authorizer) SetLogger(logger Logger) {
	a.logger = logger
}

// SetNotifier sets where relay.denied events are sent.
func (a *Authorizer) SetNotifier(n events.Notifier) {
	a.notifier = n
}

// AddRecorder registers a Recorder. Call before the authorizer serves
// requests.
func (a *Authorizer) AddRecorder(r Recorder) {
	a.recorders = append(a.recorders, r)
}

// Authorize decides whether the relay may carry out req.
//
// read, playback and other actions are always allowed. publish is allowed
// only when the user is the configured publish user and the password
// authenticates an active gateway; this costs exactly one lookup. Every
// failure, including a panic further down, is a logged deny.
func (a *Authorizer) Authorize(ctx context.Context, req Request) (d Decision) {
	action := ParseAction(req.Action)

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("relay authorization panicked", "action", action.String(), "path", req.Path, "panic", fmt.Sprint(r))
			d = Decision{Allow: false, Action: action, Reason: ReasonInternal}
		}
		if !d.Allow {
			a.deny(ctx, req, d)
		}
		for _, rec := range a.recorders {
			rec.RecordRelayDecision(d.Action.String(), d.Allow, d.Reason)
		}
	}()

	switch action {
	case ActionRead, ActionPlayback, ActionOther:
		return Decision{Allow: true, Action: action, Reason: ReasonUnrestricted}
	case ActionPublish:
		return a.authorizePublish(ctx, req)
	default:
		return Decision{Allow: false, Action: action, Reason: ReasonInternal}
	}
}

func (a *Authorizer) authorizePublish(ctx context.Context, req Request) Decision {
	if a.publishUser == "" || req.User != a.publishUser {
		return Decision{Allow: false, Action: ActionPublish, Reason: ReasonWrongUser}
	}

	gw, ok := a.gateways.Authenticate(ctx, req.Password)
	if !ok {
		return Decision{Allow: false, Action: ActionPublish, Reason: ReasonBadCredential}
	}

	if hint := req.addressHint(); hint != "" {
		if err := a.gateways.RecordLocalAPIURL(ctx, gw.ID, hint); err != nil {
			a.logger.Warn("recording gateway local api url failed", "gateway_id", gw.ID, "error", err)
		}
	}

	a.logger.Debug("relay publish authorized", "gateway_id", gw.ID, "path", req.Path)
	return Decision{Allow: true, Action: ActionPublish, Reason: ReasonAuthenticated, GatewayID: gw.ID}
}

func (a *Authorizer) deny(ctx context.Context, req Request, d Decision) {
	a.logger.Warn("relay action denied",
		"action", d.Action.String(),
		"reason", d.Reason,
		"user", req.User,
		"path", req.Path,
		"ip", req.IP,
	)
	a.notifier.Notify(ctx, events.Event{
		Type: events.TypeRelayDenied,
		Data: map[string]any{
			"action": d.Action.String(),
			"reason": d.Reason,
			"path":   req.Path,
			"ip":     req.IP,
		},
	})
}
