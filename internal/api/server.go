package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/meshgate-core/internal/audit"
	"github.com/nerrad567/meshgate-core/internal/auth"
	"github.com/nerrad567/meshgate-core/internal/camera"
	"github.com/nerrad567/meshgate-core/internal/device"
	"github.com/nerrad567/meshgate-core/internal/gateway"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/config"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/database"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/logging"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/metrics"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshgate-core/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	DB       *database.DB

	Admin      *auth.Admin
	Gateways   *gateway.Registry
	Devices    *device.Registry
	Reconciler *device.Reconciler
	Authorizer *relay.Authorizer
	Cameras    *camera.Projector

	AuditRepo audit.Repository    // optional
	Metrics   *metrics.Metrics    // optional
	MQTT      *mqtt.Client        // optional, reported by health
	InfluxDB  *influxdb.Client    // optional, reported by health
	Relay     *relay.StatusClient // optional, reported by health
	Version   string
}

// Server is the HTTP API server for meshgate core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg    config.APIConfig
	wsCfg  config.WebSocketConfig
	secCfg config.SecurityConfig
	logger *logging.Logger
	db     *database.DB

	admin      *auth.Admin
	gateways   *gateway.Registry
	devices    *device.Registry
	reconciler *device.Reconciler
	authorizer *relay.Authorizer
	cameras    *camera.Projector

	auditRepo audit.Repository
	auditCh   chan *audit.Entry
	metrics   *metrics.Metrics
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	relay     *relay.StatusClient

	version   string
	startTime time.Time
	hub       *Hub
	router    http.Handler
	server    *http.Server
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called, but its router and
// WebSocket hub exist immediately so the hub can be registered as an
// event sink before traffic arrives.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.DB == nil:
		return nil, errors.New("database is required")
	case deps.Admin == nil:
		return nil, errors.New("admin identity is required")
	case deps.Gateways == nil, deps.Devices == nil, deps.Reconciler == nil:
		return nil, errors.New("gateway registry, device registry and reconciler are required")
	case deps.Authorizer == nil:
		return nil, errors.New("relay authorizer is required")
	case deps.Cameras == nil:
		return nil, errors.New("camera projector is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		db:         deps.DB,
		admin:      deps.Admin,
		gateways:   deps.Gateways,
		devices:    deps.Devices,
		reconciler: deps.Reconciler,
		authorizer: deps.Authorizer,
		cameras:    deps.Cameras,
		auditRepo:  deps.AuditRepo,
		metrics:    deps.Metrics,
		mqtt:       deps.MQTT,
		influx:     deps.InfluxDB,
		relay:      deps.Relay,
		version:    deps.Version,
		startTime:  time.Now(),
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	s.router = s.buildRouter()

	return s, nil
}

// Hub returns the WebSocket hub. It implements events.Sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the server's root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and the audit writer, then launches the
// HTTP listener in a background goroutine. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	if s.server != nil {
		return errors.New("api server already started")
	}

	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.auditCh != nil {
		go s.drainAuditLog(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, audit writer)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
