// meshgate core - trust layer between field gateways, the media relay and
// the admin dashboard.
//
// The process serves the admin REST API and WebSocket feed, answers the
// relay's authorization callback, and fans lifecycle events out to MQTT,
// InfluxDB and Prometheus.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/meshgate-core/migrations"

	"github.com/nerrad567/meshgate-core/internal/api"
	"github.com/nerrad567/meshgate-core/internal/audit"
	"github.com/nerrad567/meshgate-core/internal/auth"
	"github.com/nerrad567/meshgate-core/internal/camera"
	"github.com/nerrad567/meshgate-core/internal/device"
	"github.com/nerrad567/meshgate-core/internal/events"
	"github.com/nerrad567/meshgate-core/internal/gateway"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/config"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/database"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/logging"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/metrics"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshgate-core/internal/relay"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting meshgate core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	admin, err := auth.NewAdmin(cfg.Admin)
	if err != nil {
		return fmt.Errorf("loading admin identity: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	mqttClient := connectMQTT(cfg.MQTT, log)
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient := connectInfluxDB(ctx, cfg.InfluxDB, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	m := metrics.New()

	bus := events.NewBus(m)
	bus.SetLogger(log)
	if mqttClient != nil {
		bus.AddSink(mqtt.NewEventSink(mqttClient))
	}
	if influxClient != nil {
		bus.AddSink(influxdb.NewEventSink(influxClient))
	}

	gateways := gateway.NewRegistry(gateway.NewSQLiteRepository(db.DB))
	gateways.SetLogger(log)
	gateways.SetNotifier(bus)

	deviceRepo := device.NewSQLiteRepository(db.DB)
	devices := device.NewRegistry(deviceRepo)
	devices.SetLogger(log)
	devices.SetNotifier(bus)

	reconciler := device.NewReconciler(gateways, deviceRepo)
	reconciler.SetLogger(log)
	reconciler.SetNotifier(bus)

	authorizer := relay.NewAuthorizer(cfg.Relay, gateways)
	authorizer.SetLogger(log)
	authorizer.SetNotifier(bus)
	authorizer.AddRecorder(m)
	if influxClient != nil {
		authorizer.AddRecorder(influxClient)
	}

	relayStatus := relay.NewStatusClient(cfg.Relay)
	cameras := camera.NewProjector(relayStatus, devices)

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		DB:         db,
		Admin:      admin,
		Gateways:   gateways,
		Devices:    devices,
		Reconciler: reconciler,
		Authorizer: authorizer,
		Cameras:    cameras,
		AuditRepo:  audit.NewSQLiteRepository(db.DB),
		Metrics:    m,
		MQTT:       mqttClient,
		InfluxDB:   influxClient,
		Relay:      relayStatus,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	bus.AddSink(srv.Hub())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bus.Run(gctx)
		return nil
	})

	if err := srv.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"relay", cfg.Relay.APIURL,
	)

	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if closeErr := srv.Close(); closeErr != nil {
		log.Error("error closing API server", "error", closeErr)
	}
	if waitErr := g.Wait(); waitErr != nil {
		return waitErr
	}

	// Deferred Close() calls run in reverse order: InfluxDB, MQTT, database.
	log.Info("meshgate core stopped")
	return nil
}

// connectMQTT returns a connected client, or nil when MQTT is disabled or
// the broker is unreachable. Events then stay local.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) *mqtt.Client {
	client, err := mqtt.Connect(cfg)
	switch {
	case errors.Is(err, mqtt.ErrDisabled):
		log.Info("MQTT disabled")
		return nil
	case err != nil:
		log.Warn("MQTT unavailable, continuing without event publishing", "error", err)
		return nil
	}

	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client
}

// connectInfluxDB returns a connected client, or nil when InfluxDB is
// disabled or unreachable.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(ctx, cfg, influxdb.WithErrorHandler(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	}))
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		return nil
	case err != nil:
		log.Warn("InfluxDB unavailable, continuing without telemetry", "error", err)
		return nil
	}

	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}

// getConfigPath returns the configuration file path.
// Uses MESHGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MESHGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// hashPassword reads a password from the first line of in and writes its
// argon2id PHC hash, ready for admin.password_hash.
func hashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password is empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
