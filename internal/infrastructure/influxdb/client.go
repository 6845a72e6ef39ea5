package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/meshgate-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Applied when batch_size or flush_interval is unset or negative.
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	// Every point carries service=meshgate.
	serviceTag  = "service"
	serviceName = "meshgate"
)

// Client records gateway lifecycle events and relay authorisation
// decisions in one bucket. Points are queued on a non-blocking write API
// and shipped in batches; a failed batch is reported to the error handler
// rather than to the caller that queued it.
//
// All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu     sync.RWMutex
	closed bool
}

// Option customises a Client at Connect time.
type Option func(*options)

type options struct {
	onError func(error)
}

// WithErrorHandler receives errors from batches that failed to write.
// Without it those errors are dropped.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// writeOptions turns the batching settings into client options. Event
// timestamps carry milliseconds, so points are written at that precision.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flush := time.Duration(cfg.FlushInterval) * time.Second
	if flush <= 0 {
		flush = defaultFlushInterval
	}

	// #nosec G115 -- both values are positive after the defaults above
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flush.Milliseconds())).
		SetPrecision(time.Millisecond).
		AddDefaultTag(serviceTag, serviceName)
}

// Connect pings the server and opens the batched write API for
// cfg.Bucket. It returns ErrDisabled when the integration is switched off
// and ErrConnectionFailed when the server does not answer healthy.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go drainWriteErrors(c.writeAPI.Errors(), o.onError)
	return c, nil
}

// drainWriteErrors runs until the write API closes its error channel.
func drainWriteErrors(errs <-chan error, onError func(error)) {
	for err := range errs {
		if onError != nil {
			onError(err)
		}
	}
}

// Close flushes queued points and releases the client. Repeat calls are
// no-ops.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server. It is the active counterpart of
// IsConnected, which only reports whether Close has run.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected reports whether the client is open. A nil client is never
// connected.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Flush blocks until every queued point has been sent. It is a no-op once
// the client is closed.
func (c *Client) Flush() {
	if !c.IsConnected() || c.writeAPI == nil {
		return
	}
	c.writeAPI.Flush()
}
