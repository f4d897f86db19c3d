package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/mqttconnect/internal/infrastructure/config"
)

const (
	pingTimeout    = 5 * time.Second
	connectTimeout = 10 * time.Second

	fallbackBatchSize     = 100
	fallbackFlushInterval = 10 * time.Second
)

// Client batches connect-attempt points into an InfluxDB v2 bucket.
// Writes never block the caller; the client library flushes them in the
// background. Methods are safe for concurrent use.
type Client struct {
	influx influxdb2.Client
	writer api.WriteAPI
	cfg    config.InfluxDBConfig

	// state guards open and the writer's lifetime; writes hold it shared,
	// Close exclusively.
	state sync.RWMutex
	open  bool

	mu      sync.RWMutex
	onError func(error)
}

// writeOptions maps the config's batching settings onto client options,
// substituting fallbacks for unset values.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(fallbackBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := fallbackFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	// #nosec G115 -- flush is a positive duration of at most a few minutes
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

// Connect pings the server at cfg.URL and returns a client writing to
// cfg.Org/cfg.Bucket.
//
// Returns:
//   - ErrDisabled when cfg.Enabled is false
//   - ErrConnectionFailed when the server cannot be reached or reports unhealthy
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	if err := ping(ctx, influx, connectTimeout); err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		influx: influx,
		writer: influx.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:    cfg,
		open:   true,
	}
	// Subscribe before any point is written or early failures are dropped.
	go c.forwardErrors(c.writer.Errors())
	return c, nil
}

func ping(ctx context.Context, influx influxdb2.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := influx.Ping(ctx)
	switch {
	case err != nil:
		return err
	case !ok:
		return errors.New("server reported unhealthy")
	}
	return nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		fn := c.onError
		c.mu.RUnlock()
		if fn != nil {
			fn(err)
		}
	}
}

// SetOnError registers fn to receive failures from background writes.
func (c *Client) SetOnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// IsConnected reports whether Close has not yet been called.
func (c *Client) IsConnected() bool {
	c.state.RLock()
	defer c.state.RUnlock()
	return c.open
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ping(ctx, c.influx, pingTimeout); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush writes any buffered points now. It does nothing after Close.
func (c *Client) Flush() {
	c.state.RLock()
	defer c.state.RUnlock()
	if c.open {
		c.writer.Flush()
	}
}

// Close flushes buffered points and shuts the client down. It may be called
// more than once and on a nil *Client.
func (c *Client) Close() error {
	if c == nil || c.influx == nil {
		return nil
	}

	c.state.Lock()
	defer c.state.Unlock()
	if !c.open {
		return nil
	}
	c.open = false
	c.writer.Flush()
	c.influx.Close()
	return nil
}
