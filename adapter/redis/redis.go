// Package redis publishes run notifications over Redis pub/sub.
//
// Every event is published to the base channel. Failed and cancelled
// runs are additionally published to the base channel's ":alerts"
// sibling, so SOC subscribers can watch escalations without filtering
// the full stream.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/chaossec-io/chaossec/adapter"
)

// DefaultChannel is the base pub/sub channel.
const DefaultChannel = "chaossec:runs"

// AlertSuffix is appended to the base channel for escalation events.
const AlertSuffix = ":alerts"

// DefaultTimeout bounds one publish round trip.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the base channel (default chaossec:runs). Escalations
	// also go to Channel + ":alerts".
	Channel string
	// Timeout bounds one publish round trip (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Adapter publishes run completion events via Redis PUBLISH.
type Adapter struct {
	client  *goredis.Client
	channel string
	alerts  string
	timeout time.Duration
	tries   int
}

// New creates a Redis pub/sub adapter from the given config.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("redis adapter: retries must be >= 0, got %d", cfg.Retries)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Adapter{
		client:  goredis.NewClient(opts),
		channel: channel,
		alerts:  channel + AlertSuffix,
		timeout: timeout,
		tries:   1 + cfg.Retries,
	}, nil
}

// Channels returns the channels one event would be published to.
func (a *Adapter) Channels(event *adapter.RunCompletedEvent) []string {
	if event.Escalation() {
		return []string{a.channel, a.alerts}
	}
	return []string{a.channel}
}

// Publish implements adapter.Adapter. The event goes to every routed
// channel in one pipelined round trip, retried with backoff on failure.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	channels := a.Channels(event)

	return adapter.Retry(ctx, a.tries, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		pipe := a.client.Pipeline()
		for _, ch := range channels {
			pipe.Publish(sendCtx, ch, payload)
		}
		_, err := pipe.Exec(sendCtx)
		return err
	})
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
