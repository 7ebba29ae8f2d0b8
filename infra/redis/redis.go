// Package redis fans dispatch events out over Redis pub/sub and an optional
// list queue for consumers that must not miss events.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/ers/core/events"
	coremon "github.com/kilianp07/ers/core/monitoring"
	"github.com/kilianp07/ers/infra/logger"
)

// Config holds the Redis connection and channel settings.
type Config struct {
	Addr          string `json:"addr"`
	Password      string `json:"password"`
	DB            int    `json:"db"`
	PoolSize      int    `json:"pool_size"`
	ChannelPrefix string `json:"channel_prefix"`
	// QueueKey enables LPUSH of every event onto this list when set.
	QueueKey string `json:"queue_key"`
	// QueueMaxLen trims the queue to the newest entries; 0 keeps everything.
	QueueMaxLen int `json:"queue_max_len"`
	TimeoutMS   int `json:"timeout_ms"`
}

// Enabled reports whether a Redis address is configured.
func (c Config) Enabled() bool { return c.Addr != "" }

func (c *Config) SetDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "ers"
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 1000
	}
}

func (c Config) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("redis: db must be >= 0")
	}
	if c.QueueMaxLen < 0 {
		return fmt.Errorf("redis: queue_max_len must be >= 0")
	}
	return nil
}

func (c Config) timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }

// NewClient creates a client and checks the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Envelope is the queued form of an event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    time.Time       `json:"at"`
}

// Publisher implements events.Publisher on Redis.
type Publisher struct {
	rdb *redis.Client
	cfg Config
	log logger.Logger
	now func() time.Time
}

// NewPublisher wraps an existing client.
func NewPublisher(rdb *redis.Client, cfg Config, log logger.Logger) (*Publisher, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis: nil client provided to NewPublisher")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("redis")
	}
	return &Publisher{rdb: rdb, cfg: cfg, log: log, now: time.Now}, nil
}

// Channel returns the pub/sub channel of an event name.
func (p *Publisher) Channel(name string) string {
	return p.cfg.ChannelPrefix + ":" + name
}

// Publish sends e and logs failures.
func (p *Publisher) Publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.timeout())
	defer cancel()
	if err := p.Send(ctx, e); err != nil {
		p.log.Errorf("publish %s: %v", e.EventName(), err)
		coremon.CaptureException(err, map[string]string{"module": "redis", "event": e.EventName()})
	}
}

// Send publishes e on its channel and, when a queue is configured, pushes
// the envelope onto the queue in the same pipeline.
func (p *Publisher) Send(ctx context.Context, e events.Event) error {
	name := e.EventName()
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, p.Channel(name), data)
	if p.cfg.QueueKey != "" {
		env, err := json.Marshal(Envelope{Event: name, Data: data, At: p.now()})
		if err != nil {
			return fmt.Errorf("failed to marshal envelope: %w", err)
		}
		pipe.LPush(ctx, p.cfg.QueueKey, env)
		if p.cfg.QueueMaxLen > 0 {
			pipe.LTrim(ctx, p.cfg.QueueKey, 0, int64(p.cfg.QueueMaxLen-1))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish %s to Redis: %w", name, err)
	}
	return nil
}

// Pop blocks up to timeout for the oldest queued envelope. It returns
// redis.Nil when the queue stays empty.
func (p *Publisher) Pop(ctx context.Context, timeout time.Duration) (Envelope, error) {
	if p.cfg.QueueKey == "" {
		return Envelope{}, fmt.Errorf("redis: no queue configured")
	}
	res, err := p.rdb.BRPop(ctx, timeout, p.cfg.QueueKey).Result()
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return env, nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error { return p.rdb.Close() }
