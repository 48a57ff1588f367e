package emitter

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/log"
)

// DefaultRedisChannel is the pub/sub channel events are published to.
const DefaultRedisChannel = "wave:gestures"

// DefaultPublishTimeout bounds one publish, including dial and retries.
const DefaultPublishTimeout = 500 * time.Millisecond

// Publisher is the part of *redis.Client the sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisOptions configures NewRedisSink.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	// Timeout bounds each publish. Zero selects DefaultPublishTimeout.
	Timeout time.Duration
}

// RedisSink publishes every event as JSON to a Redis channel.
type RedisSink struct {
	client  Publisher
	channel string
	timeout time.Duration
}

// NewRedisSink connects to Redis. An unreachable server is logged, not
// returned, since the client reconnects on its own.
func NewRedisSink(ctx context.Context, opts RedisOptions) *RedisSink {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPublishTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.Timeout,
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
		MaxRetries:   1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*opts.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn(log.Fields{"addr": opts.Addr, "error": err}, "failed to connect to redis")
	} else {
		log.Info(log.Fields{"addr": opts.Addr}, "connected to redis")
	}

	return newRedisSink(client, opts.Channel, opts.Timeout)
}

func newRedisSink(client Publisher, channel string, timeout time.Duration) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &RedisSink{client: client, channel: channel, timeout: timeout}
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) Deliver(ctx context.Context, ev gesture.Event) error {
	payload, err := jsoniter.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
