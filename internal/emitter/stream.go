package emitter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/log"
)

// DefaultStreamAddr is where the outbound event consumer listens by default.
const DefaultStreamAddr = "127.0.0.1:5050"

var errNotConnected = errors.New("stream not connected")

// StreamConfig configures a StreamSink.
type StreamConfig struct {
	Addr         string
	Mode         DeliveryMode
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// DialRetries bounds the retries of the initial dial in required mode.
	DialRetries uint64
	// RedialInterval is the minimum gap between re-dials in best-effort mode.
	RedialInterval time.Duration
}

func (c *StreamConfig) setDefaults() {
	if c.Mode == "" {
		c.Mode = ModeRequired
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = time.Second
	}
	if c.DialRetries == 0 {
		c.DialRetries = 3
	}
	if c.RedialInterval <= 0 {
		c.RedialInterval = 2 * time.Second
	}
}

type wireEvent struct {
	Gesture string `json:"gesture"`
}

// EncodeWire returns the newline-terminated wire form of ev.
func EncodeWire(ev gesture.Event) ([]byte, error) {
	data, err := jsoniter.Marshal(wireEvent{Gesture: string(ev.Label)})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// StreamSink writes events to a persistent TCP connection, one JSON object
// per line. It owns the connection.
type StreamSink struct {
	cfg     StreamConfig
	mu      sync.Mutex
	conn    net.Conn
	limiter *rate.Limiter
	dialer  net.Dialer
}

// DialStream connects to cfg.Addr. In required mode the dial is retried with
// exponential backoff and a final failure wraps ErrDeliveryFailure; a dial
// abandoned because ctx ended returns the context error instead. In
// best-effort mode a failed dial is logged and retried on later events.
func DialStream(ctx context.Context, cfg StreamConfig) (*StreamSink, error) {
	cfg.setDefaults()
	s := &StreamSink{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.RedialInterval), 1),
		dialer:  net.Dialer{Timeout: cfg.DialTimeout},
	}

	if cfg.Mode == ModeBestEffort {
		s.limiter.Allow()
		if err := s.dial(ctx); err != nil {
			log.Warn(log.Fields{"addr": cfg.Addr, "error": err}, "event stream unavailable, will retry")
		}
		return s, nil
	}

	backoff := retry.WithMaxRetries(cfg.DialRetries, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.dial(ctx); err != nil {
			log.Debug(log.Fields{"addr": cfg.Addr, "error": err}, "dial event stream")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.Addr, ctxErr)
		}
		return nil, fmt.Errorf("%w: connect %s: %v", ErrDeliveryFailure, cfg.Addr, err)
	}
	return s, nil
}

func (s *StreamSink) dial(ctx context.Context) error {
	conn, err := s.dialer.DialContext(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.conn = conn
	log.Info(log.Fields{"addr": s.cfg.Addr}, "event stream connected")
	return nil
}

func (s *StreamSink) Name() string { return "stream" }

// Connected reports whether a connection is currently held.
func (s *StreamSink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Deliver writes one line. On a write error the connection is dropped; in
// best-effort mode a later Deliver re-dials at most once per RedialInterval.
func (s *StreamSink) Deliver(ctx context.Context, ev gesture.Event) error {
	line, err := EncodeWire(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if s.cfg.Mode != ModeBestEffort || !s.limiter.Allow() {
			return errNotConnected
		}
		if err := s.dial(ctx); err != nil {
			return fmt.Errorf("redial %s: %w", s.cfg.Addr, err)
		}
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		s.drop()
		return err
	}
	if _, err := s.conn.Write(line); err != nil {
		s.drop()
		return fmt.Errorf("write %s: %w", s.cfg.Addr, err)
	}
	return nil
}

func (s *StreamSink) drop() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Close closes the connection if one is held.
func (s *StreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
