package rosbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/ingest"
	"github.com/gamma-programme/rospitch/metric"
	"github.com/gamma-programme/rospitch/pkg/retry"
)

type operation struct {
	Op           string          `json:"op"`
	ID           string          `json:"id,omitempty"`
	Topic        string          `json:"topic,omitempty"`
	Type         string          `json:"type,omitempty"`
	ThrottleRate int             `json:"throttle_rate,omitempty"`
	QueueLength  int             `json:"queue_length,omitempty"`
	Msg          json.RawMessage `json:"msg,omitempty"`
	Level        string          `json:"level,omitempty"`
}

type clientMetrics struct {
	connected  prometheus.Gauge
	reconnects prometheus.Counter
	frames     *prometheus.CounterVec
}

func newClientMetrics(registry *metric.MetricsRegistry) (*clientMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}
	m := &clientMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rospitch",
			Subsystem: "rosbridge",
			Name:      "connected",
			Help:      "1 while the rosbridge websocket is open",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "rosbridge",
			Name:      "dial_attempts_total",
			Help:      "Websocket dial attempts",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rospitch",
			Subsystem: "rosbridge",
			Name:      "frames_total",
			Help:      "Frames received by op",
		}, []string{"op"}),
	}
	if err := registry.RegisterGauge("rosbridge", "connected", m.connected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("rosbridge", "dial_attempts", m.reconnects); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("rosbridge", "frames", m.frames); err != nil {
		return nil, err
	}
	return m, nil
}

// Option configures a Client.
type Option func(*Client)

// WithDiagnostics counts publish frames that fail to parse as malformed
// payloads of the topic's channel.
func WithDiagnostics(d *ingest.Diagnostics) Option {
	return func(c *Client) { c.diag = d }
}

// Client reads rosbridge frames and dispatches them to channel handlers.
type Client struct {
	cfg      Config
	handlers map[string]ingest.HandlerFunc // by topic name
	channels map[string]string              // topic name to channel
	diag     *ingest.Diagnostics
	subs     []operation
	logger   *slog.Logger
	metrics  *clientMetrics
	dialer   *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
}

// NewClient creates a client routing each configured channel's topic to its
// handler. Channels without a handler are not subscribed.
func NewClient(cfg Config, handlers map[string]ingest.HandlerFunc, logger *slog.Logger,
	registry *metric.MetricsRegistry, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	m, err := newClientMetrics(registry)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "NewClient", "metrics registration")
	}

	c := &Client{
		cfg:      cfg,
		handlers: make(map[string]ingest.HandlerFunc),
		channels: make(map[string]string),
		logger:   logger,
		metrics:  m,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout, TLSClientConfig: cfg.TLS},
	}

	topics := cfg.topics()
	channels := make([]string, 0, len(handlers))
	for ch := range handlers {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	for _, ch := range channels {
		topic, ok := topics[ch]
		if !ok || topic.Name == "" {
			continue
		}
		c.handlers[topic.Name] = handlers[ch]
		c.channels[topic.Name] = ch
		c.subs = append(c.subs, operation{
			Op:           "subscribe",
			ID:           fmt.Sprintf("subscribe:%s", topic.Name),
			Topic:        topic.Name,
			Type:         topic.Type,
			ThrottleRate: cfg.ThrottleRate,
			QueueLength:  cfg.QueueLength,
		})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run dials, subscribes and reads until ctx is cancelled or the reconnect
// policy is exhausted.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
	defer stop()

	for {
		conn, err := retry.DoWithResult(ctx, c.cfg.Reconnect, func() (*websocket.Conn, error) {
			return c.dial(ctx)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.WrapTransient(err, "Client", "Run", "dial rosbridge")
		}

		err = c.session(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("rosbridge connection lost", "url", c.cfg.URL, "error", err)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	if c.metrics != nil {
		c.metrics.reconnects.Inc()
	}
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.logger.Debug("rosbridge dial failed", "url", c.cfg.URL, "error", err)
		return nil, err
	}

	for _, op := range c.subs {
		if err := conn.WriteJSON(op); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (c *Client) session(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	if c.metrics != nil {
		c.metrics.connected.Set(1)
	}
	c.logger.Info("Connected to rosbridge", "url", c.cfg.URL, "topics", len(c.subs))

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.connected.Store(false)
		_ = conn.Close()
		if c.metrics != nil {
			c.metrics.connected.Set(0)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(ctx, data)
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	var op operation
	if err := json.Unmarshal(data, &op); err != nil {
		// rosbridge writes non-finite floats as bare NaN and Infinity, which
		// breaks the whole frame. Recover the route to count it.
		kind, topic := frameRoute(data)
		channel, subscribed := c.channels[topic]
		if subscribed && (kind == "" || kind == "publish") && c.diag != nil {
			if c.metrics != nil {
				c.metrics.frames.WithLabelValues("unparsable").Inc()
			}
			c.diag.Malformed(channel, err)
			return
		}
		c.logger.Debug("Ignoring unparsable rosbridge frame", "error", err)
		return
	}
	if c.metrics != nil {
		c.metrics.frames.WithLabelValues(op.Op).Inc()
	}

	switch op.Op {
	case "publish":
		if h, ok := c.handlers[op.Topic]; ok {
			h(ctx, op.Msg)
		}
	case "status":
		c.logger.Info("rosbridge status", "level", op.Level, "id", op.ID, "msg", string(op.Msg))
	}
}

// frameRoute reads the top-level op and topic of a frame that does not
// parse as a whole, stopping at the first invalid token.
func frameRoute(data []byte) (op, topic string) {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	atKey := true
	var key string
	for {
		tok, err := dec.Token()
		if err != nil {
			return op, topic
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				if depth == 1 {
					atKey = true
				}
				depth++
			default:
				depth--
			}
			continue
		}
		if depth != 1 {
			continue
		}
		if atKey {
			key, _ = tok.(string)
			atKey = false
			continue
		}
		if v, ok := tok.(string); ok {
			switch key {
			case "op":
				op = v
			case "topic":
				topic = v
			}
		}
		atKey = true
	}
}

// Connected reports whether a rosbridge session is currently open.
func (c *Client) Connected() bool { return c.connected.Load() }

// Close closes the current connection, if any. Run keeps redialling until
// its context is cancelled.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.conn.Close()
	return err
}
