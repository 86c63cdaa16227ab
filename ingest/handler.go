package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/metric"
)

// Submitter accepts canonical events without blocking.
type Submitter interface {
	Submit(ev canonical.Event) error
}

// HandlerFunc is the callback shape transports deliver raw payloads to.
type HandlerFunc func(ctx context.Context, data []byte)

// Diagnostics is shared by every handler of one bridge: the malformed-payload
// counters and the warn log rate limit.
type Diagnostics struct {
	logger  *slog.Logger
	metrics *ingestMetrics
	limiter *rate.Limiter
}

// NewDiagnostics creates the shared diagnostics. A nil registry disables metrics.
func NewDiagnostics(logger *slog.Logger, registry *metric.MetricsRegistry) (*Diagnostics, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newIngestMetrics(registry)
	if err != nil {
		return nil, errors.WrapTransient(err, "ingest", "NewDiagnostics", "metrics registration")
	}
	return &Diagnostics{
		logger:  logger,
		metrics: m,
		limiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}, nil
}

func (d *Diagnostics) malformed(channel string, err error) {
	if d.metrics != nil {
		d.metrics.malformed.WithLabelValues(channel).Inc()
	}
	if d.limiter.Allow() {
		d.logger.Warn("Dropping malformed payload", "channel", channel, "error", err)
	}
}

// Malformed records a payload for channel that could not be decoded before
// it reached a handler, such as a transport frame that fails to parse.
func (d *Diagnostics) Malformed(channel string, err error) {
	d.malformed(channel, errors.WrapInvalid(
		fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err), "ingest", "Malformed", channel))
}

func (d *Diagnostics) produced(channel string, n int) {
	if d.metrics != nil && n > 0 {
		d.metrics.received.WithLabelValues(channel).Add(float64(n))
	}
}

func (d *Diagnostics) rejected(channel string, err error) {
	if d.metrics != nil {
		d.metrics.rejected.WithLabelValues(channel).Inc()
	}
	if d.limiter.Allow() {
		d.logger.Debug("Bridge refused event", "channel", channel, "error", err)
	}
}

// Handler decodes payloads of type P, adapts them and submits the events.
type Handler[P any] struct {
	channel string
	codec   Codec
	adapter Adapter[P]
	sink    Submitter
	diag    *Diagnostics
}

// NewHandler binds a channel's codec, adapter and sink. diag may be nil.
func NewHandler[P any](channel string, codec Codec, adapter Adapter[P], sink Submitter, diag *Diagnostics) *Handler[P] {
	if codec == nil {
		codec = JSON{}
	}
	if diag == nil {
		diag = &Diagnostics{
			logger:  slog.Default(),
			limiter: rate.NewLimiter(rate.Every(time.Second), 10),
		}
	}
	return &Handler[P]{channel: channel, codec: codec, adapter: adapter, sink: sink, diag: diag}
}

// Channel returns the channel the handler reports diagnostics under.
func (h *Handler[P]) Channel() string { return h.channel }

// Handle processes one raw payload. It returns the number of events submitted.
func (h *Handler[P]) Handle(_ context.Context, data []byte) int {
	channel := h.channel

	var payload P
	if err := h.codec.Unmarshal(data, &payload); err != nil {
		h.diag.malformed(channel, errors.WrapInvalid(err, "Handler", "Handle", h.codec.Name()+" decode"))
		return 0
	}

	events, err := h.adapter.Adapt(payload)
	if err != nil {
		h.diag.malformed(channel, err)
		return 0
	}
	h.diag.produced(channel, len(events))

	submitted := 0
	for _, ev := range events {
		if err := h.sink.Submit(ev); err != nil {
			h.diag.rejected(channel, err)
			continue
		}
		submitted++
	}
	return submitted
}

// Func returns Handle in the transport callback shape.
func (h *Handler[P]) Func() HandlerFunc {
	return func(ctx context.Context, data []byte) {
		h.Handle(ctx, data)
	}
}

// Handlers builds the callback for every channel, keyed by channel name.
func Handlers(codec Codec, sink Submitter, diag *Diagnostics, clock Clock) map[string]HandlerFunc {
	return map[string]HandlerFunc{
		canonical.ChannelFix: NewHandler[NavSatFix](canonical.ChannelFix,
			codec, FixAdapter{Clock: clock}, sink, diag).Func(),
		canonical.ChannelOrientation: NewHandler[Imu](canonical.ChannelOrientation,
			codec, OrientationAdapter{Clock: clock}, sink, diag).Func(),
		canonical.ChannelMission: NewHandler[WaypointList](canonical.ChannelMission,
			codec, MissionAdapter{Clock: clock}, sink, diag).Func(),
	}
}
