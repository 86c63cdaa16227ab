// Package natssource subscribes ingestion handlers to NATS subjects.
package natssource

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/ingest"
)

// DefaultSubjects maps each channel to its default subject.
var DefaultSubjects = map[string]string{
	canonical.ChannelFix:         "robot.gps.fix",
	canonical.ChannelOrientation: "robot.imu.data",
	canonical.ChannelMission:     "robot.mission.waypoints",
}

// Subscriber is the subset of natsclient.Client the source needs.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Source wires channel handlers to NATS subjects.
type Source struct {
	sub      Subscriber
	subjects map[string]string
	handlers map[string]ingest.HandlerFunc
	logger   *slog.Logger
}

// New creates a source. subjects overrides DefaultSubjects per channel;
// a channel mapped to "" is not subscribed.
func New(sub Subscriber, handlers map[string]ingest.HandlerFunc, subjects map[string]string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	merged := make(map[string]string, len(DefaultSubjects))
	for ch, s := range DefaultSubjects {
		merged[ch] = s
	}
	for ch, s := range subjects {
		merged[ch] = s
	}
	return &Source{sub: sub, subjects: merged, handlers: handlers, logger: logger}
}

// Subjects returns the channel → subject routing in effect.
func (s *Source) Subjects() map[string]string {
	out := make(map[string]string, len(s.subjects))
	for ch, subj := range s.subjects {
		out[ch] = subj
	}
	return out
}

// Start subscribes every channel with a handler. Delivery stops when the
// client is closed.
func (s *Source) Start(ctx context.Context) error {
	channels := make([]string, 0, len(s.handlers))
	for ch := range s.handlers {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	for _, ch := range channels {
		subject := s.subjects[ch]
		if subject == "" {
			s.logger.Info("Channel has no NATS subject, not subscribing", "channel", ch)
			continue
		}
		if err := s.sub.Subscribe(ctx, subject, s.handlers[ch]); err != nil {
			return errors.WrapTransient(err, "Source", "Start", fmt.Sprintf("subscribe %s to %s", ch, subject))
		}
		s.logger.Info("Subscribed channel", "channel", ch, "subject", subject)
	}
	return nil
}
