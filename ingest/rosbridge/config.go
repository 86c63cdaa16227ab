package rosbridge

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/pkg/retry"
)

// Topic names a ROS topic and its message type.
type Topic struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DefaultTopics are the topics the bridge listens on per channel.
var DefaultTopics = map[string]Topic{
	canonical.ChannelFix:         {Name: "gps/fix", Type: "sensor_msgs/NavSatFix"},
	canonical.ChannelOrientation: {Name: "imu/data", Type: "sensor_msgs/Imu"},
	canonical.ChannelMission:     {Name: "mission/waypoints", Type: "mavros/WaypointList"},
}

// Config holds the client settings.
type Config struct {
	URL              string           `json:"url"`
	Topics           map[string]Topic `json:"topics,omitempty"`
	HandshakeTimeout time.Duration    `json:"handshake_timeout"`
	// ThrottleRate asks rosbridge to space messages per topic, in milliseconds.
	ThrottleRate int          `json:"throttle_rate,omitempty"`
	QueueLength  int          `json:"queue_length,omitempty"`
	Reconnect    retry.Policy `json:"reconnect"`
	// TLS is used for wss:// URLs; nil keeps the system defaults.
	TLS *tls.Config `json:"-"`
}

// DefaultConfig returns a client config for a local rosbridge server.
func DefaultConfig() Config {
	return Config{
		URL:              "ws://127.0.0.1:9090",
		HandshakeTimeout: 10 * time.Second,
		QueueLength:      1000,
		Reconnect:        retry.DefaultPolicy(),
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: rosbridge url", errors.ErrMissingConfig),
			"Config", "Validate", "check url")
	}
	if c.ThrottleRate < 0 || c.QueueLength < 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: negative throttle or queue length", errors.ErrInvalidConfig),
			"Config", "Validate", "check subscription options")
	}
	if err := c.Reconnect.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "check reconnect policy")
	}
	return nil
}

func (c Config) topics() map[string]Topic {
	out := make(map[string]Topic, len(DefaultTopics))
	for ch, t := range DefaultTopics {
		out[ch] = t
	}
	for ch, t := range c.Topics {
		if t.Type == "" {
			t.Type = out[ch].Type
		}
		out[ch] = t
	}
	return out
}
