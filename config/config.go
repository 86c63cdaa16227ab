package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gamma-programme/rospitch/bridge"
	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/ingest"
	"github.com/gamma-programme/rospitch/ingest/rosbridge"
	"github.com/gamma-programme/rospitch/pkg/retry"
	"github.com/gamma-programme/rospitch/pkg/tlsutil"
	"github.com/gamma-programme/rospitch/timecoord"
)

// Ambassador backends
const (
	AmbassadorMemory = "memory" // Log-only dry run, no RTI
	AmbassadorNATS   = "nats"   // RTI gateway reached over NATS request/reply
)

// Config represents the complete bridge configuration
type Config struct {
	Pitch    PitchConfig   `json:"pitch"`
	Bridge   BridgeConfig  `json:"bridge"`
	Time     TimeConfig    `json:"time"`
	NATS     NATSConfig    `json:"nats"`
	Sources  SourcesConfig `json:"sources"`
	Metrics  MetricsConfig `json:"metrics"`
	Bindings string        `json:"bindings"` // Path to the binding table

	federate string
}

// PitchConfig identifies the RTI and the federation to join.
type PitchConfig struct {
	URI            string `json:"uri"` // host, host:port or crcAddress=host:port
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	FederationName string `json:"federation_name"`
	FederateName   string `json:"federate_name"`
	// Anonymous appends a random suffix to FederateName so several bridges
	// can join the same federation.
	Anonymous     bool   `json:"anonymous"`
	Ambassador    string `json:"ambassador"`
	GatewayPrefix string `json:"gateway_prefix,omitempty"` // Subject prefix for the nats ambassador
}

// BridgeConfig tunes the connection manager.
type BridgeConfig struct {
	ConnectTimeout  time.Duration `json:"connect_timeout"`
	CallTimeout     time.Duration `json:"call_timeout"`
	DrainTimeout    time.Duration `json:"drain_timeout"`
	QueueCapacity   int           `json:"queue_capacity"`
	PreJoinCapacity int           `json:"prejoin_capacity"`
	Retry           retry.Policy  `json:"retry"`
}

// TimeConfig selects the delivery discipline.
type TimeConfig struct {
	Mode      string        `json:"mode"` // receive_order or time_stepped
	Lookahead time.Duration `json:"lookahead"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`

	TLS tlsutil.ClientConfig `json:"tls"`
}

// SourcesConfig enables the telemetry sources.
type SourcesConfig struct {
	NATS      NATSSourceConfig      `json:"nats"`
	Rosbridge RosbridgeSourceConfig `json:"rosbridge"`
}

// NATSSourceConfig subscribes to telemetry subjects.
type NATSSourceConfig struct {
	Enabled bool   `json:"enabled"`
	Codec   string `json:"codec,omitempty"` // json or cbor
	// Subjects overrides the subject per channel; an empty subject disables the channel.
	Subjects map[string]string `json:"subjects,omitempty"`
}

// RosbridgeSourceConfig subscribes to ROS topics through rosbridge.
type RosbridgeSourceConfig struct {
	Enabled          bool                       `json:"enabled"`
	URL              string                     `json:"url"`
	Topics           map[string]rosbridge.Topic `json:"topics,omitempty"`
	HandshakeTimeout time.Duration              `json:"handshake_timeout"`
	ThrottleRate     int                        `json:"throttle_rate,omitempty"`
	QueueLength      int                        `json:"queue_length,omitempty"`
	TLS              tlsutil.ClientConfig       `json:"tls"`
}

// MetricsConfig controls the Prometheus and health endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Default returns the built-in configuration. It connects a dry-run
// ambassador to the local RTI address and reads telemetry from NATS.
func Default() *Config {
	rb := rosbridge.DefaultConfig()
	bc := bridge.DefaultConfig()
	return &Config{
		Pitch: PitchConfig{
			URI:            "127.0.0.1",
			FederationName: bc.FederationName,
			FederateName:   bc.FederateName,
			Anonymous:      true,
			Ambassador:     AmbassadorMemory,
			GatewayPrefix:  "rti",
		},
		Bridge: BridgeConfig{
			ConnectTimeout:  bc.ConnectTimeout,
			CallTimeout:     bc.CallTimeout,
			DrainTimeout:    bc.DrainTimeout,
			QueueCapacity:   bc.QueueCapacity,
			PreJoinCapacity: bc.PreJoinCapacity,
			Retry:           bc.Retry,
		},
		Time: TimeConfig{
			Mode: string(timecoord.ModeReceiveOrder),
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		},
		Sources: SourcesConfig{
			NATS: NATSSourceConfig{
				Enabled: true,
				Codec:   ingest.CodecJSON,
			},
			Rosbridge: RosbridgeSourceConfig{
				URL:              rb.URL,
				HandshakeTimeout: rb.HandshakeTimeout,
				QueueLength:      rb.QueueLength,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Bindings: "configs/bindings.yaml",
	}
}

// FederateName returns the name the bridge joins with, including the
// anonymous suffix when one was assigned at load time.
func (c *Config) FederateName() string {
	if c.federate != "" {
		return c.federate
	}
	return c.Pitch.FederateName
}

// anonymize assigns the federate name once per load.
func (c *Config) anonymize(id string) {
	c.federate = c.Pitch.FederateName
	if c.Pitch.Anonymous && id != "" {
		c.federate = c.Pitch.FederateName + "_" + id
	}
}

// NeedsNATS reports whether any configured component talks to NATS.
func (c *Config) NeedsNATS() bool {
	return c.Pitch.Ambassador == AmbassadorNATS || c.Sources.NATS.Enabled
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pitch.URI) == "" {
		return invalid("pitch.uri is required")
	}
	if c.Pitch.FederationName == "" {
		return invalid("pitch.federation_name is required")
	}
	if c.Pitch.FederateName == "" {
		return invalid("pitch.federate_name is required")
	}
	switch c.Pitch.Ambassador {
	case AmbassadorMemory:
	case AmbassadorNATS:
		if c.Pitch.GatewayPrefix == "" {
			return invalid("pitch.gateway_prefix is required for the nats ambassador")
		}
	default:
		return invalid("pitch.ambassador %q is not one of memory, nats", c.Pitch.Ambassador)
	}

	if _, err := timecoord.ParseMode(c.Time.Mode); err != nil {
		return err
	}
	if c.Time.Lookahead < 0 {
		return invalid("time.lookahead cannot be negative")
	}

	if err := c.BridgeSettings().Validate(); err != nil {
		return err
	}

	if c.NeedsNATS() && len(c.NATS.URLs) == 0 {
		return invalid("nats.urls is required when a NATS component is enabled")
	}
	if err := c.NATS.TLS.Validate(); err != nil {
		return err
	}
	if c.Sources.NATS.Enabled {
		if _, err := ingest.ParseCodec(c.Sources.NATS.Codec); err != nil {
			return err
		}
	}
	if c.Sources.Rosbridge.Enabled {
		if err := c.RosbridgeSettings().Validate(); err != nil {
			return err
		}
		if err := c.Sources.Rosbridge.TLS.Validate(); err != nil {
			return err
		}
	}
	if !c.Sources.NATS.Enabled && !c.Sources.Rosbridge.Enabled {
		return invalid("at least one source must be enabled")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		return invalid("metrics.port %d out of range", c.Metrics.Port)
	}
	if c.Bindings == "" {
		return invalid("bindings path is required")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"Config", "Validate", "check configuration")
}

// BridgeSettings builds the connection manager config.
func (c *Config) BridgeSettings() bridge.Config {
	return bridge.Config{
		FederationName:  c.Pitch.FederationName,
		FederateName:    c.FederateName(),
		ConnectTimeout:  c.Bridge.ConnectTimeout,
		CallTimeout:     c.Bridge.CallTimeout,
		DrainTimeout:    c.Bridge.DrainTimeout,
		Retry:           c.Bridge.Retry,
		QueueCapacity:   c.Bridge.QueueCapacity,
		PreJoinCapacity: c.Bridge.PreJoinCapacity,
	}
}

// RosbridgeSettings builds the rosbridge client config. The client reuses
// the federation retry policy for reconnects.
func (c *Config) RosbridgeSettings() rosbridge.Config {
	rb := c.Sources.Rosbridge
	return rosbridge.Config{
		URL:              rb.URL,
		Topics:           rb.Topics,
		HandshakeTimeout: rb.HandshakeTimeout,
		ThrottleRate:     rb.ThrottleRate,
		QueueLength:      rb.QueueLength,
		Reconnect:        c.Bridge.Retry,
	}
}

// TimeMode returns the parsed delivery discipline.
func (c *Config) TimeMode() timecoord.Mode {
	mode, err := timecoord.ParseMode(c.Time.Mode)
	if err != nil {
		return timecoord.ModeReceiveOrder
	}
	return mode
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.Pitch.Password = mask(masked.Pitch.Password)
	masked.NATS.Password = mask(masked.NATS.Password)
	masked.NATS.Token = mask(masked.NATS.Token)
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
