package bridge

import (
	"fmt"
	"time"

	"github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/pkg/retry"
)

// Config holds the connection manager settings.
type Config struct {
	FederationName  string
	FederateName    string
	ConnectTimeout  time.Duration // bounds each connect and join call
	CallTimeout     time.Duration // bounds each update, interaction and advance
	DrainTimeout    time.Duration // bounds queue draining on resign
	Retry           retry.Policy
	QueueCapacity   int
	PreJoinCapacity int
}

// DefaultConfig returns the connection manager defaults.
func DefaultConfig() Config {
	return Config{
		FederationName:  "RobotFederation",
		FederateName:    "rospitch_node",
		ConnectTimeout:  10 * time.Second,
		CallTimeout:     2 * time.Second,
		DrainTimeout:    5 * time.Second,
		Retry:           retry.DefaultPolicy(),
		QueueCapacity:   1024,
		PreJoinCapacity: 256,
	}
}

// Validate reports settings the manager cannot run with.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
			"Config", "Validate", "check bridge config")
	}

	if c.FederationName == "" {
		return fail("federation name required")
	}
	if c.FederateName == "" {
		return fail("federate name required")
	}
	if c.ConnectTimeout <= 0 || c.CallTimeout <= 0 || c.DrainTimeout <= 0 {
		return fail("timeouts must be positive")
	}
	if c.QueueCapacity < 0 || c.PreJoinCapacity < 0 {
		return fail("capacities cannot be negative")
	}
	if err := c.Retry.Validate(); err != nil {
		return fail("%v", err)
	}
	return nil
}
