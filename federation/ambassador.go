package federation

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/errors"
)

// DefaultCRCPort is the Pitch Central RTI Component port.
const DefaultCRCPort = "8989"

// LogicalTime is federation time in HLAinteger64Time microseconds.
type LogicalTime = canonical.Time

// FederateHandle identifies the joined federate.
type FederateHandle uint64

// ObjectInstanceHandle identifies a registered object instance.
type ObjectInstanceHandle uint64

// AttributeValues maps attribute names to encoded values.
type AttributeValues map[string][]byte

// ParameterValues maps interaction parameter names to encoded values.
type ParameterValues map[string][]byte

// Credentials authenticate the federate to the RTI. Both fields may be empty.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Endpoint describes where and how to connect.
type Endpoint struct {
	URI         string
	Credentials Credentials
}

// ParseEndpoint accepts "host", "host:port", "crc://host:port" or
// "crcAddress=host:port" and normalizes to "host:port".
func ParseEndpoint(raw string, creds Credentials) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "crcAddress=")
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return Endpoint{}, errors.WrapInvalid(
				fmt.Errorf("%w: endpoint %q: %v", errors.ErrInvalidConfig, raw, err),
				"federation", "ParseEndpoint", "parse URI")
		}
		s = u.Host
	}
	if s == "" {
		return Endpoint{}, errors.WrapInvalid(
			fmt.Errorf("%w: empty endpoint", errors.ErrInvalidConfig), "federation", "ParseEndpoint", "parse URI")
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host, port = s, DefaultCRCPort
	}
	if host == "" {
		return Endpoint{}, errors.WrapInvalid(
			fmt.Errorf("%w: endpoint %q has no host", errors.ErrInvalidConfig, raw),
			"federation", "ParseEndpoint", "parse URI")
	}

	return Endpoint{URI: net.JoinHostPort(host, port), Credentials: creds}, nil
}

// CRCAddress renders the Pitch local settings designator for this endpoint.
func (e Endpoint) CRCAddress() string {
	return "crcAddress=" + e.URI
}

// String returns the endpoint without credentials.
func (e Endpoint) String() string {
	if e.Credentials.Username == "" {
		return e.URI
	}
	return e.Credentials.Username + "@" + e.URI
}

// Ambassador is the RTI ambassador surface the bridge uses.
// Calls are issued from a single goroutine.
type Ambassador interface {
	// Connect opens the transport connection to the RTI.
	Connect(ctx context.Context, endpoint Endpoint, federateName string) error

	// Join joins the named federation execution and returns the federate handle.
	Join(ctx context.Context, federationName string) (FederateHandle, error)

	PublishObjectClass(ctx context.Context, class string, attributes []string) error
	PublishInteractionClass(ctx context.Context, class string, parameters []string) error
	RegisterObjectInstance(ctx context.Context, class, name string) (ObjectInstanceHandle, error)

	// EnableTimeManagement makes the federate time regulating and constrained
	// and returns the initial granted time.
	EnableTimeManagement(ctx context.Context, lookahead LogicalTime) (LogicalTime, error)

	// UpdateAttributes sends attribute values. A nil timestamp sends receive order.
	UpdateAttributes(ctx context.Context, handle ObjectInstanceHandle, values AttributeValues, ts *LogicalTime) error

	// SendInteraction sends an interaction. A nil timestamp sends receive order.
	SendInteraction(ctx context.Context, class string, params ParameterValues, ts *LogicalTime) error

	// AdvanceTime requests a time advance and blocks until granted.
	AdvanceTime(ctx context.Context, target LogicalTime) (LogicalTime, error)

	Resign(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// FaultNotifier is implemented by ambassadors that detect connection loss
// outside of a call. The handler may be invoked from any goroutine.
type FaultNotifier interface {
	OnFault(handler func(error))
}
