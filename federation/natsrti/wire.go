package natsrti

import (
	"fmt"
	"strings"

	"github.com/gamma-programme/rospitch/errors"
)

// ProtocolVersion is sent on connect; the gateway rejects other versions.
const ProtocolVersion = 1

// Request subjects relative to the prefix.
const (
	SubjectConnect     = "connect"
	SubjectJoin        = "join"
	SubjectPublish     = "publish"
	SubjectRegister    = "register"
	SubjectTimeEnable  = "time.enable"
	SubjectTimeAdvance = "time.advance"
	SubjectResign      = "resign"
	SubjectDisconnect  = "disconnect"
)

// Error codes returned by the gateway.
const (
	CodeVersionMismatch = "version_mismatch"
	CodeAuthRejected    = "auth_rejected"
	CodeNotConnected    = "not_connected"
	CodeNotJoined       = "not_joined"
	CodeFederationGone  = "federation_not_found"
	CodeUnavailable     = "unavailable"
	CodeInvalid         = "invalid"
)

// Request is the envelope for every gateway call. Unused fields are omitted.
type Request struct {
	ID         string   `cbor:"id"`
	Version    int      `cbor:"version,omitempty"`
	Federate   string   `cbor:"federate,omitempty"`
	Endpoint   string   `cbor:"endpoint,omitempty"`
	Username   string   `cbor:"username,omitempty"`
	Password   string   `cbor:"password,omitempty"`
	Federation string   `cbor:"federation,omitempty"`
	Kind       string   `cbor:"kind,omitempty"`
	Class      string   `cbor:"class,omitempty"`
	Names      []string `cbor:"names,omitempty"`
	Instance   string   `cbor:"instance,omitempty"`
	Lookahead  int64    `cbor:"lookahead,omitempty"`
	Target     int64    `cbor:"target,omitempty"`
}

// Response is the gateway reply.
type Response struct {
	ID      string `cbor:"id"`
	OK      bool   `cbor:"ok"`
	Code    string `cbor:"code,omitempty"`
	Message string `cbor:"message,omitempty"`
	Handle  uint64 `cbor:"handle,omitempty"`
	Time    int64  `cbor:"time,omitempty"`
}

// Update is published for attribute updates and interactions.
type Update struct {
	Federate uint64            `cbor:"federate"`
	Handle   uint64            `cbor:"handle,omitempty"`
	Class    string            `cbor:"class"`
	Instance string            `cbor:"instance,omitempty"`
	Values   map[string][]byte `cbor:"values"`
	Time     *int64            `cbor:"time,omitempty"`
}

func codeError(op, code, message string) error {
	cause := fmt.Errorf("gateway %s: %s", code, message)
	switch code {
	case CodeVersionMismatch:
		return errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrVersionMismatch, cause), "Ambassador", op, "gateway call")
	case CodeAuthRejected:
		// Credentials may be provisioned after the bridge starts; retry.
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrAuthRejected, cause), "Ambassador", op, "gateway call")
	case CodeNotConnected:
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrNoConnection, cause), "Ambassador", op, "gateway call")
	case CodeNotJoined:
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrNotJoined, cause), "Ambassador", op, "gateway call")
	case CodeFederationGone:
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrFederationGone, cause), "Ambassador", op, "gateway call")
	case CodeInvalid:
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, cause), "Ambassador", op, "gateway call")
	default:
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionLost, cause), "Ambassador", op, "gateway call")
	}
}

var tokenReplacer = strings.NewReplacer(" ", "_", "*", "_", ">", "_", "\t", "_")

// token makes s safe as part of a NATS subject.
func token(s string) string {
	return tokenReplacer.Replace(s)
}
