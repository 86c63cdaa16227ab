package health

import (
	"regexp"
	"strings"
	"time"
)

// Status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Pre-compiled regexes for error message sanitization
var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?|crc)://[^\s]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health state of a component or of the bridge
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics contains the counters surfaced on the health endpoint
type Metrics struct {
	Uptime         time.Duration `json:"uptime"`
	State          string        `json:"state,omitempty"`
	ConnectAttempt int           `json:"connect_attempt,omitempty"`
	QueueDepth     int           `json:"queue_depth"`
	Dropped        uint64        `json:"dropped"`
	LastActivity   time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == StatusHealthy
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == StatusDegraded
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == StatusUnhealthy
}

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus adds a sub-status and returns a copy
func (s Status) WithSubStatus(subStatus Status) Status {
	newSubStatuses := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(newSubStatuses, s.SubStatuses)
	s.SubStatuses = append(newSubStatuses, subStatus)
	return s
}

// Sanitize strips endpoints, paths and credentials from an error message
// before it is exposed on the health endpoint.
//
//   - URLs (http, nats, ws, crc) → [URL]
//   - File paths → [PATH]
//   - IP addresses → [IP]
//   - Port numbers → [PORT]
//   - password=X, token=X, secret=X → [REDACTED]
func Sanitize(msg string) string {
	if msg == "" {
		return ""
	}

	sanitized := urlRegex.ReplaceAllString(msg, "[URL]")
	lower := strings.ToLower(sanitized)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret") || strings.Contains(lower, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}
	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	return sanitized
}

// FromConnectionState maps a bridge connection state name onto a status.
// Joined is healthy; the states on the way there are degraded; disconnected
// and failed are unhealthy. lastErr, when set, becomes the sanitized message.
func FromConnectionState(component, state, lastErr string) Status {
	var status Status
	switch state {
	case "joined":
		status = NewHealthy(component, "Joined federation")
	case "connecting", "connected", "joining":
		status = NewDegraded(component, "Establishing federation session ("+state+")")
	case "resigning":
		status = NewDegraded(component, "Resigning from federation")
	case "failed":
		status = NewUnhealthy(component, "Federation connection failed")
	default:
		status = NewUnhealthy(component, "Not connected to federation")
	}

	if lastErr != "" && !status.IsHealthy() {
		status.Message = Sanitize(lastErr)
	}
	return status
}
