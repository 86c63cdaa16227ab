package health

import (
	"strings"
	"time"
)

func newStatus(component, status, message string) Status {
	return Status{
		Component: component,
		Healthy:   status == StatusHealthy,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return newStatus(component, StatusHealthy, message)
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StatusUnhealthy, message)
}

// NewDegraded creates a new degraded status
func NewDegraded(component, message string) Status {
	return newStatus(component, StatusDegraded, message)
}

// Aggregate combines sub-statuses into one. The worst sub-status wins and
// the message names the components responsible for it, e.g.
// "unhealthy: nats" or "degraded: bridge, rosbridge".
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "No components registered")
	}

	var unhealthy, degraded []string
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			unhealthy = append(unhealthy, sub.Component)
		case sub.IsDegraded():
			degraded = append(degraded, sub.Component)
		}
	}

	var status Status
	switch {
	case len(unhealthy) > 0:
		status = NewUnhealthy(component, StatusUnhealthy+": "+strings.Join(unhealthy, ", "))
	case len(degraded) > 0:
		status = NewDegraded(component, StatusDegraded+": "+strings.Join(degraded, ", "))
	default:
		status = NewHealthy(component, "All components healthy")
	}

	status.SubStatuses = append([]Status(nil), subStatuses...)
	return status
}
