// Package health reports bridge health for the /health endpoint.
//
// A Status is healthy, degraded or unhealthy. The bridge status follows the
// federation connection state (see FromConnectionState); transport components
// report their own statuses into a Monitor, and Aggregate combines them so
// that any unhealthy part makes the whole unhealthy.
//
// Error messages are passed through Sanitize before exposure so endpoints,
// addresses and credentials from connection errors do not leak.
package health
