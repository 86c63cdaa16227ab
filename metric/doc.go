// Package metric provides the Prometheus registry and HTTP endpoint for the bridge.
//
// MetricsRegistry owns a private prometheus.Registry pre-loaded with the core
// bridge metrics (connection state, connect attempts, ambassador call latency,
// dispatched updates, absorbed errors) plus the Go runtime collectors.
// Components register their own collectors through the MetricsRegistrar
// interface; a nil registry means "no metrics" and components must tolerate it:
//
//	registry := metric.NewMetricsRegistry()
//	queue, err := dispatch.NewQueue(1024, dispatch.WithMetrics(registry))
//
// Server exposes /metrics (OpenMetrics) and /health. The health document is
// supplied by a HealthFunc so the metric package stays free of bridge types:
//
//	srv := metric.NewServer(9090, "/metrics", registry, func() (any, bool) {
//	    st := mgr.Health()
//	    return st, st.IsHealthy()
//	})
package metric
