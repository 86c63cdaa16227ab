// Package bridge runs the federation connection manager.
//
// A Manager owns one Ambassador and drives it through the connection state
// machine:
//
//	Disconnected → Connecting → Connected → Joining → Joined → Resigning → Disconnected
//	                     ↘           ↘          ↘        ↘
//	                                   Failed ── retry ──→ Connecting
//
// Producers call Submit from any goroutine. Events are serialized through a
// dispatch.Queue and handled by the single goroutine running Run, which is
// the only caller of the ambassador. Events that arrive before the federation
// is joined wait in a bounded pre-join buffer and are flushed in arrival order
// once Joined is reached.
//
// Transient failures move the manager to Failed and schedule a reconnect
// with the configured retry.Policy. Fatal failures (protocol mismatch,
// rejected credentials, exhausted retries) stop Run with the error.
//
// Basic usage:
//
//	m, err := bridge.New(bridge.DefaultConfig(), amb, engine, coord,
//		bridge.WithLogger(logger), bridge.WithMetrics(registry))
//	if err != nil {
//		return err
//	}
//	go func() { errc <- m.Run(ctx) }()
//	if err := m.Connect("rti.local:8989", federation.Credentials{}); err != nil {
//		return err
//	}
//	_ = m.Submit(event)
package bridge
