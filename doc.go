// Package rospitch bridges robot telemetry into an HLA federation.
//
// A robot publishes a GPS fix, an IMU orientation and mavros mission
// waypoints. rospitch receives those messages over NATS or a rosbridge
// websocket, turns them into canonical events, maps each event onto an
// object attribute update or an interaction through a binding table, and
// hands the encoded values to an RTI ambassador.
//
// # Architecture
//
//	┌────────────────────────────────────┐
//	│  Sources                           │  ingest/natssource
//	│  (NATS subjects, rosbridge topics) │  ingest/rosbridge
//	└────────────────┬───────────────────┘
//	                 ↓ canonical.Event
//	┌────────────────────────────────────┐
//	│  Connection manager                │  bridge, dispatch
//	│  (state machine, queue, retries)   │  pkg/retry, pkg/buffer
//	└────────────────┬───────────────────┘
//	                 ↓ translate + timecoord
//	┌────────────────────────────────────┐
//	│  Federation ambassador             │  federation/natsrti
//	│  (connect, join, publish, update)  │  federation (memory)
//	└────────────────────────────────────┘
//
// The manager is the only goroutine that talks to the ambassador. Producers
// submit events from any goroutine; events that arrive before the federate
// has joined are buffered with a drop-oldest policy and flushed in order
// once the join completes.
//
// # Packages
//
//   - canonical: source-neutral telemetry events and field values
//   - binding: the YAML/JSONC binding table and its schema
//   - hla: HLA basic data representation encoders
//   - translate: event to attribute update or interaction
//   - timecoord: receive-order and time-stepped delivery
//   - dispatch: the priority queue between producers and the manager
//   - federation: ambassador interface, session and the in-memory ambassador
//   - bridge: the connection manager and its state machine
//   - ingest: source decoding, adapters and diagnostics
//   - config, metric, health, errors, natsclient: ambient infrastructure
//
// The rospitch command in cmd/rospitch wires these together.
package rospitch
