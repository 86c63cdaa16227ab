// Package federation defines the narrow boundary between the bridge and an
// HLA RTI ambassador.
//
// The Ambassador interface is the only way the bridge talks to a federation.
// Implementations are not required to be safe for concurrent use: the bridge
// guarantees that a single goroutine issues every call.
//
// Two implementations ship with the bridge:
//
//   - MemoryAmbassador, an in-process recorder used for dry runs and tests.
//     Failures can be scripted per operation.
//   - natsrti.Ambassador (subpackage), which forwards calls to an RTI gateway
//     process over NATS request/reply.
//
// A Session holds the handles allocated after joining. Once invalidated,
// reading any handle from it panics: a stale handle is a programming error,
// never a runtime condition to recover from.
package federation
