// Package translate maps canonical events onto federation updates using the
// read-only binding table.
//
// Translate resolves the binding for an event's channel, looks up every mapped
// source field, checks it against the declared HLA encoding and encodes it.
// Events on unbound channels produce no update and only bump a counter.
// Field or type mismatches are reported as *Error, which classifies as
// invalid: the caller logs and drops the event and carries on.
//
// The engine holds no federation state and allocates no handles; the same
// Engine may be used from any goroutine.
package translate
