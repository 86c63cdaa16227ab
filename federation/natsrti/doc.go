// Package natsrti implements federation.Ambassador against an RTI gateway
// reachable over NATS.
//
// The gateway is a separate process that owns a real RTI ambassador (Pitch
// pRTI, for example) and exposes it as CBOR request/reply under a subject
// prefix:
//
//	<prefix>.connect        <prefix>.join         <prefix>.publish
//	<prefix>.register       <prefix>.time.enable  <prefix>.time.advance
//	<prefix>.resign         <prefix>.disconnect
//
// Attribute updates and interactions are fire-and-forget publishes to
// <prefix>.object.<class>.<instance> and <prefix>.interaction.<class>.
//
// Error replies carry a code. version_mismatch maps to a fatal error and
// everything else, auth_rejected included, to a transient one so the bridge
// retries. A NATS disconnect is reported through OnFault.
package natsrti
