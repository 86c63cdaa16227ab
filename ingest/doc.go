// Package ingest turns source payloads into canonical events.
//
// Each external stream has an Adapter: the positioning fix (NavSatFix), the
// orientation (Imu) and the mission waypoint list (mavros WaypointList).
// Adapters are pure functions of their payload and never block. A Handler
// binds a payload codec, an adapter and a Submitter into the
// func(ctx, []byte) callback shape the transports deliver to, so the NATS and
// rosbridge sources stay ignorant of payload types.
//
// Malformed payloads produce no event. They are counted per channel and
// logged at warn level with a rate limit, because a broken sensor can emit
// hundreds of them per second.
package ingest
