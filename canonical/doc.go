// Package canonical defines the normalized event vocabulary shared by the
// ingestion adapters, the dispatch queue and the translation engine.
//
// An Event is immutable once constructed: it carries the logical channel it
// arrived on, a timestamp in microseconds and an ordered list of typed fields.
// Four value kinds are supported (float64, int64, string and bool), which is
// the set of HLA basic representations the bridge can encode.
//
//	ev, err := canonical.NewEvent(canonical.ChannelFix, canonical.FromWall(time.Now()),
//		canonical.F("latitude", canonical.FloatValue(45.0)),
//		canonical.F("longitude", canonical.FloatValue(-93.0)),
//	)
package canonical
