// Package config loads the bridge configuration.
//
// Configuration is layered: built-in defaults, then each JSONC file added
// with AddLayer (comments and trailing commas allowed), then ROSPITCH_*
// environment variables. Duration fields accept Go duration strings
// ("500ms", "2s") and a days suffix ("1d").
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/rospitch.jsonc")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Environment overrides:
//
//	ROSPITCH_PITCH_URI       RTI address (host, host:port, crcAddress=host:port)
//	ROSPITCH_PITCH_USERNAME  RTI credentials
//	ROSPITCH_PITCH_PASSWORD
//	ROSPITCH_FEDERATION      federation execution name
//	ROSPITCH_FEDERATE        federate base name
//	ROSPITCH_ANONYMOUS       append a random suffix to the federate name
//	ROSPITCH_AMBASSADOR      memory or nats
//	ROSPITCH_TIME_MODE       receive_order or time_stepped
//	ROSPITCH_NATS_URLS       comma separated server list
//	ROSPITCH_NATS_USERNAME, ROSPITCH_NATS_PASSWORD, ROSPITCH_NATS_TOKEN
//	ROSPITCH_ROSBRIDGE_URL   rosbridge websocket URL
//	ROSPITCH_BINDINGS        binding table path
package config
