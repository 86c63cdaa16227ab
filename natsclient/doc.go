// Package natsclient wraps the NATS Go client with connection status tracking,
// lifecycle callbacks and context-aware publish, subscribe and request/reply.
//
// Two parts of the bridge ride on it: the NATS ingest source, which subscribes
// to robot telemetry subjects, and the NATS-backed RTI ambassador, which
// speaks request/reply to an RTI gateway service.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("rospitch"),
//	    natsclient.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Subscribe(ctx, "robot.gps.fix", func(ctx context.Context, data []byte) {
//	    // decode and forward
//	})
//
// # Reconnection
//
// Reconnection after an established session is left to the NATS client
// (infinite by default, see WithMaxReconnects). The disconnect callback fires
// on every drop so owners can surface the fault; the initial Connect is not
// retried here.
//
// # Testing
//
// NewTestClient and NewSharedTestClient start a NATS server in a container via
// testcontainers. Tests using them carry the integration build tag.
package natsclient
