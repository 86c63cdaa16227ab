//go:build integration

package natssource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/canonical"
	"github.com/gamma-programme/rospitch/ingest"
	"github.com/gamma-programme/rospitch/natsclient"
)

type sink struct {
	mu     sync.Mutex
	events []canonical.Event
}

func (s *sink) Submit(ev canonical.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestIntegration_FixOverNATS(t *testing.T) {
	tc := natsclient.NewTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := &sink{}
	src := New(tc.Client, ingest.Handlers(ingest.JSON{}, out, nil, nil), nil, nil)
	require.NoError(t, src.Start(ctx))

	require.NoError(t, tc.Client.Publish(ctx, "robot.gps.fix", []byte(`{"latitude":45,"longitude":-93,"altitude":1}`)))
	require.NoError(t, tc.Client.Publish(ctx, "robot.mission.waypoints",
		[]byte(`{"waypoints":[{"x_lat":1,"y_long":2,"z_alt":0},{"x_lat":3,"y_long":4,"z_alt":0}]}`)))

	assert.Eventually(t, func() bool { return out.count() == 3 }, 5*time.Second, 20*time.Millisecond)
}
