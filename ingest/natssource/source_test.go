package natssource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-programme/rospitch/canonical"
	rperrors "github.com/gamma-programme/rospitch/errors"
	"github.com/gamma-programme/rospitch/ingest"
)

type fakeSubscriber struct {
	subjects map[string]func(context.Context, []byte)
	err      error
}

func (f *fakeSubscriber) Subscribe(_ context.Context, subject string, h func(context.Context, []byte)) error {
	if f.err != nil {
		return f.err
	}
	if f.subjects == nil {
		f.subjects = make(map[string]func(context.Context, []byte))
	}
	f.subjects[subject] = h
	return nil
}

func TestSource_DefaultSubjects(t *testing.T) {
	sub := &fakeSubscriber{}
	called := map[string]int{}
	handlers := map[string]ingest.HandlerFunc{}
	for ch := range DefaultSubjects {
		handlers[ch] = func(context.Context, []byte) { called[ch]++ }
	}

	src := New(sub, handlers, nil, nil)
	require.NoError(t, src.Start(context.Background()))

	require.Len(t, sub.subjects, 3)
	sub.subjects["robot.imu.data"](context.Background(), nil)
	assert.Equal(t, 1, called[canonical.ChannelOrientation])
}

func TestSource_OverridesAndDisabled(t *testing.T) {
	sub := &fakeSubscriber{}
	noop := func(context.Context, []byte) {}
	handlers := map[string]ingest.HandlerFunc{
		canonical.ChannelFix:     noop,
		canonical.ChannelMission: noop,
	}

	src := New(sub, handlers, map[string]string{
		canonical.ChannelFix:     "uav1.fix",
		canonical.ChannelMission: "",
	}, nil)
	require.NoError(t, src.Start(context.Background()))

	assert.Contains(t, sub.subjects, "uav1.fix")
	assert.Len(t, sub.subjects, 1)
	assert.Equal(t, "robot.imu.data", src.Subjects()[canonical.ChannelOrientation])
}

func TestSource_SubscribeFailure(t *testing.T) {
	sub := &fakeSubscriber{err: errors.New("not connected")}
	src := New(sub, map[string]ingest.HandlerFunc{
		canonical.ChannelFix: func(context.Context, []byte) {},
	}, nil, nil)

	err := src.Start(context.Background())
	require.Error(t, err)
	assert.True(t, rperrors.IsTransient(err))
}
