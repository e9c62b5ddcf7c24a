package testproducer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mroda88/trigger/pkg/isb"
	"github.com/mroda88/trigger/pkg/transport/memchan"
)

func TestProducer_RepeatsFixtureForConfiguredIterations(t *testing.T) {
	ch := memchan.New[isb.Set[TPRecord]](16)
	cfg := Config{
		Interval:     10 * time.Millisecond,
		Iterations:   3,
		QueueTimeout: time.Second,
		StartTime:    0,
		EndTime:      100,
		Origin:       isb.Origin{Subsystem: "fixture", ElementID: 1},
	}
	p := New(context.Background(), cfg, ch)
	require.NoError(t, p.Configure(strings.NewReader("5 1 6 2 10 20 3 1\n")))
	require.NoError(t, p.Start())
	defer p.Stop()

	for i := 0; i < 3; i++ {
		got, err := ch.Recv(context.Background(), time.Second)
		require.NoError(t, err)
		require.Len(t, got.Objects, 1)
		assert.Equal(t, isb.Tick(5), got.Objects[0].TimeStart())
	}
}

func TestProducer_StartWithoutConfigureFails(t *testing.T) {
	ch := memchan.New[isb.Set[TPRecord]](16)
	p := New(context.Background(), Config{}, ch)
	assert.Error(t, p.Start())
}

func TestProducer_RunsIndefinitelyWhenIterationsIsZero(t *testing.T) {
	ch := memchan.New[isb.Set[TPRecord]](16)
	cfg := Config{Interval: 5 * time.Millisecond, QueueTimeout: time.Second}
	p := New(context.Background(), cfg, ch)
	require.NoError(t, p.Configure(strings.NewReader("1 1 1 1 1 1 1 1\n")))
	require.NoError(t, p.Start())

	_, err := ch.Recv(context.Background(), time.Second)
	require.NoError(t, err)
	_, err = ch.Recv(context.Background(), time.Second)
	require.NoError(t, err)
	p.Stop()
}
