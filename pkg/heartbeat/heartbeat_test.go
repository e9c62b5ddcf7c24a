package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mroda88/trigger/pkg/isb"
	"github.com/mroda88/trigger/pkg/transport/memchan"
)

func TestInjector_FiresOnFixedInterval(t *testing.T) {
	ch := memchan.New[isb.Set[int64rec]](16)
	cfg := Config{IntervalTicks: 5, QueueTimeout: time.Second} // ClockFrequencyHz unset: ticks treated as ms
	inj, err := New[int64rec](context.Background(), cfg, ch, isb.Origin{Subsystem: "hb", ElementID: 9})
	require.NoError(t, err)
	inj.Start()
	defer inj.Stop()

	hb, err := ch.Recv(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, isb.Heartbeat, hb.Type)
	assert.Equal(t, isb.Tick(5), hb.StartTime)
	assert.Equal(t, uint32(9), hb.Origin.ElementID)

	hb2, err := ch.Recv(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, isb.Tick(10), hb2.StartTime, "the tick counter keeps advancing by the configured interval")
}

func TestInjector_AppliesSendOffset(t *testing.T) {
	ch := memchan.New[isb.Set[int64rec]](16)
	cfg := Config{IntervalTicks: 50, SendOffsetMs: 20, ClockFrequencyHz: 1000, QueueTimeout: time.Second}
	inj, err := New[int64rec](context.Background(), cfg, ch, isb.Origin{})
	require.NoError(t, err)
	inj.Start()
	defer inj.Stop()

	hb, err := ch.Recv(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, isb.Tick(30), hb.StartTime, "offset of 20ms at 1000 ticks/sec subtracts 20 ticks")
}

func TestInjector_RejectsInvalidCadenceSpec(t *testing.T) {
	ch := memchan.New[isb.Set[int64rec]](16)
	cfg := Config{CadenceSpec: "not a cron expression"}
	_, err := New[int64rec](context.Background(), cfg, ch, isb.Origin{})
	assert.Error(t, err)
}

func TestInjector_StopJoinsCleanly(t *testing.T) {
	ch := memchan.New[isb.Set[int64rec]](16)
	cfg := Config{IntervalTicks: 1, QueueTimeout: time.Second}
	inj, err := New[int64rec](context.Background(), cfg, ch, isb.Origin{})
	require.NoError(t, err)
	inj.Start()
	inj.Stop() // must return without deadlocking even with events in flight
}

type int64rec struct{ t isb.Tick }

func (r int64rec) TimeStart() isb.Tick { return r.t }
