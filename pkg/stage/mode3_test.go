package stage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mroda88/trigger/pkg/algorithm"
	"github.com/mroda88/trigger/pkg/isb"
	"github.com/mroda88/trigger/pkg/transport/memchan"
)

type rec struct{ t isb.Tick }

func (r rec) TimeStart() isb.Tick { return r.t }

func payload(t *testing.T, start, end isb.Tick, vals ...isb.Tick) isb.Set[rec] {
	objs := make([]rec, len(vals))
	for i, v := range vals {
		objs[i] = rec{v}
	}
	s, err := isb.NewPayloadSet[rec](start, end, isb.Origin{Subsystem: "producer", ElementID: 1}, objs)
	require.NoError(t, err)
	return s
}

func heartbeat(t *testing.T, at isb.Tick) isb.Set[rec] {
	s, err := isb.NewHeartbeatSet[rec](at, at, isb.Origin{Subsystem: "hb", ElementID: 1})
	require.NoError(t, err)
	return s
}

func newMode3Identity(t *testing.T) (*Mode3Stage[rec, rec], *memchan.Channel[isb.Set[rec]], *memchan.Channel[isb.Set[rec]]) {
	in := memchan.New[isb.Set[rec]](16)
	out := memchan.New[isb.Set[rec]](16)
	cfg := Config{WindowTime: 100, BufferTime: 0, SourceID: 7, QueueTimeout: 20 * time.Millisecond, DropOnDrain: true}
	m := NewMode3Stage[rec, rec](context.Background(), cfg, in, out, algorithm.NewIdentityMaker[rec]())
	require.NoError(t, m.Configure(nil))
	require.NoError(t, m.Start())
	return m, in, out
}

func send(t *testing.T, ch *memchan.Channel[isb.Set[rec]], s isb.Set[rec]) {
	require.NoError(t, ch.Send(context.Background(), s, time.Second))
}

func recv(t *testing.T, ch *memchan.Channel[isb.Set[rec]]) isb.Set[rec] {
	s, err := ch.Recv(context.Background(), time.Second)
	require.NoError(t, err)
	return s
}

// Scenario S1: pass-through windowing.
func TestMode3_S1_PassThroughWindowing(t *testing.T) {
	m, in, out := newMode3Identity(t)
	defer m.Stop()

	send(t, in, payload(t, 5, 6, 5))
	send(t, in, payload(t, 30, 31, 30))
	send(t, in, payload(t, 105, 106, 105))
	send(t, in, payload(t, 210, 211, 210))
	send(t, in, heartbeat(t, 400))

	w0 := recv(t, out)
	assert.Equal(t, isb.Payload, w0.Type)
	assert.Equal(t, isb.Tick(0), w0.StartTime)
	assert.Equal(t, isb.Tick(100), w0.EndTime)
	assert.Equal(t, []isb.Tick{5, 30}, times(w0.Objects))
	assert.Equal(t, uint64(1), w0.Seqno)

	w1 := recv(t, out)
	assert.Equal(t, isb.Tick(100), w1.StartTime)
	assert.Equal(t, []isb.Tick{105}, times(w1.Objects))
	assert.Equal(t, uint64(2), w1.Seqno)

	w2 := recv(t, out)
	assert.Equal(t, isb.Tick(200), w2.StartTime)
	assert.Equal(t, []isb.Tick{210}, times(w2.Objects))
	assert.Equal(t, uint64(3), w2.Seqno)

	hb := recv(t, out)
	assert.Equal(t, isb.Heartbeat, hb.Type)
	assert.Equal(t, isb.Tick(400), hb.StartTime)
	assert.Equal(t, uint64(4), hb.Seqno)

	received, sent := m.Counters().Snapshot()
	assert.Equal(t, int64(5), received)
	assert.Equal(t, int64(4), sent)
}

func times(objs []rec) []isb.Tick {
	out := make([]isb.Tick, len(objs))
	for i, o := range objs {
		out[i] = o.t
	}
	return out
}

// Scenario S2: input slice reassembly from multiple producers.
func TestMode3_S2_InputSliceReassembly(t *testing.T) {
	m, in, out := newMode3Identity(t)
	defer m.Stop()

	// two producers for the same [0,100) slice, then a new slice key.
	send(t, in, payload(t, 0, 100, 10))
	send(t, in, payload(t, 0, 100, 50))
	send(t, in, payload(t, 100, 200, 150))
	send(t, in, heartbeat(t, 300))

	w0 := recv(t, out)
	assert.Equal(t, []isb.Tick{10, 50}, times(w0.Objects), "both producers' elements land in one slice, time-ordered")

	w1 := recv(t, out)
	assert.Equal(t, []isb.Tick{150}, times(w1.Objects))

	_ = recv(t, out) // heartbeat
}

// Scenario S3: out-of-order payload warning, element still processed.
func TestMode3_S3_OutOfOrderWarning(t *testing.T) {
	m, in, out := newMode3Identity(t)
	defer m.Stop()

	send(t, in, payload(t, 200, 300, 250))
	send(t, in, payload(t, 100, 200, 150)) // start_time regresses: absorbed with a warning, not dropped.
	send(t, in, payload(t, 400, 500, 450))
	send(t, in, heartbeat(t, 600))

	// output windows release in ascending start_time regardless of the
	// order their elements arrived or were buffered in.
	w0 := recv(t, out)
	assert.Equal(t, isb.Tick(100), w0.StartTime)
	assert.Equal(t, []isb.Tick{150}, times(w0.Objects), "the out-of-order element is still processed, not dropped")
	w1 := recv(t, out)
	assert.Equal(t, isb.Tick(200), w1.StartTime)
	assert.Equal(t, []isb.Tick{250}, times(w1.Objects))
	w2 := recv(t, out)
	assert.Equal(t, isb.Tick(400), w2.StartTime)
	assert.Equal(t, []isb.Tick{450}, times(w2.Objects))
	_ = recv(t, out) // heartbeat
}

// Scenario S4: heartbeat flushes algorithm state accumulated across inputs.
func TestMode3_S4_HeartbeatFlushesAlgorithm(t *testing.T) {
	in := memchan.New[isb.Set[rec]](16)
	out := memchan.New[isb.Set[rec]](16)
	cfg := Config{WindowTime: 100, BufferTime: 0, QueueTimeout: 20 * time.Millisecond, DropOnDrain: true}
	m := NewMode3Stage[rec, rec](context.Background(), cfg, in, out, algorithm.NewAccumulatorMaker[rec]())
	require.NoError(t, m.Configure(nil))
	require.NoError(t, m.Start())
	defer m.Stop()

	send(t, in, payload(t, 10, 11, 10))
	send(t, in, payload(t, 20, 21, 20))
	send(t, in, payload(t, 30, 31, 30))
	send(t, in, heartbeat(t, 100))

	w0 := recv(t, out)
	assert.Equal(t, isb.Payload, w0.Type)
	assert.Equal(t, []isb.Tick{10, 20, 30}, times(w0.Objects), "flush releases everything the accumulator held back")
}

// Scenario S5: drain-on-stop drops a partial window.
func TestMode3_S5_DrainOnStopDropsPartialWindow(t *testing.T) {
	m, in, out := newMode3Identity(t)

	send(t, in, payload(t, 5, 6, 5))
	send(t, in, payload(t, 10, 11, 10))
	time.Sleep(30 * time.Millisecond) // let the worker absorb both into the input buffer.
	m.Stop()

	_, err := out.Recv(context.Background(), 50*time.Millisecond)
	assert.Error(t, err, "no Set<B> with start_time=0 is emitted on drop-drain")
	received, sent := m.Counters().Snapshot()
	assert.Equal(t, int64(2), received)
	assert.Equal(t, int64(0), sent)
}

// Scenario S6: empty window suppressed.
func TestMode3_S6_EmptyWindowSuppressed(t *testing.T) {
	in := memchan.New[isb.Set[rec]](16)
	out := memchan.New[isb.Set[rec]](16)
	cfg := Config{WindowTime: 100, BufferTime: 0, QueueTimeout: 20 * time.Millisecond, DropOnDrain: true}

	// an algorithm that drops everything from [0,100) but passes through [100,200).
	m := NewMode3Stage[rec, rec](context.Background(), cfg, in, out, algorithm.Maker[rec, rec](func(_ map[string]any) (algorithm.Algorithm[rec, rec], error) {
		return suppressFirstWindow{}, nil
	}))
	require.NoError(t, m.Configure(nil))
	require.NoError(t, m.Start())
	defer m.Stop()

	send(t, in, payload(t, 50, 51, 50))
	send(t, in, payload(t, 150, 151, 150))
	send(t, in, heartbeat(t, 300))

	w := recv(t, out)
	assert.Equal(t, isb.Tick(100), w.StartTime, "only the non-empty [100,200) window is emitted")
	_ = recv(t, out) // heartbeat
}

type suppressFirstWindow struct{}

func (suppressFirstWindow) Apply(in rec) ([]rec, error) {
	if in.t < 100 {
		return nil, nil
	}
	return []rec{in}, nil
}
func (suppressFirstWindow) Flush(_ isb.Tick) ([]rec, error) { return nil, nil }

// DropOnDrain=false flushes buffered state through the algorithm and
// sends every resulting window; a send failure during that flush is
// aggregated into DrainErr rather than silently swallowed.
func TestMode3_DrainErrAggregatesFailedSends(t *testing.T) {
	in := memchan.New[isb.Set[rec]](16)
	out := memchan.New[isb.Set[rec]](16)
	cfg := Config{WindowTime: 100, BufferTime: 0, QueueTimeout: 20 * time.Millisecond, DropOnDrain: false}
	m := NewMode3Stage[rec, rec](context.Background(), cfg, in, out, algorithm.NewIdentityMaker[rec]())
	require.NoError(t, m.Configure(nil))
	require.NoError(t, m.Start())

	send(t, in, payload(t, 5, 6, 5))
	send(t, in, payload(t, 10, 11, 10))
	time.Sleep(30 * time.Millisecond) // let the worker absorb both into the input buffer.
	require.NoError(t, out.Close())   // every flushed window's Send will now fail.

	m.Stop()
	assert.Error(t, m.DrainErr(), "drain accumulates the send failure instead of discarding it")
}
