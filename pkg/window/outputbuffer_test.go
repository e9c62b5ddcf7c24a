package window

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mroda88/trigger/pkg/isb"
)

type testElem struct {
	t isb.Tick
}

func (e testElem) TimeStart() isb.Tick { return e.t }

func newOut() *OutputBuffer[testElem] {
	return NewOutputBuffer[testElem](100, 0, isb.Origin{Subsystem: "trigger", ElementID: 1})
}

func TestOutputBuffer_PassThroughWindowing(t *testing.T) {
	o := newOut()

	o.Buffer([]testElem{{5}, {30}})
	assert.False(t, o.Ready(), "window [0,100) is not closed until watermark reaches 100")

	o.Buffer([]testElem{{105}})
	// watermark is now 105, which closes window [0,100) (105 >= 100+0).
	assert.True(t, o.Ready())

	out, ok := o.Flush()
	assert.True(t, ok)
	assert.Equal(t, isb.Payload, out.Type)
	assert.Equal(t, isb.Tick(0), out.StartTime)
	assert.Equal(t, isb.Tick(100), out.EndTime)
	assert.Equal(t, []testElem{{5}, {30}}, out.Objects)
	assert.Equal(t, uint64(1), out.Seqno)

	// [100,200) isn't closed yet: 105 < 200.
	_, ok = o.Flush()
	assert.False(t, ok)

	o.Buffer([]testElem{{210}})
	out, ok = o.Flush()
	assert.True(t, ok)
	assert.Equal(t, isb.Tick(100), out.StartTime)
	assert.Equal(t, []testElem{{105}}, out.Objects)
	assert.Equal(t, uint64(2), out.Seqno)

	hb, _ := isb.NewHeartbeatSet[testElem](400, 400, isb.Origin{})
	o.BufferHeartbeat(hb)

	out, ok = o.Flush()
	assert.True(t, ok)
	assert.Equal(t, isb.Tick(200), out.StartTime)
	assert.Equal(t, []testElem{{210}}, out.Objects)
	assert.Equal(t, uint64(3), out.Seqno)

	out, ok = o.Flush()
	assert.True(t, ok)
	assert.Equal(t, isb.Heartbeat, out.Type)
	assert.Equal(t, isb.Tick(400), out.StartTime)
	assert.Equal(t, uint64(4), out.Seqno)
}

func TestOutputBuffer_BoundaryElementBelongsToHigherWindow(t *testing.T) {
	o := newOut()
	o.Buffer([]testElem{{100}}) // exactly k*windowTime belongs to window k, not k-1.
	o.Buffer([]testElem{{250}})

	out, ok := o.Flush()
	assert.True(t, ok)
	assert.Equal(t, isb.Tick(100), out.StartTime)
	assert.Equal(t, []testElem{{100}}, out.Objects)
}

func TestOutputBuffer_EmptyWindowSuppressed(t *testing.T) {
	o := newOut()
	// nothing lands in [0,100); [100,200) gets one element.
	o.Buffer([]testElem{{150}, {305}})

	out, ok := o.Flush()
	assert.True(t, ok)
	assert.Equal(t, isb.Tick(100), out.StartTime)
	assert.Equal(t, []testElem{{150}}, out.Objects)

	_, ok = o.Flush()
	assert.False(t, ok, "[200,300) has no elements so nothing is emitted for it, and [300,400) is still open at watermark 305")
}

func TestOutputBuffer_BufferTimeOnlyDelaysRelease(t *testing.T) {
	withoutLag := NewOutputBuffer[testElem](100, 0, isb.Origin{})
	withLag := NewOutputBuffer[testElem](100, 50, isb.Origin{})

	withoutLag.Buffer([]testElem{{5}})
	withLag.Buffer([]testElem{{5}})

	withoutLag.Buffer([]testElem{{100}})
	withLag.Buffer([]testElem{{100}})
	_, ok := withLag.Flush()
	assert.False(t, ok, "buffer_time=50 keeps [0,100) open at watermark=100")

	out, ok := withoutLag.Flush()
	assert.True(t, ok)
	assert.Equal(t, []testElem{{5}}, out.Objects)

	withLag.Buffer([]testElem{{151}})
	out, ok = withLag.Flush()
	assert.True(t, ok)
	assert.Equal(t, []testElem{{5}}, out.Objects, "same window, released once watermark clears end+buffer_time")
}

func TestOutputBuffer_ResetDropsPartialWindows(t *testing.T) {
	o := newOut()
	o.Buffer([]testElem{{5}, {30}})
	o.Reset()
	assert.True(t, o.Empty())
	assert.False(t, o.Ready())
}
