package slice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/mroda88/trigger/pkg/isb"
)

type testElem struct {
	t isb.Tick
}

func (e testElem) TimeStart() isb.Tick { return e.t }

func mustPayload(t *testing.T, start, end isb.Tick, objs ...testElem) isb.Set[testElem] {
	s, err := isb.NewPayloadSet[testElem](start, end, isb.Origin{Subsystem: "test", ElementID: 1}, objs)
	assert.NoError(t, err)
	return s
}

func TestInputBuffer_AbsorbsUntilKeyChanges(t *testing.T) {
	b := NewInputBuffer[testElem](zaptest.NewLogger(t).Sugar())

	objs, start, end, complete, warn := b.Buffer(mustPayload(t, 0, 100, testElem{10}))
	assert.False(t, complete)
	assert.Nil(t, warn)
	assert.Nil(t, objs)

	objs, start, end, complete, warn = b.Buffer(mustPayload(t, 0, 100, testElem{50}))
	assert.False(t, complete)
	assert.Nil(t, warn)

	// new key: the [0,100) slice is now complete, sorted, and returned.
	objs, start, end, complete, warn = b.Buffer(mustPayload(t, 100, 200, testElem{150}))
	assert.True(t, complete)
	assert.Nil(t, warn)
	assert.Equal(t, isb.Tick(0), start)
	assert.Equal(t, isb.Tick(100), end)
	assert.Equal(t, []testElem{{10}, {50}}, objs)
}

func TestInputBuffer_OutOfOrderWarnsButAbsorbs(t *testing.T) {
	b := NewInputBuffer[testElem](zaptest.NewLogger(t).Sugar())

	_, _, _, _, warn := b.Buffer(mustPayload(t, 200, 300, testElem{210}))
	assert.Nil(t, warn)

	objs, start, end, complete, warn := b.Buffer(mustPayload(t, 100, 200, testElem{110}))
	assert.Error(t, warn)
	var ooo isb.OutOfOrderSetsErr
	assert.ErrorAs(t, warn, &ooo)
	assert.False(t, ooo.Fatal)
	// the out-of-order set still completes the in-progress [200,300) slice.
	assert.True(t, complete)
	assert.Equal(t, isb.Tick(200), start)
	assert.Equal(t, isb.Tick(300), end)
	assert.Equal(t, []testElem{{210}}, objs)
}

func TestInputBuffer_FlushEmitsBufferedSlice(t *testing.T) {
	b := NewInputBuffer[testElem](zaptest.NewLogger(t).Sugar())

	_, _, _, ok := b.Flush()
	assert.False(t, ok)

	_, _, _, _, _ = b.Buffer(mustPayload(t, 0, 100, testElem{30}, testElem{5}))
	objs, start, end, ok2 := b.Flush()
	assert.True(t, ok2)
	assert.Equal(t, isb.Tick(0), start)
	assert.Equal(t, isb.Tick(100), end)
	assert.Equal(t, []testElem{{5}, {30}}, objs)

	_, _, _, ok3 := b.Flush()
	assert.False(t, ok3)
}
