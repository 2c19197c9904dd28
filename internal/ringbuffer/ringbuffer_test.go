package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_PushAndLatest(t *testing.T) {
	b := NewBuffer(3)
	b.Push(1.0, 100)
	b.Push(2.0, 200)

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 2.0, latest.Value)
	assert.Equal(t, int64(200), latest.Ts)
}

func TestBuffer_LatestEmpty(t *testing.T) {
	b := NewBuffer(3)
	_, ok := b.Latest()
	assert.False(t, ok)
}

func TestBuffer_EvictionRetainsGuardSample(t *testing.T) {
	b := NewBuffer(2)
	b.Push(1.0, 100)
	b.Push(2.0, 200)
	b.Push(3.0, 300) // evicts sample at ts=100 into guard

	// Window starts before any in-buffer sample, so the guard is needed
	// to represent what held during [150, 300].
	window := b.ValuesInWindow(150, 300, true)
	require.Len(t, window, 3)
	assert.Equal(t, 1.0, window[0].Value) // guard
	assert.Equal(t, int64(100), window[0].Ts)
	assert.Equal(t, 2.0, window[1].Value)
	assert.Equal(t, 3.0, window[2].Value)
}

func TestBuffer_ValuesInWindowExcludesGuardWhenNotNeeded(t *testing.T) {
	b := NewBuffer(2)
	b.Push(1.0, 100)
	b.Push(2.0, 200)
	b.Push(3.0, 300)

	window := b.ValuesInWindow(50, 300, true)
	require.Len(t, window, 1)
	assert.Equal(t, 3.0, window[0].Value)
}

func TestBuffer_ValuesInWindowIncludeGuardFalse(t *testing.T) {
	b := NewBuffer(2)
	b.Push(1.0, 100)
	b.Push(2.0, 200)
	b.Push(3.0, 300)

	window := b.ValuesInWindow(150, 300, false)
	require.Len(t, window, 2)
	assert.Equal(t, 2.0, window[0].Value)
	assert.Equal(t, 3.0, window[1].Value)
}

func TestBuffer_EmptyWindowNoSamplesNoGuard(t *testing.T) {
	b := NewBuffer(2)
	window := b.ValuesInWindow(1000, 0, true)
	assert.Empty(t, window)
}

func TestBuffer_OutOfOrderTimestampRecorded(t *testing.T) {
	b := NewBuffer(3)
	b.Push(1.0, 100)
	b.Push(2.0, 50) // out of order, still recorded
	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 2.0, latest.Value)
}

func TestCapacity_DerivedFromDurationAndCycleTime(t *testing.T) {
	// ceil(10000/1000)+1 = 11, exceeds default bufferCapacity of 5.
	assert.Equal(t, 11, Capacity(5, 10000, 1000))
	// bufferCapacity already larger.
	assert.Equal(t, 64, Capacity(64, 1000, 1000))
}

func TestManager_PushAndLookup(t *testing.T) {
	m := NewManager(map[string]int{"temp": 4})
	m.Push("temp", 80.0, 1000, 4)
	m.Push("temp", 85.0, 2000, 4)

	latest, ok := m.Latest("temp")
	require.True(t, ok)
	assert.Equal(t, 85.0, latest.Value)

	window := m.ValuesInWindow("temp", 2000, 2000, true)
	require.Len(t, window, 2)
}

func TestManager_UnknownSensorReturnsEmpty(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.Latest("missing")
	assert.False(t, ok)
	assert.Nil(t, m.ValuesInWindow("missing", 1000, 1000, true))
}

func TestManager_FirstTsTracksFirstPushAndSurvivesEviction(t *testing.T) {
	m := NewManager(map[string]int{"temp": 2})
	_, ok := m.FirstTs("temp")
	assert.False(t, ok, "an unpushed sensor has no first-seen timestamp")

	m.Push("temp", 80.0, 1000, 2)
	ts, ok := m.FirstTs("temp")
	require.True(t, ok)
	assert.Equal(t, int64(1000), ts)

	m.Push("temp", 81.0, 2000, 2)
	m.Push("temp", 82.0, 3000, 2) // evicts the sample from t=1000 into the guard slot

	ts, ok = m.FirstTs("temp")
	require.True(t, ok)
	assert.Equal(t, int64(1000), ts, "first-seen timestamp does not move when older samples are evicted")
}

func TestManager_FirstTsUnknownSensor(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.FirstTs("missing")
	assert.False(t, ok)
}
