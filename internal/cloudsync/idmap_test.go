package cloudsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDMapRebindsBothDirections(t *testing.T) {
	m := NewIDMap()
	m.Put(7, 101)
	m.Put(7, 205)

	r, ok := m.Remote(7)
	require.True(t, ok)
	assert.Equal(t, RemoteID(205), r)
	_, ok = m.Local(101)
	assert.False(t, ok)
	l, ok := m.Local(205)
	require.True(t, ok)
	assert.Equal(t, LocalID(7), l)

	m.Forget(7)
	assert.Zero(t, m.Len())
	_, ok = m.Local(205)
	assert.False(t, ok)
}

func TestParseLocalID(t *testing.T) {
	id, err := ParseLocalID("42")
	require.NoError(t, err)
	assert.Equal(t, LocalID(42), id)
	assert.Equal(t, "42", id.String())

	_, err = ParseLocalID("abc")
	assert.Error(t, err)
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	c := &Coordinator{opts: Options{BackoffBase: 2 * time.Second, BackoffMax: 30 * time.Second}}
	want := []time.Duration{0, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for retry, d := range want {
		assert.Equal(t, d, c.backoff(retry), "retry %d", retry)
	}

	c.opts.BackoffBase = 0
	assert.Zero(t, c.backoff(3))
}
