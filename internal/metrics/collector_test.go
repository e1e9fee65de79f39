package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpSend, 10*time.Millisecond, false)
	c.RecordTiming(OpSend, 30*time.Millisecond, true)
	c.RecordTiming(OpAuth, 5*time.Millisecond, false)

	snap := c.Snapshot()
	require.Len(t, snap.Operations, 2)

	auth := snap.Operations[0]
	assert.Equal(t, OpAuth, auth.Name)
	assert.Equal(t, int64(1), auth.Count)

	send := snap.Operations[1]
	assert.Equal(t, OpSend, send.Name)
	assert.Equal(t, int64(2), send.Count)
	assert.Equal(t, int64(1), send.Failures)
	assert.Equal(t, int64(10), send.MinTimeMs)
	assert.Equal(t, int64(30), send.MaxTimeMs)
	assert.InDelta(t, 20.0, send.AvgTimeMs, 0.001)
}

func TestEmptySnapshot(t *testing.T) {
	snap := NewCollector().Snapshot()
	assert.Empty(t, snap.Operations)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestNilCollectorIgnoresRecords(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() { c.RecordTiming(OpSend, time.Millisecond, false) })
}
