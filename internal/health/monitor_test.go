package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitorGracePeriod(t *testing.T) {
	now := time.Unix(5000, 0)
	m := NewMonitor(15 * time.Second)
	m.SetClock(func() time.Time { return now })

	assert.True(t, m.IsOnline())
	assert.False(t, m.RecordError(), "first error stays within grace period")
	assert.True(t, m.IsInGracePeriod())

	now = now.Add(10 * time.Second)
	assert.False(t, m.RecordError())
	assert.Equal(t, 10*time.Second, m.GetTimeSinceFirstError())

	now = now.Add(6 * time.Second)
	assert.True(t, m.RecordError())
	m.MarkOffline()
	assert.False(t, m.IsOnline())
	assert.Equal(t, 3, m.GetConsecutiveErrors())
	assert.Equal(t, now, m.GetLastErrorTime())

	now = now.Add(time.Second)
	m.RecordSuccess()
	assert.True(t, m.IsOnline())
	assert.Equal(t, 0, m.GetConsecutiveErrors())
	assert.Equal(t, now, m.GetLastSuccessTime())
	assert.Equal(t, 3, m.GetErrorCount())
	assert.Equal(t, 1, m.GetSuccessCount())
}

func TestMonitorMarkOnlineResets(t *testing.T) {
	m := NewMonitor(time.Second)
	m.RecordError()
	m.MarkOffline()
	m.MarkOnline()

	assert.True(t, m.IsOnline())
	assert.False(t, m.IsInGracePeriod())

	m.ResetCounters()
	assert.Equal(t, 0, m.GetErrorCount())
	assert.Equal(t, 0, m.GetSuccessCount())
}
