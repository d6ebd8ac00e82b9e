package device

import (
	"math"
	"testing"
	"time"

	"pv-tracker-bridge/internal/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAngleClamps(t *testing.T) {
	tr := NewTracker(nil)

	tests := []struct {
		in   float64
		want float64
	}{
		{45, 45},
		{-20, 0},
		{200, 180},
		{180, 180},
	}
	for _, tt := range tests {
		got, err := tr.SetAngle(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want, tr.Angle())
	}

	_, err := tr.SetAngle(math.NaN())
	assert.Error(t, err)
	assert.Equal(t, 180.0, tr.Angle())
}

func TestSetModeRejectsInvalid(t *testing.T) {
	tr := NewTracker(nil)
	assert.NoError(t, tr.SetMode(message.ModeManual))
	assert.Error(t, tr.SetMode("AUTO"))
	assert.Equal(t, message.ModeManual, tr.Mode())
}

func TestCalibrateWithoutCalibrator(t *testing.T) {
	tr := NewTracker(nil)
	assert.Error(t, tr.Calibrate(map[string]float64{"voltage_offset": 1}))
}

func TestSunAngle(t *testing.T) {
	at := func(month time.Month, hour int) time.Time {
		return time.Date(2024, month, 15, hour, 30, 0, 0, time.UTC)
	}

	assert.Equal(t, 90.0, SunAngle(at(time.March, 12)))
	assert.Equal(t, 90.0, SunAngle(at(time.March, 3)), "night parks at 90")
	assert.Equal(t, 90.0, SunAngle(at(time.March, 0)), "midnight parks at 90")
	assert.Equal(t, 90.0, SunAngle(at(time.March, 20)))

	// January 09:00: y = -14.8770*9 + 180.7787 = 46.8857
	assert.InDelta(t, 90-46.8857, SunAngle(at(time.January, 9)), 1e-9)
	// January 15:00: y = 14.8770*15 - 176.2698 = 46.8852
	assert.InDelta(t, 90+46.8852, SunAngle(at(time.January, 15)), 1e-9)

	// Morning angles rise toward 90, afternoon angles rise past it
	assert.Less(t, SunAngle(at(time.July, 8)), SunAngle(at(time.July, 11)))
	assert.Less(t, SunAngle(at(time.July, 13)), SunAngle(at(time.July, 17)))
}

func TestEnergyMeterResetsAtMidnight(t *testing.T) {
	m := NewEnergyMeter()
	day := time.Date(2024, time.June, 1, 23, 0, 0, 0, time.UTC)

	m.Add(100, day)
	m.Add(100, day.Add(30*time.Minute))
	assert.InDelta(t, 50.0, m.TodayWh(), 1e-9)

	m.Add(100, day.Add(30*time.Minute)) // duplicate timestamp
	assert.InDelta(t, 50.0, m.TodayWh(), 1e-9)

	m.Add(100, day.Add(61*time.Minute))
	assert.Zero(t, m.TodayWh())

	m.Add(60, day.Add(91*time.Minute))
	assert.InDelta(t, 30.0, m.TodayWh(), 1e-9)
}
