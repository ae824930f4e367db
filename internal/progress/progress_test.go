package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadMonitorSpacing(t *testing.T) {
	m := NewDownloadMonitor()

	_, ok := m.Update(0, "  5.0%")
	assert.False(t, ok, "6 points over the -1 baseline is below the spacing")

	percent, ok := m.Update(1, " 12.3%")
	require.True(t, ok)
	assert.Equal(t, 12, percent)

	_, ok = m.Update(2, " 17.9%")
	assert.False(t, ok, "5 points since last shown update")

	percent, ok = m.Update(3, " 61.0%")
	require.True(t, ok)
	assert.Equal(t, 61, percent)
}

func TestDownloadMonitorFragmentRegression(t *testing.T) {
	m := NewDownloadMonitor()

	_, ok := m.Update(5, " 20.0%")
	require.True(t, ok)

	// a lagging fragment must not move the bar even with a big delta
	_, ok = m.Update(3, " 90.0%")
	assert.False(t, ok)

	percent, ok := m.Update(5, " 90.0%")
	require.True(t, ok)
	assert.Equal(t, 90, percent)
}

func TestDownloadMonitorMalformedInput(t *testing.T) {
	m := NewDownloadMonitor()

	_, ok := m.Update(0, "N/A")
	assert.False(t, ok)
	_, ok = m.Update(0, "")
	assert.False(t, ok)

	percent, ok := m.Update(0, "350.0%")
	require.True(t, ok)
	assert.Equal(t, 100, percent, "overreported progress clamps to 100")
}

func TestEncodeMonitorParsesDurationAndOutTime(t *testing.T) {
	m := NewEncodeMonitor(0)

	_, ok := m.Observe("  Duration: 00:01:40.00, start: 0.000000, bitrate: 128 kb/s")
	assert.False(t, ok)

	percent, ok := m.Observe("out_time=00:00:50.00")
	require.True(t, ok)
	assert.Equal(t, 50, percent)

	// under one point of movement stays quiet
	_, ok = m.Observe("out_time=00:00:50.40")
	assert.False(t, ok)

	percent, ok = m.Observe("out_time=00:01:40.00")
	require.True(t, ok)
	assert.Equal(t, 100, percent)

	_, ok = m.Done()
	assert.False(t, ok, "already at 100")
}

func TestEncodeMonitorDurationOverride(t *testing.T) {
	m := NewEncodeMonitor(200 * time.Second)

	// no Duration line in the stream; the first line locks in the override
	_, ok := m.Observe("frame=1")
	assert.False(t, ok)

	percent, ok := m.Observe("out_time=00:00:50.00")
	require.True(t, ok)
	assert.Equal(t, 25, percent)
}

func TestEncodeMonitorIgnoresNoise(t *testing.T) {
	m := NewEncodeMonitor(0)

	_, ok := m.Observe("speed=4.5x")
	assert.False(t, ok, "no duration known yet")
	_, ok = m.Observe("out_time=00:00:10.00")
	assert.False(t, ok, "still no duration")

	percent, ok := m.Done()
	require.True(t, ok)
	assert.Equal(t, 100, percent)
}

func TestPollMonitorSyntheticPercent(t *testing.T) {
	// ceil(10 * 1.1) + 7 = 18 ticks
	m := NewPollMonitor(10, false, WarmModelOffset)

	percent, ok := m.Tick()
	require.True(t, ok)
	assert.Equal(t, 0, percent)

	seen := []int{percent}
	for i := 0; i < 40; i++ {
		p, report := m.Tick()
		assert.LessOrEqual(t, p, 100)
		if report {
			assert.Greater(t, p, seen[len(seen)-1], "reported percent must advance")
			seen = append(seen, p)
		}
	}
	assert.Less(t, seen[len(seen)-1], 100, "the estimate freezes before 100")
}

func TestPollMonitorAlignmentTakesLonger(t *testing.T) {
	transcribe := NewPollMonitor(30, false, WarmModelOffset)
	align := NewPollMonitor(30, true, WarmModelOffset)
	assert.Greater(t, align.totalTicks, transcribe.totalTicks)
}

func TestPollMonitorZeroDuration(t *testing.T) {
	m := NewPollMonitor(0, false, 0)
	percent, ok := m.Tick()
	require.True(t, ok)
	assert.Equal(t, 0, percent)
}

func TestBar(t *testing.T) {
	assert.Len(t, []rune(Bar(0, DefaultBarWidth)), DefaultBarWidth)
	assert.Equal(t, "░░░░", Bar(0, 4))
	assert.Equal(t, "████", Bar(100, 4))
	assert.Equal(t, "██░░", Bar(50, 4))
	// out-of-range input clamps instead of panicking
	assert.Equal(t, "████", Bar(250, 4))
	assert.Equal(t, "░░░░", Bar(-10, 4))
}
