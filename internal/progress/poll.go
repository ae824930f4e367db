package progress

import "math"

// Poll progress estimate constants. Alignment runs slower than plain
// transcription, and the remote model needs a few ticks to spin up.
const (
	transcribeMultiplier = 1.1
	alignMultiplier      = 1.3

	WarmModelOffset = 7
	ColdModelOffset = 600
)

// PollMonitor synthesizes a percentage for a remote job that reports no
// progress of its own. The expected tick count is derived from the video
// duration; once the estimate is exhausted the bar freezes rather than
// overshooting.
type PollMonitor struct {
	totalTicks  int
	tick        int
	lastPercent int
}

// NewPollMonitor creates a monitor for a job over a video of the given
// length. align selects the slower alignment estimate.
func NewPollMonitor(videoMinutes int, align bool, warmupTicks int) *PollMonitor {
	multiplier := transcribeMultiplier
	if align {
		multiplier = alignMultiplier
	}
	total := int(math.Ceil(float64(videoMinutes)*multiplier)) + warmupTicks
	if total < 1 {
		total = 1
	}
	return &PollMonitor{totalTicks: total, lastPercent: -1}
}

// Tick advances the estimate by one poll interval and reports whether the
// percentage changed and is still within the estimate.
func (m *PollMonitor) Tick() (int, bool) {
	percent := clampPercent(m.tick * 100 / m.totalTicks)
	report := m.tick < m.totalTicks && percent != m.lastPercent
	if report {
		m.lastPercent = percent
	}
	m.tick++
	return percent, report
}
