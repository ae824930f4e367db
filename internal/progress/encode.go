package progress

import (
	"regexp"
	"strconv"
	"time"
)

var (
	durationPattern = regexp.MustCompile(`Duration: (\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
	outTimePattern  = regexp.MustCompile(`out_time=(\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
)

// EncodeMonitor turns the machine-readable line stream of an encoder run
// (`-progress - -nostats`) into percentages. The total duration is taken
// from the first "Duration:" line, or from the override when the stream
// never reports one. Updates under one percentage point apart are
// suppressed.
type EncodeMonitor struct {
	totalMS    int
	overrideMS int
	lastShown  int
}

// NewEncodeMonitor creates a monitor. durationOverride may be zero when
// the stream is expected to report its own duration.
func NewEncodeMonitor(durationOverride time.Duration) *EncodeMonitor {
	return &EncodeMonitor{overrideMS: int(durationOverride.Milliseconds())}
}

// Observe consumes one output line and reports whether the resulting
// percentage should be surfaced. Lines that match neither pattern are
// ignored.
func (m *EncodeMonitor) Observe(line string) (int, bool) {
	if m.totalMS == 0 {
		if match := durationPattern.FindStringSubmatch(line); match != nil {
			m.totalMS = timecodeToMS(match)
			return 0, false
		}
		if m.overrideMS > 0 {
			m.totalMS = m.overrideMS
			return 0, false
		}
	}
	if m.totalMS == 0 {
		return 0, false
	}

	match := outTimePattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	percent := clampPercent(timecodeToMS(match) * 100 / m.totalMS)

	if percent-m.lastShown >= 1 {
		m.lastShown = percent
		return percent, true
	}
	return percent, false
}

// Done marks the run complete and reports whether a final update is due.
func (m *EncodeMonitor) Done() (int, bool) {
	if m.lastShown >= 100 {
		return 100, false
	}
	m.lastShown = 100
	return 100, true
}

// timecodeToMS converts a matched HH:MM:SS.cc timecode to milliseconds.
// The fractional part is carried over as-is; it cancels out when two
// timecodes parsed the same way are divided.
func timecodeToMS(match []string) int {
	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])
	sec, _ := strconv.Atoi(match[3])
	frac, _ := strconv.Atoi(match[4])
	return hour*3_600_000 + minute*60_000 + sec*1_000 + frac
}
