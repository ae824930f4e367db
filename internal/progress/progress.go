package progress

// Event is one progress update emitted by a pipeline stage. Only the
// latest event per stage matters to a consumer.
type Event struct {
	Stage   string
	Percent int
	Label   string
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
