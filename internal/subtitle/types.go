package subtitle

// Word is a single recognized token with optional timing. Start/End are nil
// when the recognizer produced no timestamp for the token; the processor
// fills them in by estimation.
type Word struct {
	Text  string   `json:"word"`
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
}

// Segment is a recognition-produced span of speech with a transcript and
// optional per-word timestamps.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Cue is one timed subtitle entry in the output file.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

func floatPtr(v float64) *float64 {
	return &v
}
