package transcribe

import "subgen/internal/subtitle"

// Status is the remote job state reported by the transcription service.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// JobHandle identifies a submitted remote transcription job.
type JobHandle string

// Output is the final result of a remote transcription or alignment job.
type Output struct {
	Segments         []subtitle.Segment `json:"segments"`
	DetectedLanguage string             `json:"detected_language"`
	WordLevel        bool               `json:"word_level"`
}
