package pipeline

import (
	"time"

	"subgen/internal/fetch"
	"subgen/internal/userstore"
)

// State is the lifecycle position of a job.
type State string

const (
	StateAdmitted          State = "admitted"
	StateDownloading       State = "downloading"
	StateExtractingAudio   State = "extracting_audio"
	StateTranscribing      State = "transcribing"
	StateDetectingLanguage State = "detecting_language"
	StateTranslating       State = "translating"
	StateFormatting        State = "formatting"
	StateBurningIn         State = "burning_in"
	StateDelivering        State = "delivering"
	StateSucceeded         State = "succeeded"
	StateFailed            State = "failed"
	StateCancelled         State = "cancelled"
)

// Terminal reports whether a job in this state is finished.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Mode selects how the finished artifact reaches the user.
type Mode string

const (
	// ModeBurn renders the subtitles into the video and sends the file.
	ModeBurn Mode = "burn"
	// ModeDisplay uploads video and captions and returns a player link.
	ModeDisplay Mode = "display"
	// ModeTranscribe delivers a plain transcript without timing.
	ModeTranscribe Mode = "transcribe"
)

// TargetOriginal keeps the subtitles in the detected source language.
const TargetOriginal = "Original"

// Request is everything needed to admit a new job.
type Request struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`

	// Link is the remote source URL. LocalFile, when set, is a
	// pre-uploaded file that bypasses the fetcher.
	Link      string `json:"link"`
	LocalFile string `json:"local_file,omitempty"`

	Selection      fetch.Selection    `json:"selection"`
	TargetLanguage string             `json:"target_language"` // target language code, or TargetOriginal
	LanguageHint   string             `json:"language_hint,omitempty"` // source language, empty to let the model detect
	Mode           Mode               `json:"mode"`
	Settings       userstore.Settings `json:"settings"`

	// DurationMinutes carries a known duration, 0 when unknown. Unknown
	// durations are probed at admission and re-checked after download.
	DurationMinutes int `json:"duration_minutes,omitempty"`
}

// Job is the orchestrator's view of one admitted request.
type Job struct {
	ID      string  `json:"id"`
	Request Request `json:"request"`

	State       State       `json:"state"`
	FailureKind FailureKind `json:"failure_kind,omitempty"`
	FailureText string      `json:"failure_text,omitempty"`

	WorkDir          string `json:"-"`
	Handle           string `json:"-"` // in-flight remote job handle, cleared at cleanup
	DurationMinutes  int    `json:"duration_minutes"`
	DetectedLanguage string `json:"detected_language,omitempty"`
	CueCount         int    `json:"cue_count,omitempty"`
	ResultLink       string `json:"result_link,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// DeliveryKind tells the messenger what the payload is.
type DeliveryKind string

const (
	DeliverText     DeliveryKind = "text"
	DeliverDocument DeliveryKind = "document"
	DeliverVideo    DeliveryKind = "video"
	DeliverLink     DeliveryKind = "link"
)

// Delivery is the finished artifact handed to the messenger.
type Delivery struct {
	Kind             DeliveryKind
	Text             string
	FilePath         string
	URL              string
	DetectedLanguage string
	CueCount         int
}
