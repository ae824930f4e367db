package pipeline

import (
	"errors"
	"fmt"
	"strconv"
)

// FailureKind classifies why a job failed. Every stage boundary maps its
// own failures to exactly one kind; only truly unexpected errors fall
// through to FailureInternal.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureAdmissionRejected
	FailureSourceUnavailable
	FailureNoAudioTrack
	FailureTranscriptionSubmit
	FailureTranscriptionJob
	FailureNoSpeech
	FailureTranslation
	FailureEncode
	FailureDelivery
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "NONE"
	case FailureAdmissionRejected:
		return "ADMISSION_REJECTED"
	case FailureSourceUnavailable:
		return "SOURCE_UNAVAILABLE"
	case FailureNoAudioTrack:
		return "NO_AUDIO_TRACK"
	case FailureTranscriptionSubmit:
		return "TRANSCRIPTION_SUBMIT_FAILED"
	case FailureTranscriptionJob:
		return "TRANSCRIPTION_JOB_FAILED"
	case FailureNoSpeech:
		return "NO_SPEECH_DETECTED"
	case FailureTranslation:
		return "TRANSLATION_FAILED"
	case FailureEncode:
		return "ENCODE_FAILED"
	case FailureDelivery:
		return "DELIVERY_FAILED"
	default:
		return "INTERNAL"
	}
}

// MarshalJSON renders the kind as its symbolic name.
func (k FailureKind) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(k.String())), nil
}

// PipelineError carries the user-facing failure classification alongside
// the underlying cause.
type PipelineError struct {
	Kind    FailureKind
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func failf(kind FailureKind, cause error, format string, args ...any) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// KindOf extracts the failure classification from an error chain,
// defaulting to the internal catch-all.
func KindOf(err error) FailureKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return FailureInternal
}

// MessageOf extracts the user-facing message from an error chain.
func MessageOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "something went wrong, please try again later"
}
