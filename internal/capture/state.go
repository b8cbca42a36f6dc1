package capture

import (
	"fmt"
	"time"

	"github.com/zombor/doc-capture/internal/extraction"
)

// NoDocumentMessage is shown when submit is pressed before picking a file
const NoDocumentMessage = "Please select a document first"

// Submit button labels
const (
	SubmitLabelIdle       = "Extract Information"
	SubmitLabelSubmitting = "Processing..."
)

// SubmissionState tells whether an extraction request is in flight
type SubmissionState int

const (
	Idle SubmissionState = iota
	Submitting
)

func (s SubmissionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("SubmissionState(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler
func (s SubmissionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a point-in-time copy of the controller's state
type State struct {
	HasDocument    bool
	Filename       string
	Preview        string
	PreviewPending bool
	Result         *extraction.Result
	ResultFilename string
	Error          string
	Submission     SubmissionState
}

// CanSubmit reports whether a submission may start
func (s State) CanSubmit() bool {
	return s.HasDocument && s.Submission == Idle
}

// SubmitLabel is the submit control's label for this state
func (s State) SubmitLabel() string {
	if s.Submission == Submitting {
		return SubmitLabelSubmitting
	}
	return SubmitLabelIdle
}

// Outcome records one completed submission. Exactly one of Result and
// Error is set.
type Outcome struct {
	ID          string             `json:"id"`
	Filename    string             `json:"filename"`
	ContentType string             `json:"content_type"`
	Size        int                `json:"size"`
	Result      *extraction.Result `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
}

// Recorder keeps completed submission outcomes
type Recorder interface {
	Record(outcome *Outcome) error
}
