package domain

import (
	"errors"
	"strings"
)

type JobKind string

const (
	JobKindScript           JobKind = "script"
	JobKindNarratedAssembly JobKind = "narrated_assembly"
	JobKindAudioPreview     JobKind = "audio_preview"
)

type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusPolling   JobStatus = "polling"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions may leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Remote job statuses as reported by the backend poll endpoint. Anything
// that is not completed or failed is treated as still in progress.
const (
	RemoteStatusProcessing = "processing"
	RemoteStatusCompleted  = "completed"
	RemoteStatusFailed     = "failed"
)

// JobSnapshot is one observation of a running job. Progress is 0..100 and
// never decreases within the lifetime of a handle.
type JobSnapshot struct {
	Status   JobStatus
	Progress int
	Message  string
	Result   *JobResult
	Err      error
}

// JobResult carries the terminal payload of a completed job. Exactly one
// field is set depending on the job kind.
type JobResult struct {
	Document *ScriptDocument
	Artifact *ArtifactRef
}

// ArtifactRef locates a downloadable artifact produced by the backend.
type ArtifactRef struct {
	URLPath  string
	Filename string
}

// SubmitReceipt is the outcome of a submit call. Completed is set when the
// submit endpoint answered synchronously with the finished result, in which
// case there is nothing to poll and JobID is empty.
type SubmitReceipt struct {
	JobID     string
	Completed *JobResult
}

// StatusReport is one poll response for a running remote job.
type StatusReport struct {
	Status   string
	Progress int
	Message  string
	Result   *JobResult
}

// ScriptParams are the fully resolved options for a script generation call.
type ScriptParams struct {
	Audience           string `json:"audience"`
	Purpose            string `json:"purpose"`
	Context            string `json:"context"`
	Tone               string `json:"tone"`
	DurationSec        int    `json:"duration_sec"`
	IncludeTransitions bool   `json:"include_transitions"`
	Language           string `json:"language"`
	Provider           string `json:"provider"`
	Model              string `json:"model,omitempty"`
	APIKey             string `json:"api_key,omitempty"`
}

type ScriptJob struct {
	FileID string
	Params ScriptParams
}

type NarratedJob struct {
	FileID   string
	Segments []Segment
	Voice    string
	Rate     string
	Pitch    string
}

// JobRequest is a tagged union: exactly one of Script or Narrated is set,
// matching Kind.
type JobRequest struct {
	Kind     JobKind
	Script   *ScriptJob
	Narrated *NarratedJob
}

func (r JobRequest) Validate() error {
	switch r.Kind {
	case JobKindScript:
		if r.Script == nil || r.Narrated != nil {
			return errors.New("script job request must carry exactly a script payload")
		}
		if strings.TrimSpace(r.Script.FileID) == "" {
			return errors.New("script job requires a file id")
		}
	case JobKindNarratedAssembly:
		if r.Narrated == nil || r.Script != nil {
			return errors.New("narrated job request must carry exactly a narrated payload")
		}
		if strings.TrimSpace(r.Narrated.FileID) == "" {
			return errors.New("narrated job requires a file id")
		}
		if len(r.Narrated.Segments) == 0 {
			return errors.New("narrated job requires at least one segment")
		}
		if strings.TrimSpace(r.Narrated.Voice) == "" {
			return errors.New("narrated job requires a voice")
		}
	default:
		return errors.New("unsupported job kind: " + string(r.Kind))
	}
	return nil
}
