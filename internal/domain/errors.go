package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout marks a request that exceeded its time budget.
	ErrTimeout = errors.New("request timed out")
	// ErrUnavailable marks a transport-level failure before any response.
	ErrUnavailable = errors.New("service unavailable")
	// ErrInvalidState marks a call that violates a component's state
	// machine, such as saving a segment that is not being edited.
	ErrInvalidState = errors.New("invalid state")
)

// RemoteError is a non-2xx response carrying a server-provided detail
// message. The detail is propagated verbatim so the user can act on it.
type RemoteError struct {
	StatusCode int
	Detail     string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.Detail)
}

// JobError is a terminal failed status reported by the poll endpoint.
type JobError struct {
	Message string
}

func (e *JobError) Error() string {
	return e.Message
}

// Unreachable reports whether err belongs to the normalized "could not
// reach the service" category (transport failures and timeouts).
func Unreachable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}

// UserMessage maps an error to the text shown to the user. Server-reported
// messages pass through verbatim; transport problems collapse into a single
// connectivity message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if Unreachable(err) {
		return "could not reach the generation service, please check backend availability and retry"
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Detail
	}
	var job *JobError
	if errors.As(err, &job) {
		return job.Message
	}
	return err.Error()
}
