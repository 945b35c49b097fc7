package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/JaplinChen/ppt-narrator/internal/domain"
)

// RemoteJobAPI is the slice of the backend the orchestrator depends on.
type RemoteJobAPI interface {
	SubmitJob(ctx context.Context, request domain.JobRequest) (domain.SubmitReceipt, error)
	JobStatus(ctx context.Context, jobID string) (domain.StatusReport, error)
}

// Config tunes the poll cadence. The reference frontend waits one second
// before the first poll and two seconds between polls.
type Config struct {
	InitialDelay time.Duration
	PollInterval time.Duration
}

// Orchestrator submits long-running generation jobs and polls them to a
// terminal state without blocking the caller.
type Orchestrator struct {
	api          RemoteJobAPI
	initialDelay time.Duration
	pollInterval time.Duration
	logger       *log.Logger
}

func New(api RemoteJobAPI, config Config, logger *log.Logger) *Orchestrator {
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	return &Orchestrator{
		api:          api,
		initialDelay: config.InitialDelay,
		pollInterval: config.PollInterval,
		logger:       logger,
	}
}

// Handle observes one submitted job. Snapshots are emitted in non-decreasing
// progress order and the terminal snapshot is always last; the channel is
// closed once no more snapshots will arrive. After Cancel no snapshot is
// emitted, even when in-flight requests later resolve.
type Handle struct {
	id        string
	kind      domain.JobKind
	snapshots chan domain.JobSnapshot
	cancel    context.CancelFunc
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) Kind() domain.JobKind {
	return h.kind
}

func (h *Handle) Snapshots() <-chan domain.JobSnapshot {
	return h.snapshots
}

// Cancel stops future polls and emissions. It is cooperative: an in-flight
// request is not aborted at the transport level, its result is dropped.
func (h *Handle) Cancel() {
	h.cancel()
}

// Submit starts the job described by request and returns a handle to
// observe it. Submitting a replacement job is the caller's concern: cancel
// the superseded handle first.
func (o *Orchestrator) Submit(ctx context.Context, request domain.JobRequest) (*Handle, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := &Handle{
		id:        uuid.NewString(),
		kind:      request.Kind,
		snapshots: make(chan domain.JobSnapshot, 16),
		cancel:    cancel,
	}
	go o.run(runCtx, handle, request)
	return handle, nil
}

func (o *Orchestrator) run(ctx context.Context, handle *Handle, request domain.JobRequest) {
	defer handle.cancel()
	defer close(handle.snapshots)

	progress := 0
	emit := func(snapshot domain.JobSnapshot) bool {
		if ctx.Err() != nil {
			return false
		}
		if snapshot.Progress < progress {
			snapshot.Progress = progress
		}
		progress = snapshot.Progress
		select {
		case <-ctx.Done():
			return false
		case handle.snapshots <- snapshot:
			return true
		}
	}

	if !emit(domain.JobSnapshot{Status: domain.JobStatusSubmitted}) {
		return
	}

	receipt, err := o.api.SubmitJob(ctx, request)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		o.logf("job %s submit failed kind=%s err=%v", handle.id, handle.kind, err)
		emit(domain.JobSnapshot{
			Status:  domain.JobStatusFailed,
			Message: domain.UserMessage(err),
			Err:     err,
		})
		return
	}
	if receipt.Completed != nil {
		emit(domain.JobSnapshot{
			Status:   domain.JobStatusCompleted,
			Progress: 100,
			Result:   receipt.Completed,
		})
		return
	}

	if !emit(domain.JobSnapshot{Status: domain.JobStatusPolling}) {
		return
	}

	timer := time.NewTimer(o.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		report, err := o.api.JobStatus(ctx, receipt.JobID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// A failed poll stops the loop; it is never retried silently.
			o.logf("job %s poll failed kind=%s err=%v", handle.id, handle.kind, err)
			emit(domain.JobSnapshot{
				Status:  domain.JobStatusFailed,
				Message: domain.UserMessage(err),
				Err:     err,
			})
			return
		}

		switch report.Status {
		case domain.RemoteStatusCompleted:
			emit(domain.JobSnapshot{
				Status:   domain.JobStatusCompleted,
				Progress: 100,
				Message:  report.Message,
				Result:   report.Result,
			})
			return
		case domain.RemoteStatusFailed:
			jobErr := &domain.JobError{Message: report.Message}
			emit(domain.JobSnapshot{
				Status:  domain.JobStatusFailed,
				Message: report.Message,
				Err:     jobErr,
			})
			return
		default:
			if !emit(domain.JobSnapshot{
				Status:   domain.JobStatusPolling,
				Progress: report.Progress,
				Message:  report.Message,
			}) {
				return
			}
			timer.Reset(o.pollInterval)
		}
	}
}

// Await drains a handle until its terminal snapshot, returning it. A
// cancelled handle yields a synthetic cancelled snapshot.
func Await(handle *Handle) domain.JobSnapshot {
	last := domain.JobSnapshot{Status: domain.JobStatusCancelled}
	for snapshot := range handle.Snapshots() {
		last = snapshot
	}
	if !last.Status.Terminal() {
		last = domain.JobSnapshot{Status: domain.JobStatusCancelled, Progress: last.Progress}
	}
	return last
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
