package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JaplinChen/ppt-narrator/internal/domain"
	"github.com/JaplinChen/ppt-narrator/internal/draft"
)

type statusStep struct {
	report domain.StatusReport
	err    error
}

type scriptedJobAPI struct {
	mu          sync.Mutex
	receipt     domain.SubmitReceipt
	submitErr   error
	steps       []statusStep
	statusCalls int

	// When set, JobStatus signals entry once and then waits until the
	// gate is closed, simulating a slow in-flight poll.
	statusEntered chan struct{}
	statusGate    chan struct{}
}

func (f *scriptedJobAPI) SubmitJob(_ context.Context, _ domain.JobRequest) (domain.SubmitReceipt, error) {
	if f.submitErr != nil {
		return domain.SubmitReceipt{}, f.submitErr
	}
	return f.receipt, nil
}

func (f *scriptedJobAPI) JobStatus(_ context.Context, _ string) (domain.StatusReport, error) {
	f.mu.Lock()
	index := f.statusCalls
	f.statusCalls++
	entered := f.statusEntered
	f.statusEntered = nil
	gate := f.statusGate
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}

	if index >= len(f.steps) {
		index = len(f.steps) - 1
	}
	step := f.steps[index]
	return step.report, step.err
}

func (f *scriptedJobAPI) statusCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func fastConfig() Config {
	return Config{InitialDelay: time.Millisecond, PollInterval: time.Millisecond}
}

func narratedRequest() domain.JobRequest {
	return domain.JobRequest{
		Kind: domain.JobKindNarratedAssembly,
		Narrated: &domain.NarratedJob{
			FileID:   "f1",
			Segments: []domain.Segment{{Index: 0, SlideNumber: "1", Title: "Intro", Text: "Welcome"}},
			Voice:    "zh-CN-XiaoxiaoNeural",
			Rate:     "+0%",
			Pitch:    "+0Hz",
		},
	}
}

func collect(t *testing.T, handle *Handle) []domain.JobSnapshot {
	t.Helper()

	snapshots := make([]domain.JobSnapshot, 0, 8)
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snapshot, ok := <-handle.Snapshots():
			if !ok {
				return snapshots
			}
			snapshots = append(snapshots, snapshot)
		case <-deadline:
			t.Fatalf("timed out waiting for snapshots, got %d so far", len(snapshots))
		}
	}
}

func TestProgressIsMonotonicAndTerminalSnapshotIsLast(t *testing.T) {
	api := &scriptedJobAPI{
		receipt: domain.SubmitReceipt{JobID: "job-1"},
		steps: []statusStep{
			{report: domain.StatusReport{Status: domain.RemoteStatusProcessing, Progress: 40, Message: "synthesizing"}},
			{report: domain.StatusReport{Status: domain.RemoteStatusProcessing, Progress: 30, Message: "regressed"}},
			{report: domain.StatusReport{
				Status:   domain.RemoteStatusCompleted,
				Progress: 100,
				Result:   &domain.JobResult{Artifact: &domain.ArtifactRef{URLPath: "/dl/a.pptx", Filename: "a.pptx"}},
			}},
		},
	}

	handle, err := New(api, fastConfig(), nil).Submit(context.Background(), narratedRequest())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	snapshots := collect(t, handle)

	if len(snapshots) < 3 {
		t.Fatalf("expected at least 3 snapshots, got %d", len(snapshots))
	}
	last := snapshots[len(snapshots)-1]
	if last.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed terminal snapshot, got %s", last.Status)
	}
	if !last.Status.Terminal() {
		t.Fatalf("last snapshot must be terminal")
	}
	if last.Result == nil || last.Result.Artifact == nil || last.Result.Artifact.Filename != "a.pptx" {
		t.Fatalf("terminal snapshot is missing the artifact result")
	}

	previous := -1
	for _, snapshot := range snapshots {
		if snapshot.Progress < previous {
			t.Fatalf("progress regressed from %d to %d", previous, snapshot.Progress)
		}
		previous = snapshot.Progress
	}
	for _, snapshot := range snapshots[:len(snapshots)-1] {
		if snapshot.Status.Terminal() {
			t.Fatalf("terminal snapshot emitted before the last position")
		}
	}
}

func TestCancelledHandleEmitsNothingForLateResponses(t *testing.T) {
	api := &scriptedJobAPI{
		receipt:       domain.SubmitReceipt{JobID: "job-1"},
		statusEntered: make(chan struct{}),
		statusGate:    make(chan struct{}),
		steps: []statusStep{
			{report: domain.StatusReport{Status: domain.RemoteStatusCompleted, Progress: 100}},
		},
	}

	handle, err := New(api, fastConfig(), nil).Submit(context.Background(), narratedRequest())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	done := make(chan []domain.JobSnapshot, 1)
	go func() {
		snapshots := make([]domain.JobSnapshot, 0, 4)
		for snapshot := range handle.Snapshots() {
			snapshots = append(snapshots, snapshot)
		}
		done <- snapshots
	}()

	select {
	case <-api.statusEntered:
	case <-time.After(5 * time.Second):
		t.Fatalf("poll never started")
	}

	// Cancel while the poll request is in flight, then let it resolve.
	handle.Cancel()
	close(api.statusGate)

	var snapshots []domain.JobSnapshot
	select {
	case snapshots = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("snapshot channel never closed after cancel")
	}

	for _, snapshot := range snapshots {
		if snapshot.Status.Terminal() {
			t.Fatalf("cancelled handle emitted terminal snapshot %s", snapshot.Status)
		}
	}
}

func TestSubmitFailureYieldsImmediateFailedSnapshot(t *testing.T) {
	api := &scriptedJobAPI{
		submitErr: &domain.RemoteError{StatusCode: 400, Detail: "Gemini API key is required"},
	}

	handle, err := New(api, fastConfig(), nil).Submit(context.Background(), narratedRequest())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	snapshots := collect(t, handle)

	last := snapshots[len(snapshots)-1]
	if last.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed terminal snapshot, got %s", last.Status)
	}
	if last.Message != "Gemini API key is required" {
		t.Fatalf("expected the server detail verbatim, got %q", last.Message)
	}
	var remote *domain.RemoteError
	if !errors.As(last.Err, &remote) {
		t.Fatalf("expected a RemoteError, got %v", last.Err)
	}
	if api.statusCallCount() != 0 {
		t.Fatalf("no polls expected after a failed submit")
	}
}

func TestPollFailureStopsTheLoop(t *testing.T) {
	api := &scriptedJobAPI{
		receipt: domain.SubmitReceipt{JobID: "job-1"},
		steps: []statusStep{
			{err: fmt.Errorf("%w: connection refused", domain.ErrUnavailable)},
		},
	}

	handle, err := New(api, fastConfig(), nil).Submit(context.Background(), narratedRequest())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	snapshots := collect(t, handle)

	last := snapshots[len(snapshots)-1]
	if last.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed snapshot after poll error, got %s", last.Status)
	}
	if !domain.Unreachable(last.Err) {
		t.Fatalf("expected a normalized connectivity error, got %v", last.Err)
	}
	if api.statusCallCount() != 1 {
		t.Fatalf("a failed poll must not be retried, got %d calls", api.statusCallCount())
	}
}

func TestRemoteFailedStatusCarriesTheServerMessage(t *testing.T) {
	api := &scriptedJobAPI{
		receipt: domain.SubmitReceipt{JobID: "job-1"},
		steps: []statusStep{
			{report: domain.StatusReport{Status: domain.RemoteStatusFailed, Message: "TTS voice not found"}},
		},
	}

	handle, err := New(api, fastConfig(), nil).Submit(context.Background(), narratedRequest())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	snapshots := collect(t, handle)

	last := snapshots[len(snapshots)-1]
	if last.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed snapshot, got %s", last.Status)
	}
	var jobErr *domain.JobError
	if !errors.As(last.Err, &jobErr) || jobErr.Message != "TTS voice not found" {
		t.Fatalf("expected the job failure message verbatim, got %v", last.Err)
	}
}

func TestSynchronousCompletionSkipsPolling(t *testing.T) {
	document := domain.ScriptDocument{
		Opening:  "Good morning",
		Segments: []domain.Segment{{Index: 0, SlideNumber: "1", Title: "Intro", Text: "Welcome"}},
	}
	api := &scriptedJobAPI{
		receipt: domain.SubmitReceipt{Completed: &domain.JobResult{Document: &document}},
	}

	request := domain.JobRequest{
		Kind:   domain.JobKindScript,
		Script: &domain.ScriptJob{FileID: "f1", Params: domain.ScriptParams{DurationSec: 300}},
	}
	handle, err := New(api, fastConfig(), nil).Submit(context.Background(), request)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	snapshots := collect(t, handle)

	last := snapshots[len(snapshots)-1]
	if last.Status != domain.JobStatusCompleted || last.Progress != 100 {
		t.Fatalf("expected immediate completion at 100%%, got %s %d", last.Status, last.Progress)
	}
	if last.Result == nil || last.Result.Document == nil || last.Result.Document.Opening != "Good morning" {
		t.Fatalf("completed snapshot is missing the document")
	}
	if api.statusCallCount() != 0 {
		t.Fatalf("synchronous completion must not poll")
	}
}

func TestScriptJobPolledToCompletionSeedsTheDocument(t *testing.T) {
	document := domain.ScriptDocument{
		Opening:  "Good morning everyone",
		Segments: []domain.Segment{{Index: 0, SlideNumber: "1", Title: "Intro", Text: "Welcome"}},
	}
	api := &scriptedJobAPI{
		receipt: domain.SubmitReceipt{JobID: "script-job"},
		steps: []statusStep{
			{report: domain.StatusReport{Status: domain.RemoteStatusProcessing, Progress: 40}},
			{report: domain.StatusReport{
				Status:   domain.RemoteStatusCompleted,
				Progress: 100,
				Result:   &domain.JobResult{Document: &document},
			}},
		},
	}

	request := domain.JobRequest{
		Kind:   domain.JobKindScript,
		Script: &domain.ScriptJob{FileID: "f1", Params: domain.ScriptParams{DurationSec: 300}},
	}
	handle, err := New(api, fastConfig(), nil).Submit(context.Background(), request)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	terminal := Await(handle)
	if terminal.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completion, got %s", terminal.Status)
	}
	if terminal.Result == nil || terminal.Result.Document == nil {
		t.Fatalf("expected a document result")
	}
	got := terminal.Result.Document
	if got.Segments[0].Text != "Welcome" || got.Opening == "" {
		t.Fatalf("unexpected document contents: %+v", got)
	}

	store, err := draft.NewStore(*got)
	if err != nil {
		t.Fatalf("seed draft store: %v", err)
	}
	if segment, _ := store.Segment(0); segment.Text != "Welcome" {
		t.Fatalf("draft store lost the segment text: %+v", segment)
	}
	if _, editing := store.EditingIndex(); editing {
		t.Fatalf("a fresh draft must start in the viewing state")
	}
	if store.Opening() != "Good morning everyone" {
		t.Fatalf("opening unreachable: %q", store.Opening())
	}
}
