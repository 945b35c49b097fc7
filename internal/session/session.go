package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/JaplinChen/ppt-narrator/internal/binding"
	"github.com/JaplinChen/ppt-narrator/internal/domain"
	"github.com/JaplinChen/ppt-narrator/internal/draft"
	"github.com/JaplinChen/ppt-narrator/internal/orchestrator"
	"github.com/JaplinChen/ppt-narrator/internal/preview"
	"github.com/JaplinChen/ppt-narrator/internal/settings"
)

// VoiceLister is the collaborator slice used for voice inventory lookups.
type VoiceLister interface {
	Voices(ctx context.Context, language string) ([]domain.Voice, error)
}

// Dependencies wires the collaborating components into one session.
type Dependencies struct {
	Jobs     *orchestrator.Orchestrator
	Previews *preview.Service
	Settings settings.Store
	Voices   VoiceLister
	Locale   string
	Logger   *log.Logger
}

// Session owns the result document of one interaction: it submits
// generation jobs, hands the completed script to the draft store, and
// feeds the committed (possibly edited) text back into narrated-assembly
// submissions and audio previews.
type Session struct {
	jobs     *orchestrator.Orchestrator
	previews *preview.Service
	store    settings.Store
	voices   VoiceLister
	logger   *log.Logger

	mu          sync.Mutex
	locale      string
	fileID      string
	draftStore  *draft.Store
	narratedJob *orchestrator.Handle
	scriptJob   *orchestrator.Handle
}

func New(deps Dependencies) *Session {
	return &Session{
		jobs:     deps.Jobs,
		previews: deps.Previews,
		store:    deps.Settings,
		voices:   deps.Voices,
		locale:   deps.Locale,
		logger:   deps.Logger,
	}
}

// SetLocale switches the active display locale. The effective configuration
// is derived on demand, so the next submission reflects the change.
func (s *Session) SetLocale(locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = locale
}

func (s *Session) Locale() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

// EffectiveConfig recomputes the merged request configuration from the
// form inputs, persisted settings, and the active locale.
func (s *Session) EffectiveConfig(ctx context.Context, form binding.FormInputs) (binding.EffectiveConfig, error) {
	llm, err := settings.LoadLLM(ctx, s.store)
	if err != nil {
		return binding.EffectiveConfig{}, err
	}
	speech, err := settings.LoadSpeech(ctx, s.store)
	if err != nil {
		return binding.EffectiveConfig{}, err
	}
	return binding.Effective(form, llm, speech, s.Locale()), nil
}

// GenerateScript submits a script job for fileID and blocks until its
// terminal snapshot, seeding the draft store on success. A previous script
// job still in flight is cancelled first.
func (s *Session) GenerateScript(
	ctx context.Context,
	fileID string,
	form binding.FormInputs,
) (*draft.Store, error) {
	effective, err := s.EffectiveConfig(ctx, form)
	if err != nil {
		return nil, err
	}

	request := domain.JobRequest{
		Kind: domain.JobKindScript,
		Script: &domain.ScriptJob{
			FileID: fileID,
			Params: binding.ScriptParams(form, effective),
		},
	}

	handle, err := s.jobs.Submit(ctx, request)
	if err != nil {
		return nil, err
	}
	s.replaceScriptJob(handle)

	terminal := orchestrator.Await(handle)
	switch terminal.Status {
	case domain.JobStatusCompleted:
		if terminal.Result == nil || terminal.Result.Document == nil {
			return nil, errors.New("script job completed without a document")
		}
		store, err := draft.NewStore(*terminal.Result.Document)
		if err != nil {
			return nil, err
		}
		s.adoptDraft(fileID, store)
		return store, nil
	case domain.JobStatusFailed:
		if terminal.Err != nil {
			return nil, terminal.Err
		}
		return nil, &domain.JobError{Message: terminal.Message}
	default:
		return nil, context.Canceled
	}
}

// Draft exposes the editable result document once a script job completed.
func (s *Session) Draft() (*draft.Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftStore, s.draftStore != nil
}

// FileID returns the uploaded presentation the current draft belongs to.
func (s *Session) FileID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileID, s.fileID != ""
}

// SubmitNarrated submits a narrated-assembly job built from the committed
// draft document and the persisted voice settings. A previous narrated job
// still in flight is cancelled before the new one is submitted.
func (s *Session) SubmitNarrated(ctx context.Context) (*orchestrator.Handle, error) {
	s.mu.Lock()
	store := s.draftStore
	fileID := s.fileID
	s.mu.Unlock()
	if store == nil {
		return nil, fmt.Errorf("%w: no generated script to narrate", domain.ErrInvalidState)
	}

	speech, err := settings.LoadSpeech(ctx, s.store)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(speech.Voice) == "" {
		return nil, fmt.Errorf("%w: narrated assembly requires a voice", domain.ErrInvalidState)
	}

	document := store.Document()
	request := domain.JobRequest{
		Kind: domain.JobKindNarratedAssembly,
		Narrated: &domain.NarratedJob{
			FileID:   fileID,
			Segments: document.Segments,
			Voice:    speech.Voice,
			Rate:     speech.Rate,
			Pitch:    speech.Pitch,
		},
	}

	handle, err := s.jobs.Submit(ctx, request)
	if err != nil {
		return nil, err
	}
	s.replaceNarratedJob(handle)
	return handle, nil
}

// PreviewSegment synthesizes the committed text of one segment.
func (s *Session) PreviewSegment(ctx context.Context, index int) (preview.Outcome, error) {
	s.mu.Lock()
	store := s.draftStore
	s.mu.Unlock()
	if store == nil {
		return preview.Outcome{}, fmt.Errorf("%w: no generated script to preview", domain.ErrInvalidState)
	}

	segment, err := store.Segment(index)
	if err != nil {
		return preview.Outcome{}, err
	}
	return s.previewText(ctx, fmt.Sprintf("segment-%d", index), segment.Text)
}

// PreviewOpening synthesizes the opening narration.
func (s *Session) PreviewOpening(ctx context.Context) (preview.Outcome, error) {
	s.mu.Lock()
	store := s.draftStore
	s.mu.Unlock()
	if store == nil {
		return preview.Outcome{}, fmt.Errorf("%w: no generated script to preview", domain.ErrInvalidState)
	}
	return s.previewText(ctx, "opening", store.Opening())
}

// VoicesForDraft lists voices matching the generated script's language,
// falling back to the unfiltered inventory for unknown languages.
func (s *Session) VoicesForDraft(ctx context.Context) ([]domain.Voice, error) {
	language := ""
	if store, ok := s.Draft(); ok {
		if prefix, known := binding.SpeechLanguageForScript(store.Document().Metadata.Language); known {
			language = prefix
		}
	}
	return s.voices.Voices(ctx, language)
}

// Close cancels any jobs still in flight. Late poll responses for the
// cancelled handles are dropped by the orchestrator.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scriptJob != nil {
		s.scriptJob.Cancel()
		s.scriptJob = nil
	}
	if s.narratedJob != nil {
		s.narratedJob.Cancel()
		s.narratedJob = nil
	}
}

func (s *Session) previewText(ctx context.Context, targetID, text string) (preview.Outcome, error) {
	speech, err := settings.LoadSpeech(ctx, s.store)
	if err != nil {
		return preview.Outcome{}, err
	}
	return s.previews.Preview(ctx, targetID, text, domain.SpeechRequest{
		Voice: speech.Voice,
		Rate:  speech.Rate,
		Pitch: speech.Pitch,
	})
}

func (s *Session) adoptDraft(fileID string, store *draft.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileID = fileID
	s.draftStore = store
}

// Submitting a new job of the same kind supersedes the previous one; the
// superseded handle is cancelled so its polls stop.
func (s *Session) replaceScriptJob(handle *orchestrator.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scriptJob != nil {
		s.scriptJob.Cancel()
	}
	s.scriptJob = handle
}

func (s *Session) replaceNarratedJob(handle *orchestrator.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.narratedJob != nil {
		s.narratedJob.Cancel()
	}
	s.narratedJob = handle
}
