package preview

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/JaplinChen/ppt-narrator/internal/domain"
)

// SynthesisAPI is the slice of the backend the preview service depends on.
type SynthesisAPI interface {
	SynthesizeSpeech(ctx context.Context, request domain.SpeechRequest) (domain.AudioClip, error)
}

// Outcome is the result of one preview request. Applied reports whether the
// clip became the visible preview; a request superseded by a newer one for
// the same target resolves with Applied false and its clip is discarded.
type Outcome struct {
	TargetID   string
	Generation uint64
	Clip       domain.AudioClip
	Applied    bool
}

// Active is the single visible preview across all targets.
type Active struct {
	TargetID string
	Clip     domain.AudioClip
}

// Config tunes the preview service. RequestsPerSecond paces synthesis
// calls; a burst allows quick previews of a couple of adjacent segments.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Service requests on-demand audio synthesis for narration text. Each call
// gets a generation token; for any target only the most recently requested
// generation may become visible, so overlapping requests can resolve in any
// order without a stale clip ever being rendered.
type Service struct {
	api     SynthesisAPI
	limiter *rate.Limiter

	mu             sync.Mutex
	lastGeneration uint64
	latest         map[string]uint64
	active         *Active
}

func New(api SynthesisAPI, config Config) *Service {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 1
	}
	if config.Burst <= 0 {
		config.Burst = 2
	}
	return &Service{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		latest:  make(map[string]uint64),
	}
}

// Preview synthesizes text for targetID using the given voice settings.
// Errors surface to the caller and never block later previews for any
// target.
func (s *Service) Preview(
	ctx context.Context,
	targetID string,
	text string,
	speech domain.SpeechRequest,
) (Outcome, error) {
	if strings.TrimSpace(targetID) == "" {
		return Outcome{}, fmt.Errorf("%w: preview requires a target id", domain.ErrInvalidState)
	}
	if strings.TrimSpace(text) == "" {
		return Outcome{}, fmt.Errorf("%w: preview requires non-empty text", domain.ErrInvalidState)
	}

	s.mu.Lock()
	s.lastGeneration++
	generation := s.lastGeneration
	s.latest[targetID] = generation
	s.mu.Unlock()

	outcome := Outcome{TargetID: targetID, Generation: generation}

	if err := s.limiter.Wait(ctx); err != nil {
		return outcome, err
	}

	speech.Text = CleanNarrationText(text)
	clip, err := s.api.SynthesizeSpeech(ctx, speech)
	if err != nil {
		return outcome, err
	}
	outcome.Clip = clip

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[targetID] != generation {
		// A newer request for this target won; drop this clip silently.
		return outcome, nil
	}
	s.active = &Active{TargetID: targetID, Clip: clip}
	outcome.Applied = true
	return outcome, nil
}

// Current returns the visible preview, if any.
func (s *Service) Current() (Active, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Active{}, false
	}
	return *s.active, true
}

// Retire clears the visible preview without cancelling interest tracking;
// an outstanding request for the latest generation may still apply.
func (s *Service) Retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

var narrationNoise = regexp.MustCompile(`[*()\[\]/]`)

// CleanNarrationText strips markup characters the synthesis engine would
// read aloud.
func CleanNarrationText(text string) string {
	return narrationNoise.ReplaceAllString(text, " ")
}
