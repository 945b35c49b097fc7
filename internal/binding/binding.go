package binding

import (
	"strings"

	"github.com/JaplinChen/ppt-narrator/internal/domain"
	"github.com/JaplinChen/ppt-narrator/internal/settings"
)

// FormInputs are the user-entered generation options from the current
// interaction, before settings and locale are merged in.
type FormInputs struct {
	Audience           string
	Purpose            string
	Context            string
	Tone               string
	DurationSec        int
	IncludeTransitions bool
	Language           string
}

// EffectiveConfig is the fully resolved request configuration. It is a
// pure projection: recomputed from its inputs on every call, never cached,
// so a locale change is always reflected in the next submission.
type EffectiveConfig struct {
	Provider string
	Model    string
	APIKey   string
	Language string
	Voice    string
	Rate     string
	Pitch    string
}

// localeLanguages maps the four supported interface locales to the
// canonical output-language labels the backend expects. Unmapped locales
// leave the previously selected language unchanged.
var localeLanguages = map[string]string{
	"zh-TW": "Traditional Chinese",
	"en":    "English",
	"ja":    "Japanese",
	"vi":    "Vietnamese",
}

// speechLanguages maps a script output language to the TTS language prefix
// used for voice filtering.
var speechLanguages = map[string]string{
	"Traditional Chinese": "zh",
	"English":             "en",
	"Japanese":            "ja",
	"Vietnamese":          "vi",
}

// Effective merges form inputs, persisted settings, and the active display
// locale into the request configuration.
func Effective(
	form FormInputs,
	llm settings.LLMSettings,
	speech settings.SpeechSettings,
	activeLocale string,
) EffectiveConfig {
	provider := llm.DefaultProvider
	if strings.TrimSpace(provider) == "" {
		provider = settings.ProviderGemini
	}
	overrides := llm.Providers[provider]

	return EffectiveConfig{
		Provider: provider,
		Model:    overrides.Model,
		APIKey:   overrides.APIKey,
		Language: OutputLanguageForLocale(activeLocale, form.Language),
		Voice:    speech.Voice,
		Rate:     speech.Rate,
		Pitch:    speech.Pitch,
	}
}

// OutputLanguageForLocale resolves the script output language for a display
// locale, falling back to the currently selected language when the locale
// is not one of the supported four.
func OutputLanguageForLocale(locale, fallback string) string {
	if language, ok := localeLanguages[locale]; ok {
		return language
	}
	return fallback
}

// SpeechLanguageForScript maps a script language label to the voice
// language prefix, reporting whether the label is known.
func SpeechLanguageForScript(language string) (string, bool) {
	prefix, ok := speechLanguages[language]
	return prefix, ok
}

// ScriptParams builds the submit payload for a script generation job from
// the resolved configuration.
func ScriptParams(form FormInputs, effective EffectiveConfig) domain.ScriptParams {
	audience := form.Audience
	if strings.TrimSpace(audience) == "" {
		audience = "General audience"
	}
	purpose := form.Purpose
	if strings.TrimSpace(purpose) == "" {
		purpose = "Introduce the topic"
	}
	return domain.ScriptParams{
		Audience:           audience,
		Purpose:            purpose,
		Context:            form.Context,
		Tone:               form.Tone,
		DurationSec:        form.DurationSec,
		IncludeTransitions: form.IncludeTransitions,
		Language:           effective.Language,
		Provider:           effective.Provider,
		Model:              effective.Model,
		APIKey:             effective.APIKey,
	}
}

// DefaultVoice picks the first voice whose locale matches the requested
// language prefix, falling back to the first voice in the inventory.
func DefaultVoice(voices []domain.Voice, language string) (domain.Voice, bool) {
	if len(voices) == 0 {
		return domain.Voice{}, false
	}
	lowered := strings.ToLower(language)
	for _, voice := range voices {
		locale := strings.ToLower(voice.Locale)
		if strings.HasPrefix(locale, lowered) || strings.SplitN(locale, "-", 2)[0] == lowered {
			return voice, true
		}
	}
	return voices[0], true
}
