package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Store keys mirror the localStorage keys used by the reference frontend
// so exported settings documents stay recognizable.
const (
	KeyLLM    = "llmSettings"
	KeySpeech = "ttsConfig"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

var knownProviders = map[string]bool{
	ProviderGemini:     true,
	ProviderOpenAI:     true,
	ProviderOpenRouter: true,
}

// ProviderSettings are the per-provider overrides. Empty values mean "let
// the backend use its own default or environment-configured credential".
type ProviderSettings struct {
	Model  string `json:"model"`
	APIKey string `json:"apiKey"`
}

// LLMSettings selects the generation provider and its overrides.
type LLMSettings struct {
	DefaultProvider string                      `json:"defaultProvider"`
	Providers       map[string]ProviderSettings `json:"providers"`
}

// SpeechSettings hold the persisted synthesis options. Rate and pitch are
// opaque signed offset strings owned by the backend ("+10%", "-5Hz").
type SpeechSettings struct {
	Language string `json:"language"`
	Voice    string `json:"voice"`
	Rate     string `json:"rate"`
	Pitch    string `json:"pitch"`
}

func DefaultLLMSettings() LLMSettings {
	return LLMSettings{
		DefaultProvider: ProviderGemini,
		Providers: map[string]ProviderSettings{
			ProviderGemini:     {},
			ProviderOpenAI:     {},
			ProviderOpenRouter: {},
		},
	}
}

func DefaultSpeechSettings() SpeechSettings {
	return SpeechSettings{
		Language: "zh-CN",
		Voice:    "zh-CN-XiaoxiaoNeural",
		Rate:     "+0%",
		Pitch:    "+0Hz",
	}
}

func (s LLMSettings) Validate() error {
	if strings.TrimSpace(s.DefaultProvider) == "" {
		return fmt.Errorf("llm settings: default provider is required")
	}
	if !knownProviders[s.DefaultProvider] {
		return fmt.Errorf("llm settings: unknown default provider %q", s.DefaultProvider)
	}
	for id := range s.Providers {
		if !knownProviders[id] {
			return fmt.Errorf("llm settings: unknown provider %q", id)
		}
	}
	return nil
}

func (s SpeechSettings) Validate() error {
	if strings.TrimSpace(s.Voice) == "" {
		return fmt.Errorf("speech settings: voice is required")
	}
	if err := checkSignedOffset("rate", s.Rate); err != nil {
		return err
	}
	return checkSignedOffset("pitch", s.Pitch)
}

// checkSignedOffset verifies only the outer shape; the value's meaning is
// owned by the synthesis backend and never reinterpreted here.
func checkSignedOffset(field, value string) error {
	if value == "" || (value[0] != '+' && value[0] != '-') {
		return fmt.Errorf("speech settings: %s must be a signed offset string, got %q", field, value)
	}
	return nil
}

// LoadLLM reads LLM settings from the store, validating them at the
// boundary. A missing key yields the defaults.
func LoadLLM(ctx context.Context, store Store) (LLMSettings, error) {
	var loaded LLMSettings
	found, err := loadJSON(ctx, store, KeyLLM, &loaded)
	if err != nil {
		return LLMSettings{}, err
	}
	if !found {
		return DefaultLLMSettings(), nil
	}
	if err := loaded.Validate(); err != nil {
		return LLMSettings{}, err
	}
	if loaded.Providers == nil {
		loaded.Providers = map[string]ProviderSettings{}
	}
	return loaded, nil
}

func SaveLLM(ctx context.Context, store Store, value LLMSettings) error {
	if err := value.Validate(); err != nil {
		return err
	}
	return saveJSON(ctx, store, KeyLLM, value)
}

// LoadSpeech reads speech settings from the store, validating them at the
// boundary. A missing key yields the defaults.
func LoadSpeech(ctx context.Context, store Store) (SpeechSettings, error) {
	var loaded SpeechSettings
	found, err := loadJSON(ctx, store, KeySpeech, &loaded)
	if err != nil {
		return SpeechSettings{}, err
	}
	if !found {
		return DefaultSpeechSettings(), nil
	}
	if err := loaded.Validate(); err != nil {
		return SpeechSettings{}, err
	}
	return loaded, nil
}

func SaveSpeech(ctx context.Context, store Store, value SpeechSettings) error {
	if err := value.Validate(); err != nil {
		return err
	}
	return saveJSON(ctx, store, KeySpeech, value)
}

func loadJSON(ctx context.Context, store Store, key string, out any) (bool, error) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func saveJSON(ctx context.Context, store Store, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, encoded); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
