package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/JaplinChen/ppt-narrator/internal/backend"
	"github.com/JaplinChen/ppt-narrator/internal/binding"
	"github.com/JaplinChen/ppt-narrator/internal/config"
	"github.com/JaplinChen/ppt-narrator/internal/domain"
	"github.com/JaplinChen/ppt-narrator/internal/orchestrator"
	"github.com/JaplinChen/ppt-narrator/internal/preview"
	"github.com/JaplinChen/ppt-narrator/internal/session"
	"github.com/JaplinChen/ppt-narrator/internal/settings"
)

func main() {
	logger := log.New(os.Stdout, "[ppt-narrator] ", log.LstdFlags|log.LUTC)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	filePath := flag.String("file", "", "path to the .ppt/.pptx file to narrate (required)")
	audience := flag.String("audience", "", "target audience for the script")
	purpose := flag.String("purpose", "", "purpose of the presentation")
	contextHint := flag.String("context", "Formal meeting", "presentation context")
	tone := flag.String("tone", "Professional and natural", "voice and tone")
	durationMin := flag.Int("duration", 5, "desired presentation duration in minutes")
	transitions := flag.Bool("transitions", true, "include slide transitions in the script")
	narrated := flag.Bool("narrated", false, "also produce a narrated presentation file")
	previewSegment := flag.Int("preview", -1, "synthesize an audio preview for the given segment index")
	translateTo := flag.String("translate", "", "also translate the generated script into this language")
	cleanup := flag.Bool("cleanup", false, "delete the uploaded presentation from the backend when done")
	locale := flag.String("locale", cfg.Locale, "display locale (zh-TW, en, ja, vi)")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, storeCloser := setupSettingsStore(ctx, cfg, logger)
	defer storeCloser()

	client := backend.NewClient(backend.ClientConfig{
		BaseURL:         cfg.BackendBaseURL,
		Timeout:         cfg.RequestTimeout,
		HealthTimeout:   cfg.HealthTimeout,
		UploadTimeout:   cfg.UploadTimeout,
		ScriptTimeout:   cfg.ScriptTimeout,
		NarratedTimeout: cfg.NarratedTimeout,
		SpeechTimeout:   cfg.SpeechTimeout,
	})

	if err := client.Health(ctx); err != nil {
		logger.Fatalf("backend health check failed: %s", domain.UserMessage(err))
	}

	narrationSession := session.New(session.Dependencies{
		Jobs: orchestrator.New(client, orchestrator.Config{
			InitialDelay: cfg.PollInitialDelay,
			PollInterval: cfg.PollInterval,
		}, logger),
		Previews: preview.New(client, preview.Config{
			RequestsPerSecond: cfg.PreviewRPS,
			Burst:             cfg.PreviewBurst,
		}),
		Settings: store,
		Voices:   client,
		Locale:   *locale,
		Logger:   logger,
	})
	defer narrationSession.Close()

	fileID, err := uploadAndParse(ctx, client, *filePath, logger)
	if err != nil {
		logger.Fatalf("upload failed: %s", domain.UserMessage(err))
	}

	form := binding.FormInputs{
		Audience:           *audience,
		Purpose:            *purpose,
		Context:            *contextHint,
		Tone:               *tone,
		DurationSec:        *durationMin * 60,
		IncludeTransitions: *transitions,
	}

	logger.Printf("generating script file_id=%s locale=%s", fileID, *locale)
	draftStore, err := narrationSession.GenerateScript(ctx, fileID, form)
	if err != nil {
		logger.Fatalf("script generation failed: %s", domain.UserMessage(err))
	}
	logger.Printf("script generated segments=%d", draftStore.SegmentCount())

	scriptPath := filepath.Join(cfg.OutputDir, "presentation_script.txt")
	if err := os.WriteFile(scriptPath, []byte(draftStore.FullScript()), 0o644); err != nil {
		logger.Fatalf("write script file: %v", err)
	}
	logger.Printf("script written to %s", scriptPath)

	if strings.TrimSpace(*translateTo) != "" {
		effective, err := narrationSession.EffectiveConfig(ctx, form)
		if err != nil {
			logger.Fatalf("loading settings for translation: %v", err)
		}
		translated, err := client.Translate(ctx, draftStore.FullScript(), *translateTo, effective.APIKey)
		if err != nil {
			logger.Fatalf("translation failed: %s", domain.UserMessage(err))
		}
		text := translated.FullScript
		if strings.TrimSpace(text) == "" {
			text = translated.Opening
		}
		translatedPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("presentation_script.%s.txt", *translateTo))
		if err := os.WriteFile(translatedPath, []byte(text+"\n"), 0o644); err != nil {
			logger.Fatalf("write translated script: %v", err)
		}
		logger.Printf("translated script written to %s", translatedPath)
	}

	if *previewSegment >= 0 {
		ensureVoice(ctx, narrationSession, store, logger)
		outcome, err := narrationSession.PreviewSegment(ctx, *previewSegment)
		if err != nil {
			logger.Printf("preview failed: %s", domain.UserMessage(err))
		} else if outcome.Applied {
			logger.Printf("preview ready: %s%s", client.BaseURL(), outcome.Clip.URLPath)
		}
	}

	if *narrated {
		ensureVoice(ctx, narrationSession, store, logger)
		if err := runNarrated(ctx, narrationSession, client, cfg.OutputDir, logger); err != nil {
			logger.Fatalf("narrated generation failed: %s", domain.UserMessage(err))
		}
	}

	if *cleanup {
		if err := client.DeleteFile(ctx, fileID); err != nil {
			logger.Printf("deleting uploaded file failed: %s", domain.UserMessage(err))
		} else {
			logger.Printf("deleted uploaded file file_id=%s", fileID)
		}
	}
}

// uploadAndParse sends the presentation and polls the parse status until
// the backend finished analyzing it.
func uploadAndParse(
	ctx context.Context,
	client *backend.Client,
	path string,
	logger *log.Logger,
) (string, error) {
	upload, err := client.Upload(ctx, path)
	if err != nil {
		return "", err
	}
	logger.Printf("uploaded %s file_id=%s", filepath.Base(path), upload.FileID)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(1 * time.Second):
		}

		status, err := client.ParseStatus(ctx, upload.FileID)
		if err != nil {
			return "", err
		}
		switch status.Status {
		case "completed":
			logger.Printf("parsing complete slides=%d", status.SlideCount)
			return upload.FileID, nil
		case "failed":
			return "", &domain.JobError{Message: status.Message}
		default:
			logger.Printf("parsing %d%% %s", status.Progress, status.Message)
		}
	}
}

// ensureVoice fills in a sensible voice for the script language when the
// persisted settings carry none that matches.
func ensureVoice(
	ctx context.Context,
	narrationSession *session.Session,
	store settings.Store,
	logger *log.Logger,
) {
	speech, err := settings.LoadSpeech(ctx, store)
	if err != nil {
		logger.Printf("loading speech settings failed, using defaults: %v", err)
		speech = settings.DefaultSpeechSettings()
	}

	voices, err := narrationSession.VoicesForDraft(ctx)
	if err != nil {
		logger.Printf("listing voices failed, keeping voice=%s: %s", speech.Voice, domain.UserMessage(err))
		return
	}
	voice, ok := binding.DefaultVoice(voices, speech.Language)
	if !ok {
		return
	}
	if voice.ShortName != speech.Voice {
		speech.Voice = voice.ShortName
		if err := settings.SaveSpeech(ctx, store, speech); err != nil {
			logger.Printf("persisting voice selection failed: %v", err)
		}
		logger.Printf("selected voice %s (%s)", voice.ShortName, voice.FriendlyName)
	}
}

func runNarrated(
	ctx context.Context,
	narrationSession *session.Session,
	client *backend.Client,
	outputDir string,
	logger *log.Logger,
) error {
	handle, err := narrationSession.SubmitNarrated(ctx)
	if err != nil {
		return err
	}

	for snapshot := range handle.Snapshots() {
		switch snapshot.Status {
		case domain.JobStatusPolling:
			logger.Printf("narrated assembly %d%% %s", snapshot.Progress, snapshot.Message)
		case domain.JobStatusCompleted:
			if snapshot.Result == nil || snapshot.Result.Artifact == nil {
				return fmt.Errorf("narrated job completed without an artifact")
			}
			destPath, err := client.DownloadArtifact(ctx, *snapshot.Result.Artifact, outputDir)
			if err != nil {
				return err
			}
			logger.Printf("narrated presentation written to %s", destPath)
			return nil
		case domain.JobStatusFailed:
			if snapshot.Err != nil {
				return snapshot.Err
			}
			return &domain.JobError{Message: snapshot.Message}
		}
	}
	return ctx.Err()
}

func setupSettingsStore(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (settings.Store, func()) {
	if cfg.DatabaseURL != "" {
		pgStore, err := settings.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err == nil {
			logger.Printf("postgres settings store initialized")
			return pgStore, pgStore.Close
		}
		logger.Printf("failed to initialize postgres settings store, trying fallbacks: %v", err)
	}
	if cfg.RedisAddr != "" {
		redisStore, err := settings.NewRedisStore(ctx, settings.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err == nil {
			logger.Printf("redis settings store initialized")
			return redisStore, func() { _ = redisStore.Close() }
		}
		logger.Printf("failed to initialize redis settings store, falling back to file: %v", err)
	}
	logger.Printf("using settings file %s", cfg.SettingsFile)
	return settings.NewFileStore(cfg.SettingsFile), func() {}
}
