package bootstrap

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/scriba-app/transcribe-backend/internal/orchestrator"
	"github.com/scriba-app/transcribe-backend/internal/recording"
	"github.com/scriba-app/transcribe-backend/internal/shared"
	"github.com/scriba-app/transcribe-backend/internal/transcriber"
)

// ProvideBackend picks the speech-to-text backend from config. Without an
// API key the mock backend is used so the pipeline stays exercisable in
// development. With a fallback URL both endpoints form a chain; the
// fallback is tried when the primary fails.
func ProvideBackend(cfg *Config, logger *slog.Logger) transcriber.Backend {
	if cfg.STTAPIKey == "" {
		logger.Warn("no STT API key configured, using mock backend")
		return transcriber.NewMock()
	}

	primary := transcriber.NewHTTPBackend(transcriber.HTTPConfig{
		BaseURL: cfg.STTBaseURL,
		APIKey:  cfg.STTAPIKey,
		ModelID: cfg.STTModelID,
		Name:    "primary",
	})
	if cfg.STTFallbackURL == "" {
		return primary
	}

	fallback := transcriber.NewHTTPBackend(transcriber.HTTPConfig{
		BaseURL: cfg.STTFallbackURL,
		APIKey:  cfg.STTAPIKey,
		ModelID: cfg.STTModelID,
		Name:    "fallback",
	})
	return transcriber.NewChain(logger, primary, fallback)
}

func ProvideOrchestrator(cfg *Config, backend transcriber.Backend, store *recording.Store, logger *slog.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(backend, store, orchestrator.Options{
		Backoff: shared.BackoffConfig{
			Initial:     cfg.BackoffInitial,
			MaxDelay:    cfg.BackoffMaxDelay,
			MaxAttempts: cfg.MaxAttempts,
		},
		SegmentTimeout:    cfg.SegmentTimeout,
		BackendSampleRate: cfg.BackendSampleRate,
		Defaults: orchestrator.Config{
			TargetDurationSeconds:       cfg.TargetDurationSeconds,
			SilenceThresholdDb:          cfg.SilenceThresholdDb,
			MinSilenceDurationSeconds:   cfg.MinSilenceDurationSeconds,
			MaxConcurrentTranscriptions: cfg.MaxConcurrentDefault,
			ModelID:                     cfg.STTModelID,
		},
	}, logger)
}

var PipelineModule = fx.Options(
	fx.Provide(
		ProvideBackend,
		ProvideOrchestrator,
	),
)
