package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/scriba-app/transcribe-backend/internal/segmenter"
	"github.com/scriba-app/transcribe-backend/internal/shared"
	"github.com/scriba-app/transcribe-backend/internal/tracker"
	"github.com/scriba-app/transcribe-backend/internal/transcriber"
)

var ErrInvalidConfidence = errors.New("user confidence must be between 1 and 5")

// Config carries the per-submission knobs. Each submission captures its
// own copy, so sources with different settings run side by side without
// interference.
type Config struct {
	TargetDurationSeconds float64 `json:"target_duration_seconds"`
	// SilenceThresholdDb is the silence cutoff in dBFS, always negative
	// (0 dBFS is full scale). Zero or positive means unset and falls back
	// to the configured default.
	SilenceThresholdDb        float64 `json:"silence_threshold_db"`
	MinSilenceDurationSeconds float64 `json:"min_silence_duration_seconds"`
	MaxConcurrentTranscriptions int   `json:"max_concurrent_transcriptions"`
	Language                  string  `json:"language"`
	ModelID                   string  `json:"model_id"`
}

const DefaultMaxConcurrent = 3

func (c Config) withDefaults() Config {
	if c.MaxConcurrentTranscriptions <= 0 {
		c.MaxConcurrentTranscriptions = DefaultMaxConcurrent
	}
	return c
}

func (c Config) segmenterConfig() segmenter.Config {
	return segmenter.Config{
		TargetDurationSeconds:     c.TargetDurationSeconds,
		SilenceThresholdDb:        c.SilenceThresholdDb,
		MinSilenceDurationSeconds: c.MinSilenceDurationSeconds,
	}
}

// Options configures the orchestrator itself, as opposed to a single
// submission.
type Options struct {
	Backoff shared.BackoffConfig

	// SegmentTimeout is the deadline for one segment's transcription
	// including retries.
	SegmentTimeout time.Duration

	// BackendSampleRate is the rate segment audio is resampled to before
	// upload. Zero keeps the source rate.
	BackendSampleRate int

	// Defaults fills in submission config fields the caller left unset.
	Defaults Config
}

func (o Options) applyDefaults(c Config) Config {
	if c.TargetDurationSeconds <= 0 {
		c.TargetDurationSeconds = o.Defaults.TargetDurationSeconds
	}
	if c.SilenceThresholdDb >= 0 {
		c.SilenceThresholdDb = o.Defaults.SilenceThresholdDb
	}
	if c.MinSilenceDurationSeconds <= 0 {
		c.MinSilenceDurationSeconds = o.Defaults.MinSilenceDurationSeconds
	}
	if c.MaxConcurrentTranscriptions <= 0 {
		c.MaxConcurrentTranscriptions = o.Defaults.MaxConcurrentTranscriptions
	}
	if c.Language == "" {
		c.Language = o.Defaults.Language
	}
	if c.ModelID == "" {
		c.ModelID = o.Defaults.ModelID
	}
	return c.withDefaults()
}

const defaultSegmentTimeout = 5 * time.Minute

// StatusSnapshot is the polling view of one submission.
type StatusSnapshot struct {
	SourceID        string                  `json:"source_id"`
	Filename        string                  `json:"filename,omitempty"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Cancelled       bool                    `json:"cancelled"`
	Progress        tracker.Progress        `json:"progress"`
	Segments        []tracker.SegmentStatus `json:"segments"`
}

// SegmentDetail combines a segment's transcript and review for the
// summary view.
type SegmentDetail struct {
	Segment       segmenter.Segment         `json:"segment"`
	State         tracker.State             `json:"state"`
	Transcription *transcriber.Result       `json:"transcription,omitempty"`
	Validation    *tracker.ValidationRecord `json:"validation,omitempty"`
}

// Store persists submissions as they progress. Persistence failures are
// logged, never allowed to stall the pipeline; the in-memory tracker
// stays authoritative for a live submission.
type Store interface {
	CreateRecording(ctx context.Context, sourceID, filename string, durationSeconds float64, sampleRate int, segs []segmenter.Segment) error
	SaveResult(ctx context.Context, result *transcriber.Result) error
	SaveValidation(ctx context.Context, record *tracker.ValidationRecord) error
	MarkSegmentState(ctx context.Context, segmentID string, state tracker.State, reason string) error
	DeleteRecording(ctx context.Context, sourceID string) error
}
