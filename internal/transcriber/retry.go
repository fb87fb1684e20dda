package transcriber

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/scriba-app/transcribe-backend/internal/shared"
)

// Retrier wraps a Backend with the retry discipline: up to MaxAttempts
// calls, transient failures backed off exponentially, permanent failures
// surfaced immediately. The returned Result carries the attempt count.
type Retrier struct {
	backend Backend
	backoff shared.BackoffConfig
	logger  *slog.Logger

	// sleep is swappable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrier(backend Backend, backoff shared.BackoffConfig, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		backend: backend,
		backoff: shared.NormalizeBackoff(backoff),
		logger:  logger.With("component", "transcriber_retrier"),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Retrier) Name() string { return r.backend.Name() }

func (r *Retrier) Transcribe(ctx context.Context, req Request) (*Result, error) {
	var lastErr *BackendError

	for attempt := 1; attempt <= r.backoff.MaxAttempts; attempt++ {
		if err := r.sleep(ctx, r.backoff.DelayFor(attempt)); err != nil {
			return nil, &Error{SegmentID: req.SegmentID, Class: FailureTransient, Attempts: attempt - 1, Err: err}
		}

		result, err := r.backend.Transcribe(ctx, req)
		if err == nil {
			result.AttemptCount = attempt
			return result, nil
		}

		var backendErr *BackendError
		if !errors.As(err, &backendErr) {
			backendErr = &BackendError{Class: FailureTransient, Err: err}
		}
		lastErr = backendErr

		if backendErr.Class == FailurePermanent {
			r.logger.Warn("permanent backend failure, not retrying",
				"segment_id", req.SegmentID, "attempt", attempt, "error", err)
			return nil, &Error{SegmentID: req.SegmentID, Class: FailurePermanent, Attempts: attempt, Err: backendErr}
		}

		r.logger.Warn("transient backend failure",
			"segment_id", req.SegmentID, "attempt", attempt,
			"max_attempts", r.backoff.MaxAttempts, "error", err)
	}

	return nil, &Error{
		SegmentID: req.SegmentID,
		Class:     FailureTransient,
		Attempts:  r.backoff.MaxAttempts,
		Err:       lastErr,
	}
}
