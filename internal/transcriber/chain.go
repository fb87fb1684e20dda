package transcriber

import (
	"context"
	"log/slog"
)

// Chain tries backends in order until one succeeds. The usual shape is
// a specialized model first with a general model as fallback. A Chain is
// itself a Backend, so a Retrier can wrap the whole sequence.
type Chain struct {
	backends []Backend
	logger   *slog.Logger
}

func NewChain(logger *slog.Logger, backends ...Backend) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{backends: backends, logger: logger.With("component", "transcriber_chain")}
}

func (c *Chain) Name() string {
	if len(c.backends) == 1 {
		return c.backends[0].Name()
	}
	return "chain"
}

func (c *Chain) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if len(c.backends) == 0 {
		return nil, &BackendError{Class: FailurePermanent, Err: errNoBackends}
	}

	var lastErr error
	for _, b := range c.backends {
		result, err := b.Transcribe(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("backend variant failed, trying next",
			"backend", b.Name(), "segment_id", req.SegmentID, "error", err)
	}
	return nil, lastErr
}
