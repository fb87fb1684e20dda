package transcriber

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var errNoBackends = errors.New("no backends configured")

// Mock is an offline backend used when no API key is configured and by
// tests. It produces deterministic text derived from the request and can
// be scripted to fail.
type Mock struct {
	mu       sync.Mutex
	calls    int
	FailWith *BackendError // returned on every call when set
	FailN    int           // fail this many calls before succeeding
	TextFunc func(req Request) string
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &BackendError{Class: FailureTransient, Err: err}
	}

	m.mu.Lock()
	m.calls++
	calls := m.calls
	m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}
	if calls <= m.FailN {
		return nil, &BackendError{Class: FailureTransient, Err: fmt.Errorf("scripted failure %d", calls)}
	}

	text := fmt.Sprintf("mock transcript for segment %s", req.SegmentID)
	if m.TextFunc != nil {
		text = m.TextFunc(req)
	}

	return &Result{
		SegmentID:  req.SegmentID,
		Text:       text,
		Confidence: 0.95,
		Backend:    m.Name(),
	}, nil
}
