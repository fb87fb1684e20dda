package transcriber

import (
	"context"
	"errors"
	"testing"
)

func TestChain_FirstBackendWins(t *testing.T) {
	primary := NewMock()
	fallback := NewMock()
	c := NewChain(testLogger(), primary, fallback)

	result, err := c.Transcribe(context.Background(), Request{SegmentID: "seg_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || primary.Calls() != 1 {
		t.Errorf("expected primary to handle the call")
	}
	if fallback.Calls() != 0 {
		t.Errorf("fallback should not be reached, got %d calls", fallback.Calls())
	}
}

func TestChain_FallsBackOnFailure(t *testing.T) {
	primary := &Mock{FailWith: &BackendError{Class: FailurePermanent, Err: errors.New("model unavailable")}}
	fallback := NewMock()
	c := NewChain(testLogger(), primary, fallback)

	result, err := c.Transcribe(context.Background(), Request{SegmentID: "seg_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Backend != "mock" {
		t.Errorf("expected fallback result, got backend '%s'", result.Backend)
	}
	if fallback.Calls() != 1 {
		t.Errorf("expected fallback called once, got %d", fallback.Calls())
	}
}

func TestChain_AllExhausted(t *testing.T) {
	failure := &BackendError{Class: FailureTransient, Err: errors.New("down")}
	c := NewChain(testLogger(), &Mock{FailWith: failure}, &Mock{FailWith: failure})

	_, err := c.Transcribe(context.Background(), Request{SegmentID: "seg_1"})
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected last backend error surfaced, got %v", err)
	}
}

func TestChain_Empty(t *testing.T) {
	c := NewChain(testLogger())
	_, err := c.Transcribe(context.Background(), Request{SegmentID: "seg_1"})
	if err == nil {
		t.Fatal("expected error for empty chain")
	}
}
