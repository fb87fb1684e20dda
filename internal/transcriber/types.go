package transcriber

import "fmt"

type Request struct {
	SegmentID string
	Audio     []byte // WAV payload
	Language  string
	ModelID   string
}

type Result struct {
	SegmentID        string
	Text             string
	Confidence       float64
	AttemptCount     int
	BackendLatencyMs int64
	Backend          string
}

type FailureClass string

const (
	// FailureTransient covers network errors, timeouts, rate limits and
	// 5xx responses. Worth retrying.
	FailureTransient FailureClass = "transient"

	// FailurePermanent covers rejected input and other 4xx responses.
	// Retrying cannot succeed.
	FailurePermanent FailureClass = "permanent"
)

// BackendError is a single classified backend failure.
type BackendError struct {
	Class  FailureClass
	Status int
	Err    error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend %s failure (http %d): %v", e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("backend %s failure: %v", e.Class, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Error surfaced to the orchestrator after retries are exhausted or a
// permanent failure occurs. Never replaced by a placeholder transcript.
type Error struct {
	SegmentID string
	Class     FailureClass
	Attempts  int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription failed for %s after %d attempt(s) (%s): %v",
		e.SegmentID, e.Attempts, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
