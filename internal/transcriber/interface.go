package transcriber

import "context"

// Backend is a pluggable speech-to-text backend. Implementations make
// exactly one attempt per call and classify failures as transient or
// permanent via BackendError; retry discipline lives in Retrier.
type Backend interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
	Name() string
}
