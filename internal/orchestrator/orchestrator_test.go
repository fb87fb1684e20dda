package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scriba-app/transcribe-backend/internal/audio"
	"github.com/scriba-app/transcribe-backend/internal/export"
	"github.com/scriba-app/transcribe-backend/internal/shared"
	"github.com/scriba-app/transcribe-backend/internal/tracker"
	"github.com/scriba-app/transcribe-backend/internal/transcriber"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testWAV builds a WAV tone of the given duration at 8kHz.
func testWAV(durationSec float64) []byte {
	n := int(durationSec * 8000)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*220*float64(i)/8000))
	}
	return audio.EncodeWAV(samples, 8000)
}

type funcBackend struct {
	name string
	fn   func(ctx context.Context, req transcriber.Request) (*transcriber.Result, error)
}

func (b *funcBackend) Name() string { return b.name }

func (b *funcBackend) Transcribe(ctx context.Context, req transcriber.Request) (*transcriber.Result, error) {
	return b.fn(ctx, req)
}

func newTestOrchestrator(backend transcriber.Backend) *Orchestrator {
	return New(backend, nil, Options{
		Backoff: shared.BackoffConfig{Initial: time.Millisecond, MaxDelay: 4 * time.Millisecond, MaxAttempts: 3},
	}, testLogger())
}

func submitAndWait(t *testing.T, o *Orchestrator, wav []byte, cfg Config) string {
	t.Helper()
	sourceID, err := o.Submit(context.Background(), wav, "test.wav", cfg)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := o.Wait(sourceID); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	return sourceID
}

func TestOrchestrator_SubmitAndComplete(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(3.0), Config{TargetDurationSeconds: 1})

	status, err := o.Status(sourceID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Progress.TotalCount != 3 {
		t.Fatalf("expected 3 segments, got %d", status.Progress.TotalCount)
	}
	if status.Progress.Percentage != 100 {
		t.Errorf("expected 100%%, got %f", status.Progress.Percentage)
	}
	for _, s := range status.Segments {
		if s.State != tracker.StateTranscribed {
			t.Errorf("segment %s: expected transcribed, got %s", s.SegmentID, s.State)
		}
	}
}

func TestOrchestrator_SubmitDecodeError(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())

	_, err := o.Submit(context.Background(), []byte("not audio"), "bad.bin", Config{})
	var decodeErr *audio.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if o.SourceCount() != 0 {
		t.Error("failed submission must not leave a source behind")
	}
}

func TestOrchestrator_StatusUnknownSource(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	if _, err := o.Status("rec_missing"); !errors.Is(err, shared.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestOrchestrator_PermanentFailureIsolated(t *testing.T) {
	// One segment always rejected; siblings must still complete.
	var mu sync.Mutex
	calls := map[string]int{}
	backend := &funcBackend{name: "flaky", fn: func(ctx context.Context, req transcriber.Request) (*transcriber.Result, error) {
		mu.Lock()
		calls[req.SegmentID]++
		first := len(calls) == 1
		mu.Unlock()
		if first {
			return nil, &transcriber.BackendError{Class: transcriber.FailurePermanent, Status: 400, Err: errors.New("bad segment")}
		}
		return &transcriber.Result{SegmentID: req.SegmentID, Text: "ok", Confidence: 1}, nil
	}}

	o := New(backend, nil, Options{
		Backoff: shared.BackoffConfig{Initial: time.Millisecond, MaxAttempts: 3},
	}, testLogger())
	// Single worker so the first dispatched segment is the one rejected.
	sourceID := submitAndWait(t, o, testWAV(3.0), Config{TargetDurationSeconds: 1, MaxConcurrentTranscriptions: 1})

	status, _ := o.Status(sourceID)
	if status.Progress.Percentage != 100 {
		t.Errorf("expected 100%% despite failure, got %f", status.Progress.Percentage)
	}
	if status.Progress.FailedCount != 1 {
		t.Errorf("expected 1 failed segment, got %d", status.Progress.FailedCount)
	}
	if status.Progress.CompletedCount != 2 {
		t.Errorf("expected 2 completed segments, got %d", status.Progress.CompletedCount)
	}
}

func TestOrchestrator_ValidateLifecycle(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(2.0), Config{TargetDurationSeconds: 1})

	status, _ := o.Status(sourceID)
	segID := status.Segments[0].SegmentID

	record, err := o.Validate(segID, "corrected text", 4, "sounded muffled")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if record.EditedText != "corrected text" || !record.IsValidated {
		t.Errorf("unexpected record: %+v", record)
	}
	if record.OriginalText == "" {
		t.Error("expected raw text snapshot in record")
	}

	state, _ := o.tracker.SegmentState(segID)
	if state != tracker.StateValidated {
		t.Errorf("expected validated, got %s", state)
	}
}

func TestOrchestrator_ValidateErrors(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(1.0), Config{})
	status, _ := o.Status(sourceID)
	segID := status.Segments[0].SegmentID

	if _, err := o.Validate("seg_missing", "x", 3, ""); !errors.Is(err, shared.ErrSegmentNotFound) {
		t.Errorf("expected ErrSegmentNotFound, got %v", err)
	}
	if _, err := o.Validate(segID, "x", 0, ""); !errors.Is(err, ErrInvalidConfidence) {
		t.Errorf("expected ErrInvalidConfidence, got %v", err)
	}
	if _, err := o.Validate(segID, "x", 6, ""); !errors.Is(err, ErrInvalidConfidence) {
		t.Errorf("expected ErrInvalidConfidence for 6, got %v", err)
	}
}

func TestOrchestrator_ValidateBeforeTranscription(t *testing.T) {
	block := make(chan struct{})
	backend := &funcBackend{name: "slow", fn: func(ctx context.Context, req transcriber.Request) (*transcriber.Result, error) {
		<-block
		return &transcriber.Result{SegmentID: req.SegmentID, Text: "late"}, nil
	}}
	o := newTestOrchestrator(backend)

	sourceID, err := o.Submit(context.Background(), testWAV(1.0), "test.wav", Config{})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	status, _ := o.Status(sourceID)
	segID := status.Segments[0].SegmentID

	if _, err := o.Validate(segID, "too early", 3, ""); !errors.Is(err, shared.ErrNotYetTranscribed) {
		t.Errorf("expected ErrNotYetTranscribed, got %v", err)
	}

	close(block)
	o.Wait(sourceID)
}

func TestOrchestrator_SecondValidationWinsInExport(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(1.0), Config{})
	status, _ := o.Status(sourceID)
	segID := status.Segments[0].SegmentID

	o.Validate(segID, "first edit", 3, "")
	o.Validate(segID, "second edit", 5, "")

	out, _, err := o.Export(sourceID, export.KindText, false)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "second edit" {
		t.Errorf("expected second edit in export, got '%s'", out)
	}
}

func TestOrchestrator_ExportFallsBackToRawText(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(2.0), Config{TargetDurationSeconds: 1})

	status, _ := o.Status(sourceID)
	o.Validate(status.Segments[0].SegmentID, "edited line", 4, "")

	out, contentType, err := o.Export(sourceID, export.KindText, false)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if contentType != "text/plain; charset=utf-8" {
		t.Errorf("unexpected content type '%s'", contentType)
	}

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if lines[0] != "edited line" {
		t.Errorf("expected edited text first, got '%s'", lines[0])
	}
	if !strings.Contains(lines[1], "mock transcript") {
		t.Errorf("expected raw machine text fallback, got '%s'", lines[1])
	}
}

func TestOrchestrator_ExportErrors(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(1.0), Config{})

	if _, _, err := o.Export("rec_missing", export.KindText, false); !errors.Is(err, shared.ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
	if _, _, err := o.Export(sourceID, export.Kind("docx"), false); !errors.Is(err, shared.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestOrchestrator_CancelStopsNewDispatch(t *testing.T) {
	started := make(chan string, 16)
	release := make(chan struct{})
	backend := &funcBackend{name: "slow", fn: func(ctx context.Context, req transcriber.Request) (*transcriber.Result, error) {
		started <- req.SegmentID
		<-release
		return &transcriber.Result{SegmentID: req.SegmentID, Text: "done"}, nil
	}}
	o := newTestOrchestrator(backend)

	sourceID, err := o.Submit(context.Background(), testWAV(4.0), "test.wav",
		Config{TargetDurationSeconds: 1, MaxConcurrentTranscriptions: 1})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// First segment is in flight; cancel before any other dispatches.
	first := <-started
	if err := o.Cancel(sourceID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	close(release)
	o.Wait(sourceID)

	status, _ := o.Status(sourceID)
	if !status.Cancelled {
		t.Error("expected cancelled flag set")
	}
	if status.Progress.Percentage != 100 {
		t.Errorf("expected progress to reach 100%%, got %f", status.Progress.Percentage)
	}

	for _, s := range status.Segments {
		if s.SegmentID == first {
			if s.State != tracker.StateTranscribed {
				t.Errorf("in-flight segment should finish naturally, got %s", s.State)
			}
			continue
		}
		if s.State != tracker.StateFailed {
			t.Errorf("segment %s: expected failed after cancel, got %s", s.SegmentID, s.State)
		}
		if !strings.Contains(s.FailureReason, "cancelled") {
			t.Errorf("expected cancelled reason, got '%s'", s.FailureReason)
		}
	}
}

func TestOrchestrator_Redispatch(t *testing.T) {
	var mu sync.Mutex
	failing := true
	backend := &funcBackend{name: "recovering", fn: func(ctx context.Context, req transcriber.Request) (*transcriber.Result, error) {
		mu.Lock()
		f := failing
		mu.Unlock()
		if f {
			return nil, &transcriber.BackendError{Class: transcriber.FailurePermanent, Status: 422, Err: errors.New("rejected")}
		}
		return &transcriber.Result{SegmentID: req.SegmentID, Text: "recovered"}, nil
	}}
	o := newTestOrchestrator(backend)
	sourceID := submitAndWait(t, o, testWAV(1.0), Config{})

	status, _ := o.Status(sourceID)
	segID := status.Segments[0].SegmentID
	if status.Segments[0].State != tracker.StateFailed {
		t.Fatalf("expected failed segment, got %s", status.Segments[0].State)
	}

	mu.Lock()
	failing = false
	mu.Unlock()

	if err := o.Redispatch(segID); err != nil {
		t.Fatalf("redispatch failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		state, _ := o.tracker.SegmentState(segID)
		if state == tracker.StateTranscribed {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("segment never recovered, state %s", state)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestOrchestrator_RedispatchRequiresFailedState(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(1.0), Config{})
	status, _ := o.Status(sourceID)

	if err := o.Redispatch(status.Segments[0].SegmentID); !errors.Is(err, shared.ErrConflict) {
		t.Errorf("expected conflict for non-failed segment, got %v", err)
	}
	if err := o.Redispatch("seg_missing"); !errors.Is(err, shared.ErrSegmentNotFound) {
		t.Errorf("expected ErrSegmentNotFound, got %v", err)
	}
}

func TestOrchestrator_ProgressMonotonic(t *testing.T) {
	backend := &funcBackend{name: "steady", fn: func(ctx context.Context, req transcriber.Request) (*transcriber.Result, error) {
		time.Sleep(2 * time.Millisecond)
		return &transcriber.Result{SegmentID: req.SegmentID, Text: "t"}, nil
	}}
	o := newTestOrchestrator(backend)

	sourceID, err := o.Submit(context.Background(), testWAV(5.0), "test.wav",
		Config{TargetDurationSeconds: 1, MaxConcurrentTranscriptions: 2})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	last := -1.0
	for {
		status, err := o.Status(sourceID)
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if status.Progress.Percentage < last {
			t.Fatalf("progress went backwards: %f < %f", status.Progress.Percentage, last)
		}
		last = status.Progress.Percentage
		if last == 100 {
			break
		}
		time.Sleep(time.Millisecond)
	}
}

func TestOrchestrator_SegmentAudio(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(2.0), Config{TargetDurationSeconds: 1})

	status, _ := o.Status(sourceID)
	segID := status.Segments[0].SegmentID

	data, err := o.SegmentAudio(segID)
	if err != nil {
		t.Fatalf("segment audio failed: %v", err)
	}

	src, err := audio.Decode(data)
	if err != nil {
		t.Fatalf("expected playable WAV, decode failed: %v", err)
	}
	want := status.Segments[0].EndOffset - status.Segments[0].StartOffset
	if diff := math.Abs(src.DurationSeconds() - want); diff > 0.05 {
		t.Errorf("expected ~%.2fs of audio, got %.2fs", want, src.DurationSeconds())
	}

	if _, err := o.SegmentAudio("seg_missing"); !errors.Is(err, shared.ErrSegmentNotFound) {
		t.Errorf("expected ErrSegmentNotFound, got %v", err)
	}
}

func TestOrchestrator_Delete(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(1.0), Config{})

	if err := o.Delete(context.Background(), sourceID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := o.Status(sourceID); !errors.Is(err, shared.ErrSourceNotFound) {
		t.Errorf("expected source gone, got %v", err)
	}
}

func TestOptions_ApplyDefaults(t *testing.T) {
	opts := Options{Defaults: Config{
		TargetDurationSeconds:       20,
		SilenceThresholdDb:          -35,
		MinSilenceDurationSeconds:   0.3,
		MaxConcurrentTranscriptions: 2,
		Language:                    "en",
		ModelID:                     "scribe_v1",
	}}

	cfg := opts.applyDefaults(Config{})
	if cfg.TargetDurationSeconds != 20 || cfg.SilenceThresholdDb != -35 ||
		cfg.MinSilenceDurationSeconds != 0.3 || cfg.MaxConcurrentTranscriptions != 2 ||
		cfg.Language != "en" || cfg.ModelID != "scribe_v1" {
		t.Errorf("expected defaults to fill empty config, got %+v", cfg)
	}

	cfg = opts.applyDefaults(Config{TargetDurationSeconds: 10, SilenceThresholdDb: -50, Language: "de"})
	if cfg.TargetDurationSeconds != 10 || cfg.SilenceThresholdDb != -50 || cfg.Language != "de" {
		t.Errorf("expected caller values to win, got %+v", cfg)
	}

	// Thresholds are dBFS, so zero and positive values both mean unset.
	for _, v := range []float64{0, 5} {
		cfg = opts.applyDefaults(Config{SilenceThresholdDb: v})
		if cfg.SilenceThresholdDb != -35 {
			t.Errorf("threshold %f: expected fallback to -35, got %f", v, cfg.SilenceThresholdDb)
		}
	}
}

func TestOrchestrator_Summary(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())
	sourceID := submitAndWait(t, o, testWAV(2.0), Config{TargetDurationSeconds: 1})

	details, err := o.Summary(sourceID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(details))
	}
	for i, d := range details {
		if d.Segment.Index != i {
			t.Errorf("expected index order, got %d at %d", d.Segment.Index, i)
		}
		if d.Transcription == nil {
			t.Errorf("segment %s missing transcription", d.Segment.ID)
		}
	}
}

func TestOrchestrator_ConcurrentSources(t *testing.T) {
	o := newTestOrchestrator(transcriber.NewMock())

	var wg sync.WaitGroup
	ids := make([]string, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := o.Submit(context.Background(), testWAV(2.0), fmt.Sprintf("f%d.wav", i), Config{TargetDurationSeconds: 1})
			if err != nil {
				t.Errorf("submit %d failed: %v", i, err)
				return
			}
			ids[i] = id
			o.Wait(id)
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		status, err := o.Status(id)
		if err != nil {
			t.Fatalf("status failed for %s: %v", id, err)
		}
		if status.Progress.Percentage != 100 {
			t.Errorf("source %s incomplete: %f%%", id, status.Progress.Percentage)
		}
	}
}
