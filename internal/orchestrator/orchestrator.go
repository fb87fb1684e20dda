package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scriba-app/transcribe-backend/internal/audio"
	"github.com/scriba-app/transcribe-backend/internal/export"
	"github.com/scriba-app/transcribe-backend/internal/segmenter"
	"github.com/scriba-app/transcribe-backend/internal/shared"
	"github.com/scriba-app/transcribe-backend/internal/tracker"
	"github.com/scriba-app/transcribe-backend/internal/transcriber"
)

type source struct {
	id       string
	filename string
	audio    *audio.Source
	segments []segmenter.Segment
	config   Config

	cancel    context.CancelFunc
	dispatch  context.Context
	done      chan struct{}
	cancelled bool
}

// Orchestrator owns the mapping from source ids to segment state. All
// segment mutation funnels through here into the tracker; workers,
// handlers and exports never touch state directly.
type Orchestrator struct {
	mu      sync.RWMutex
	sources map[string]*source

	tracker *tracker.Tracker
	backend transcriber.Backend
	store   Store
	opts    Options
	logger  *slog.Logger
}

func New(backend transcriber.Backend, store Store, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SegmentTimeout <= 0 {
		opts.SegmentTimeout = defaultSegmentTimeout
	}
	opts.Backoff = shared.NormalizeBackoff(opts.Backoff)

	return &Orchestrator{
		sources: make(map[string]*source),
		tracker: tracker.New(),
		backend: backend,
		store:   store,
		opts:    opts,
		logger:  logger.With("component", "orchestrator"),
	}
}

// Submit decodes and segments the audio synchronously, then starts
// transcription in the background. It returns once the segment list
// exists, well before transcription finishes; callers poll Status. A
// decode or segmentation failure aborts the whole submission.
func (o *Orchestrator) Submit(ctx context.Context, raw []byte, filename string, cfg Config) (string, error) {
	cfg = o.opts.applyDefaults(cfg)

	src, err := audio.Decode(raw)
	if err != nil {
		return "", err
	}

	sourceID := shared.NewID("rec_")
	segments, err := segmenter.Split(src, sourceID, cfg.segmenterConfig())
	if err != nil {
		return "", err
	}

	dispatchCtx, cancel := context.WithCancel(context.Background())
	s := &source{
		id:       sourceID,
		filename: filename,
		audio:    src,
		segments: segments,
		config:   cfg,
		cancel:   cancel,
		dispatch: dispatchCtx,
		done:     make(chan struct{}),
	}

	o.tracker.Register(sourceID, segments)

	o.mu.Lock()
	o.sources[sourceID] = s
	o.mu.Unlock()

	if o.store != nil {
		if err := o.store.CreateRecording(ctx, sourceID, filename, src.DurationSeconds(), src.SampleRate, segments); err != nil {
			o.logger.Error("failed to persist recording", "source_id", sourceID, "error", err)
		}
	}

	o.logger.Info("submission accepted",
		"source_id", sourceID, "filename", filename,
		"duration_seconds", src.DurationSeconds(), "segments", len(segments))

	go o.run(s)
	return sourceID, nil
}

// run fans segments out to the backend under the submission's worker
// limit. Dispatch follows index order; completion order is up to the
// workers, which is why every update below is keyed by segment id.
func (o *Orchestrator) run(s *source) {
	defer close(s.done)

	g := new(errgroup.Group)
	g.SetLimit(s.config.MaxConcurrentTranscriptions)

	for _, seg := range s.segments {
		if s.dispatch.Err() != nil {
			o.markCancelled(seg.ID)
			continue
		}
		seg := seg
		g.Go(func() error {
			if s.dispatch.Err() != nil {
				o.markCancelled(seg.ID)
				return nil
			}
			o.transcribeSegment(s, seg)
			return nil
		})
	}
	g.Wait()

	o.logger.Info("submission transcription finished", "source_id", s.id)
}

func (o *Orchestrator) markCancelled(segmentID string) {
	if err := o.tracker.RecordFailure(segmentID, shared.ErrCancelled.Error()); err != nil {
		return
	}
	o.persistState(segmentID, tracker.StateFailed, shared.ErrCancelled.Error())
}

func (o *Orchestrator) transcribeSegment(s *source, seg segmenter.Segment) {
	if err := o.tracker.RecordDispatch(seg.ID); err != nil {
		o.logger.Error("dispatch rejected", "segment_id", seg.ID, "error", err)
		return
	}
	o.persistState(seg.ID, tracker.StateTranscribing, "")

	slice := s.audio.Slice(seg.StartOffset, seg.EndOffset)
	samples := slice.Samples
	rate := slice.SampleRate
	if o.opts.BackendSampleRate > 0 && rate != o.opts.BackendSampleRate {
		samples = audio.ResampleInt16(samples, rate, o.opts.BackendSampleRate)
		rate = o.opts.BackendSampleRate
	}

	retrier := transcriber.NewRetrier(o.backend, o.opts.Backoff, o.logger)

	// In-flight calls run to completion even after a source-level cancel;
	// only the per-segment deadline bounds them.
	callCtx, cancel := context.WithTimeout(context.Background(), o.opts.SegmentTimeout)
	defer cancel()

	result, err := retrier.Transcribe(callCtx, transcriber.Request{
		SegmentID: seg.ID,
		Audio:     audio.EncodeWAV(samples, rate),
		Language:  s.config.Language,
		ModelID:   s.config.ModelID,
	})
	if err != nil {
		o.logger.Warn("segment transcription failed", "segment_id", seg.ID, "error", err)
		if terr := o.tracker.RecordFailure(seg.ID, err.Error()); terr != nil {
			o.logger.Error("failed to record failure", "segment_id", seg.ID, "error", terr)
		}
		o.persistState(seg.ID, tracker.StateFailed, err.Error())
		return
	}

	if terr := o.tracker.RecordSuccess(seg.ID, result); terr != nil {
		o.logger.Error("failed to record result", "segment_id", seg.ID, "error", terr)
		return
	}
	o.persistState(seg.ID, tracker.StateTranscribed, "")
	if o.store != nil {
		if err := o.store.SaveResult(context.Background(), result); err != nil {
			o.logger.Error("failed to persist result", "segment_id", seg.ID, "error", err)
		}
	}
}

func (o *Orchestrator) persistState(segmentID string, state tracker.State, reason string) {
	if o.store == nil {
		return
	}
	if err := o.store.MarkSegmentState(context.Background(), segmentID, state, reason); err != nil {
		o.logger.Error("failed to persist segment state", "segment_id", segmentID, "error", err)
	}
}

func (o *Orchestrator) getSource(sourceID string) (*source, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sources[sourceID]
	if !ok {
		return nil, shared.ErrSourceNotFound
	}
	return s, nil
}

// Status returns the polling snapshot for a submission.
func (o *Orchestrator) Status(sourceID string) (*StatusSnapshot, error) {
	s, err := o.getSource(sourceID)
	if err != nil {
		return nil, err
	}

	progress, err := o.tracker.SourceProgress(sourceID)
	if err != nil {
		return nil, err
	}
	segments, err := o.tracker.Snapshot(sourceID)
	if err != nil {
		return nil, err
	}

	o.mu.RLock()
	cancelled := s.cancelled
	o.mu.RUnlock()

	return &StatusSnapshot{
		SourceID:        sourceID,
		Filename:        s.filename,
		DurationSeconds: s.audio.DurationSeconds(),
		Cancelled:       cancelled,
		Progress:        progress,
		Segments:        segments,
	}, nil
}

// Summary returns every segment with its transcript and review.
func (o *Orchestrator) Summary(sourceID string) ([]SegmentDetail, error) {
	s, err := o.getSource(sourceID)
	if err != nil {
		return nil, err
	}

	details := make([]SegmentDetail, 0, len(s.segments))
	for _, seg := range s.segments {
		state, err := o.tracker.SegmentState(seg.ID)
		if err != nil {
			continue
		}
		result, _ := o.tracker.Result(seg.ID)
		validation, _ := o.tracker.Validation(seg.ID)
		details = append(details, SegmentDetail{
			Segment:       seg,
			State:         state,
			Transcription: result,
			Validation:    validation,
		})
	}
	return details, nil
}

// Validate stores a human review for a transcribed segment. The raw
// machine text is snapshotted into the record so later re-transcription
// cannot silently change what the reviewer saw.
func (o *Orchestrator) Validate(segmentID, editedText string, userConfidence int, notes string) (*tracker.ValidationRecord, error) {
	if userConfidence < 1 || userConfidence > 5 {
		return nil, ErrInvalidConfidence
	}

	result, err := o.tracker.Result(segmentID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, shared.ErrNotYetTranscribed
	}

	record := tracker.ValidationRecord{
		SegmentID:      segmentID,
		OriginalText:   result.Text,
		EditedText:     editedText,
		UserConfidence: userConfidence,
		Notes:          notes,
		IsValidated:    true,
		ValidatedAt:    time.Now().UTC(),
	}
	if err := o.tracker.RecordValidation(segmentID, record); err != nil {
		return nil, err
	}

	if o.store != nil {
		if err := o.store.SaveValidation(context.Background(), &record); err != nil {
			o.logger.Error("failed to persist validation", "segment_id", segmentID, "error", err)
		}
	}
	return &record, nil
}

// Export serializes the current transcripts. Segments with a validation
// record contribute the edited text; segments with only a machine result
// contribute the raw text; segments with neither are omitted so callers
// can export partially reviewed material.
func (o *Orchestrator) Export(sourceID string, kind export.Kind, includeTimestamps bool) ([]byte, string, error) {
	s, err := o.getSource(sourceID)
	if err != nil {
		return nil, "", err
	}

	var lines []export.Line
	for _, seg := range s.segments {
		result, _ := o.tracker.Result(seg.ID)
		validation, _ := o.tracker.Validation(seg.ID)

		line := export.Line{
			Index:       seg.Index,
			StartOffset: seg.StartOffset,
			EndOffset:   seg.EndOffset,
		}
		switch {
		case validation != nil:
			line.Text = validation.EditedText
			line.Validated = validation.IsValidated
			if result != nil {
				line.Confidence = result.Confidence
			}
		case result != nil:
			line.Text = result.Text
			line.Confidence = result.Confidence
		default:
			continue
		}
		lines = append(lines, line)
	}

	return export.Format(lines, kind, includeTimestamps)
}

// Cancel stops dispatching new segment calls for a source. In-flight
// calls finish naturally; segments never dispatched end up Failed with a
// cancelled reason.
func (o *Orchestrator) Cancel(sourceID string) error {
	s, err := o.getSource(sourceID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	s.cancelled = true
	o.mu.Unlock()

	s.cancel()
	o.logger.Info("submission cancelled", "source_id", sourceID)
	return nil
}

// Redispatch retries a single failed segment on demand.
func (o *Orchestrator) Redispatch(segmentID string) error {
	seg, err := o.tracker.Segment(segmentID)
	if err != nil {
		return err
	}
	state, err := o.tracker.SegmentState(segmentID)
	if err != nil {
		return err
	}
	if state != tracker.StateFailed {
		return shared.ErrConflict
	}

	s, err := o.getSource(seg.SourceID)
	if err != nil {
		return err
	}

	go o.transcribeSegment(s, seg)
	return nil
}

// SegmentAudio renders one segment's slice as a standalone WAV so a
// reviewer can listen to it while editing the transcript.
func (o *Orchestrator) SegmentAudio(segmentID string) ([]byte, error) {
	seg, err := o.tracker.Segment(segmentID)
	if err != nil {
		return nil, err
	}
	s, err := o.getSource(seg.SourceID)
	if err != nil {
		return nil, err
	}
	slice := s.audio.Slice(seg.StartOffset, seg.EndOffset)
	return audio.EncodeWAV(slice.Samples, slice.SampleRate), nil
}

// SegmentSource resolves the owning source id for a segment.
func (o *Orchestrator) SegmentSource(segmentID string) (string, error) {
	seg, err := o.tracker.Segment(segmentID)
	if err != nil {
		return "", err
	}
	return seg.SourceID, nil
}

// Delete removes a submission and all of its state.
func (o *Orchestrator) Delete(ctx context.Context, sourceID string) error {
	s, err := o.getSource(sourceID)
	if err != nil {
		return err
	}
	s.cancel()

	o.mu.Lock()
	delete(o.sources, sourceID)
	o.mu.Unlock()

	o.tracker.Remove(sourceID)

	if o.store != nil {
		if err := o.store.DeleteRecording(ctx, sourceID); err != nil {
			o.logger.Error("failed to delete persisted recording", "source_id", sourceID, "error", err)
			return err
		}
	}
	return nil
}

// Wait blocks until a submission's dispatch loop finishes. Used by
// tests and graceful shutdown, not by request handlers.
func (o *Orchestrator) Wait(sourceID string) error {
	s, err := o.getSource(sourceID)
	if err != nil {
		return err
	}
	<-s.done
	return nil
}

// SourceCount reports the number of live submissions.
func (o *Orchestrator) SourceCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sources)
}
