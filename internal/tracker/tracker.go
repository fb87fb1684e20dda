package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/scriba-app/transcribe-backend/internal/segmenter"
	"github.com/scriba-app/transcribe-backend/internal/shared"
	"github.com/scriba-app/transcribe-backend/internal/transcriber"
)

type State string

const (
	StatePending      State = "pending"
	StateTranscribing State = "transcribing"
	StateTranscribed  State = "transcribed"
	StateFailed       State = "failed"
	StateValidated    State = "validated"
)

// ValidationRecord is the human review of one segment. At most one
// current record exists per segment; saving a new one replaces the old
// record entirely.
type ValidationRecord struct {
	SegmentID      string    `json:"segment_id"`
	OriginalText   string    `json:"original_text"`
	EditedText     string    `json:"edited_text"`
	UserConfidence int       `json:"user_confidence"`
	Notes          string    `json:"notes,omitempty"`
	IsValidated    bool      `json:"is_validated"`
	ValidatedAt    time.Time `json:"validated_at"`
}

type Progress struct {
	TotalCount     int     `json:"total_count"`
	CompletedCount int     `json:"completed_count"`
	ValidatedCount int     `json:"validated_count"`
	FailedCount    int     `json:"failed_count"`
	Percentage     float64 `json:"percentage"`
}

type SegmentStatus struct {
	SegmentID     string  `json:"segment_id"`
	Index         int     `json:"index"`
	StartOffset   float64 `json:"start_offset"`
	EndOffset     float64 `json:"end_offset"`
	State         State   `json:"state"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

type segmentEntry struct {
	mu            sync.Mutex
	segment       segmenter.Segment
	state         State
	result        *transcriber.Result
	validation    *ValidationRecord
	failureReason string
}

// Tracker is the per-segment lifecycle bookkeeping for all sources. The
// orchestrator is its only writer. The outer lock guards the maps;
// each segment entry carries its own lock so transitions for different
// segments proceed concurrently while per-segment transitions stay
// serialized.
type Tracker struct {
	mu       sync.RWMutex
	sources  map[string][]string // sourceID -> segment ids in index order
	segments map[string]*segmentEntry
}

func New() *Tracker {
	return &Tracker{
		sources:  make(map[string][]string),
		segments: make(map[string]*segmentEntry),
	}
}

// Register installs a freshly segmented source. All segments start
// Pending. Registering the same source again replaces the previous
// generation.
func (t *Tracker) Register(sourceID string, segs []segmenter.Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, old := range t.sources[sourceID] {
		delete(t.segments, old)
	}

	order := make([]string, len(segs))
	for i, seg := range segs {
		order[i] = seg.ID
		t.segments[seg.ID] = &segmentEntry{segment: seg, state: StatePending}
	}
	t.sources[sourceID] = order
}

func (t *Tracker) entry(segmentID string) (*segmentEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.segments[segmentID]
	if !ok {
		return nil, shared.ErrSegmentNotFound
	}
	return e, nil
}

func (t *Tracker) RecordDispatch(segmentID string) error {
	e, err := t.entry(segmentID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StatePending, StateFailed:
		e.state = StateTranscribing
		e.failureReason = ""
		return nil
	default:
		return fmt.Errorf("cannot dispatch segment %s in state %s: %w", segmentID, e.state, shared.ErrConflict)
	}
}

// RecordSuccess installs the current TranscriptionResult, replacing any
// earlier one. An existing ValidationRecord is left untouched; the human
// must explicitly re-validate against the new text.
func (t *Tracker) RecordSuccess(segmentID string, result *transcriber.Result) error {
	e, err := t.entry(segmentID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.result = result
	e.failureReason = ""
	if e.validation != nil && e.validation.IsValidated {
		e.state = StateValidated
	} else {
		e.state = StateTranscribed
	}
	return nil
}

// RecordFailure marks the segment Failed for this generation. A prior
// successful result, if any, is kept; failed attempts never create or
// destroy results.
func (t *Tracker) RecordFailure(segmentID string, reason string) error {
	e, err := t.entry(segmentID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = StateFailed
	e.failureReason = reason
	return nil
}

// RecordValidation attaches a human review. The segment must hold a
// current TranscriptionResult first; approving text that does not exist
// is a workflow-ordering violation.
func (t *Tracker) RecordValidation(segmentID string, record ValidationRecord) error {
	e, err := t.entry(segmentID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.result == nil {
		return shared.ErrNotYetTranscribed
	}

	record.SegmentID = segmentID
	e.validation = &record
	if record.IsValidated {
		e.state = StateValidated
	} else if e.state == StateValidated {
		e.state = StateTranscribed
	}
	return nil
}

func (t *Tracker) segmentIDs(sourceID string) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	order, ok := t.sources[sourceID]
	if !ok {
		return nil, shared.ErrSourceNotFound
	}
	return append([]string(nil), order...), nil
}

// Snapshot returns per-segment states in index order.
func (t *Tracker) Snapshot(sourceID string) ([]SegmentStatus, error) {
	order, err := t.segmentIDs(sourceID)
	if err != nil {
		return nil, err
	}

	statuses := make([]SegmentStatus, 0, len(order))
	for _, id := range order {
		e, err := t.entry(id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		statuses = append(statuses, SegmentStatus{
			SegmentID:     e.segment.ID,
			Index:         e.segment.Index,
			StartOffset:   e.segment.StartOffset,
			EndOffset:     e.segment.EndOffset,
			State:         e.state,
			FailureReason: e.failureReason,
		})
		e.mu.Unlock()
	}
	return statuses, nil
}

// SourceProgress aggregates transcription completion. Failed segments
// count toward the percentage so progress always reaches 100%, with the
// failures individually visible through Snapshot.
func (t *Tracker) SourceProgress(sourceID string) (Progress, error) {
	statuses, err := t.Snapshot(sourceID)
	if err != nil {
		return Progress{}, err
	}

	p := Progress{TotalCount: len(statuses)}
	done := 0
	for _, s := range statuses {
		switch s.State {
		case StateTranscribed:
			p.CompletedCount++
			done++
		case StateValidated:
			p.CompletedCount++
			p.ValidatedCount++
			done++
		case StateFailed:
			p.FailedCount++
			done++
		}
	}
	if p.TotalCount > 0 {
		p.Percentage = float64(done) / float64(p.TotalCount) * 100
	}
	return p, nil
}

func (t *Tracker) Segment(segmentID string) (segmenter.Segment, error) {
	e, err := t.entry(segmentID)
	if err != nil {
		return segmenter.Segment{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.segment, nil
}

func (t *Tracker) SegmentState(segmentID string) (State, error) {
	e, err := t.entry(segmentID)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

func (t *Tracker) Result(segmentID string) (*transcriber.Result, error) {
	e, err := t.entry(segmentID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, nil
}

func (t *Tracker) Validation(segmentID string) (*ValidationRecord, error) {
	e, err := t.entry(segmentID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validation, nil
}

// Remove drops all bookkeeping for a source.
func (t *Tracker) Remove(sourceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range t.sources[sourceID] {
		delete(t.segments, id)
	}
	delete(t.sources, sourceID)
}
