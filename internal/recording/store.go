package recording

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scriba-app/transcribe-backend/internal/segmenter"
	"github.com/scriba-app/transcribe-backend/internal/shared"
	"github.com/scriba-app/transcribe-backend/internal/tracker"
	"github.com/scriba-app/transcribe-backend/internal/transcriber"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Recording{}, &SegmentRow{}, &TranscriptRow{}, &ValidationRow{})
}

func (s *Store) CreateRecording(ctx context.Context, sourceID, filename string, durationSeconds float64, sampleRate int, segs []segmenter.Segment) error {
	rec := &Recording{
		ID:              sourceID,
		Filename:        filename,
		DurationSeconds: durationSeconds,
		SampleRate:      sampleRate,
		SegmentCount:    len(segs),
	}

	rows := make([]SegmentRow, len(segs))
	for i, seg := range segs {
		rows[i] = SegmentRow{
			ID:          seg.ID,
			RecordingID: sourceID,
			Index:       seg.Index,
			StartOffset: seg.StartOffset,
			EndOffset:   seg.EndOffset,
			State:       string(tracker.StatePending),
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (s *Store) SaveResult(ctx context.Context, result *transcriber.Result) error {
	row := &TranscriptRow{
		ID:               shared.NewID("tr_"),
		SegmentID:        result.SegmentID,
		Text:             result.Text,
		Confidence:       result.Confidence,
		AttemptCount:     result.AttemptCount,
		BackendLatencyMs: result.BackendLatencyMs,
		Backend:          result.Backend,
	}
	// A redispatch overwrites the previous transcript for the segment.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "segment_id"}},
		UpdateAll: true,
	}).Create(row).Error
}

func (s *Store) SaveValidation(ctx context.Context, record *tracker.ValidationRecord) error {
	row := &ValidationRow{
		ID:             shared.NewID("val_"),
		SegmentID:      record.SegmentID,
		OriginalText:   record.OriginalText,
		EditedText:     record.EditedText,
		UserConfidence: record.UserConfidence,
		Notes:          record.Notes,
		IsValidated:    record.IsValidated,
		ValidatedAt:    record.ValidatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "segment_id"}},
		UpdateAll: true,
	}).Create(row).Error
}

func (s *Store) MarkSegmentState(ctx context.Context, segmentID string, state tracker.State, reason string) error {
	return s.db.WithContext(ctx).Model(&SegmentRow{}).
		Where("id = ?", segmentID).
		Updates(map[string]any{"state": string(state), "failure_reason": reason}).Error
}

func (s *Store) DeleteRecording(ctx context.Context, sourceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&SegmentRow{}).Where("recording_id = ?", sourceID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			if err := tx.Delete(&TranscriptRow{}, "segment_id IN ?", ids).Error; err != nil {
				return err
			}
			if err := tx.Delete(&ValidationRow{}, "segment_id IN ?", ids).Error; err != nil {
				return err
			}
			if err := tx.Delete(&SegmentRow{}, "recording_id = ?", sourceID).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(&Recording{}, "id = ?", sourceID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (s *Store) GetRecording(ctx context.Context, id string) (*Recording, error) {
	var rec Recording
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListRecordings(ctx context.Context) ([]*Recording, error) {
	var recs []*Recording
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&recs).Error
	return recs, err
}

func (s *Store) GetSegments(ctx context.Context, recordingID string) ([]SegmentRow, error) {
	var rows []SegmentRow
	err := s.db.WithContext(ctx).Where("recording_id = ?", recordingID).Order("idx ASC").Find(&rows).Error
	return rows, err
}

func (s *Store) GetTranscript(ctx context.Context, segmentID string) (*TranscriptRow, error) {
	var row TranscriptRow
	err := s.db.WithContext(ctx).Where("segment_id = ?", segmentID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
