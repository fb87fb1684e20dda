package recording

import "time"

// Recording is the persisted root of an upload. Segment rows hang off it
// by RecordingID; transcripts and reviews hang off segments.
type Recording struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	Filename        string    `gorm:"not null" json:"filename"`
	DurationSeconds float64   `gorm:"not null" json:"duration_seconds"`
	SampleRate      int       `gorm:"not null" json:"sample_rate"`
	SegmentCount    int       `gorm:"not null" json:"segment_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SegmentRow struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	RecordingID   string    `gorm:"not null;index" json:"recording_id"`
	Index         int       `gorm:"not null;column:idx" json:"index"`
	StartOffset   float64   `gorm:"not null" json:"start_offset"`
	EndOffset     float64   `gorm:"not null" json:"end_offset"`
	State         string    `gorm:"not null;default:pending" json:"state"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (SegmentRow) TableName() string { return "segments" }

type TranscriptRow struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	SegmentID        string    `gorm:"uniqueIndex;not null" json:"segment_id"`
	Text             string    `json:"text"`
	Confidence       float64   `json:"confidence"`
	AttemptCount     int       `json:"attempt_count"`
	BackendLatencyMs int64     `json:"backend_latency_ms"`
	Backend          string    `json:"backend"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (TranscriptRow) TableName() string { return "transcripts" }

type ValidationRow struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	SegmentID      string    `gorm:"uniqueIndex;not null" json:"segment_id"`
	OriginalText   string    `json:"original_text"`
	EditedText     string    `json:"edited_text"`
	UserConfidence int       `gorm:"not null" json:"user_confidence"`
	Notes          string    `json:"notes,omitempty"`
	IsValidated    bool      `gorm:"not null" json:"is_validated"`
	ValidatedAt    time.Time `json:"validated_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (ValidationRow) TableName() string { return "validations" }
