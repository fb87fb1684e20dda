package dto

import (
	"github.com/scriba-app/transcribe-backend/internal/tracker"
)

type UploadResponse struct {
	RecordingID     string  `json:"recording_id"`
	Filename        string  `json:"filename"`
	DurationSeconds float64 `json:"duration_seconds"`
	SegmentCount    int     `json:"segment_count"`
}

type StatusResponse struct {
	RecordingID     string                  `json:"recording_id"`
	Filename        string                  `json:"filename"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Cancelled       bool                    `json:"cancelled"`
	Progress        tracker.Progress        `json:"progress"`
	Segments        []tracker.SegmentStatus `json:"segments"`
}

type SegmentResponse struct {
	SegmentID      string   `json:"segment_id"`
	Index          int      `json:"index"`
	StartOffset    float64  `json:"start_offset"`
	EndOffset      float64  `json:"end_offset"`
	State          string   `json:"state"`
	Text           *string  `json:"text,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	AttemptCount   int      `json:"attempt_count,omitempty"`
	Backend        string   `json:"backend,omitempty"`
	EditedText     *string  `json:"edited_text,omitempty"`
	UserConfidence *int     `json:"user_confidence,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	IsValidated    bool     `json:"is_validated"`
}

type RecordingResponse struct {
	RecordingID     string            `json:"recording_id"`
	Filename        string            `json:"filename"`
	DurationSeconds float64           `json:"duration_seconds"`
	Progress        tracker.Progress  `json:"progress"`
	Segments        []SegmentResponse `json:"segments"`
}

type ValidateRequest struct {
	EditedText     string `json:"edited_text"`
	UserConfidence int    `json:"user_confidence"`
	Notes          string `json:"notes,omitempty"`
}

type ValidateResponse struct {
	Validation *tracker.ValidationRecord `json:"validation"`
	Progress   tracker.Progress          `json:"progress"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
