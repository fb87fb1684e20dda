package recording

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/scriba-app/transcribe-backend/internal/audio"
	"github.com/scriba-app/transcribe-backend/internal/dto"
	"github.com/scriba-app/transcribe-backend/internal/export"
	"github.com/scriba-app/transcribe-backend/internal/orchestrator"
	"github.com/scriba-app/transcribe-backend/internal/shared"
	"github.com/scriba-app/transcribe-backend/internal/tracker"
)

const maxUploadSize = 100 * 1024 * 1024

type Handler struct {
	orch   *orchestrator.Orchestrator
	store  *Store
	logger *slog.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		orch:   orch,
		store:  store,
		logger: logger.With("handler", "recording"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/recordings", h.Upload)
	g.GET("/recordings", h.List)
	g.GET("/recordings/:id", h.Get)
	g.GET("/recordings/:id/status", h.Status)
	g.GET("/recordings/:id/export", h.Export)
	g.POST("/recordings/:id/cancel", h.Cancel)
	g.DELETE("/recordings/:id", h.Delete)
	g.GET("/segments/:id/audio", h.SegmentAudio)
	g.PUT("/segments/:id/validate", h.Validate)
	g.POST("/segments/:id/redispatch", h.Redispatch)
}

// parseConfig reads optional segmentation overrides from the upload form.
// Absent fields fall back to the pipeline defaults.
func parseConfig(c echo.Context) (orchestrator.Config, error) {
	var cfg orchestrator.Config

	if v := c.FormValue("target_duration"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return cfg, shared.BadRequest("invalid_target_duration", "target_duration must be a positive number of seconds")
		}
		cfg.TargetDurationSeconds = f
	}
	if v := c.FormValue("silence_threshold_db"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f >= 0 {
			return cfg, shared.BadRequest("invalid_silence_threshold", "silence_threshold_db must be a negative dBFS value")
		}
		cfg.SilenceThresholdDb = f
	}
	if v := c.FormValue("min_silence_duration"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return cfg, shared.BadRequest("invalid_min_silence", "min_silence_duration must be a positive number of seconds")
		}
		cfg.MinSilenceDurationSeconds = f
	}
	if v := c.FormValue("max_concurrent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, shared.BadRequest("invalid_max_concurrent", "max_concurrent must be a positive integer")
		}
		cfg.MaxConcurrentTranscriptions = n
	}
	cfg.Language = c.FormValue("language")
	cfg.ModelID = c.FormValue("model_id")

	return cfg, nil
}

func (h *Handler) Upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return shared.BadRequest("missing_file", "File is required")
	}
	if file.Size > maxUploadSize {
		return shared.NewAPIError("file_too_large", "File too large (max 100MB)").ToHTTP(http.StatusRequestEntityTooLarge)
	}

	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return shared.InternalError("file_error", "Failed to open file")
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		return shared.InternalError("file_error", "Failed to read file")
	}

	recordingID, err := h.orch.Submit(c.Request().Context(), raw, file.Filename, cfg)
	if err != nil {
		var decodeErr *audio.DecodeError
		if errors.As(err, &decodeErr) {
			return shared.BadRequest("invalid_audio", decodeErr.Error())
		}
		h.logger.Error("failed to accept upload", "filename", file.Filename, "error", err)
		return shared.InternalError("upload_failed", "Failed to process upload")
	}

	status, err := h.orch.Status(recordingID)
	if err != nil {
		return shared.InternalError("upload_failed", "Failed to process upload")
	}

	return c.JSON(http.StatusCreated, dto.UploadResponse{
		RecordingID:     recordingID,
		Filename:        file.Filename,
		DurationSeconds: status.DurationSeconds,
		SegmentCount:    status.Progress.TotalCount,
	})
}

func (h *Handler) List(c echo.Context) error {
	recs, err := h.store.ListRecordings(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list recordings", "error", err)
		return shared.InternalError("list_failed", "Failed to list recordings")
	}
	return c.JSON(http.StatusOK, map[string]any{"recordings": recs})
}

func (h *Handler) Status(c echo.Context) error {
	status, err := h.orch.Status(c.Param("id"))
	if err != nil {
		if errors.Is(err, shared.ErrSourceNotFound) {
			return shared.NotFound("recording_not_found", "Recording not found")
		}
		return shared.InternalError("status_failed", "Failed to read status")
	}

	return c.JSON(http.StatusOK, dto.StatusResponse{
		RecordingID:     status.SourceID,
		Filename:        status.Filename,
		DurationSeconds: status.DurationSeconds,
		Cancelled:       status.Cancelled,
		Progress:        status.Progress,
		Segments:        status.Segments,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id := c.Param("id")
	status, err := h.orch.Status(id)
	if err != nil {
		if errors.Is(err, shared.ErrSourceNotFound) {
			return shared.NotFound("recording_not_found", "Recording not found")
		}
		return shared.InternalError("get_failed", "Failed to read recording")
	}

	details, err := h.orch.Summary(id)
	if err != nil {
		return shared.InternalError("get_failed", "Failed to read recording")
	}

	segments := make([]dto.SegmentResponse, len(details))
	for i, d := range details {
		seg := dto.SegmentResponse{
			SegmentID:   d.Segment.ID,
			Index:       d.Segment.Index,
			StartOffset: d.Segment.StartOffset,
			EndOffset:   d.Segment.EndOffset,
			State:       string(d.State),
		}
		if d.Transcription != nil {
			seg.Text = &d.Transcription.Text
			seg.Confidence = &d.Transcription.Confidence
			seg.AttemptCount = d.Transcription.AttemptCount
			seg.Backend = d.Transcription.Backend
		}
		if d.Validation != nil {
			seg.EditedText = &d.Validation.EditedText
			seg.UserConfidence = &d.Validation.UserConfidence
			seg.Notes = d.Validation.Notes
			seg.IsValidated = d.Validation.IsValidated
		}
		segments[i] = seg
	}

	return c.JSON(http.StatusOK, dto.RecordingResponse{
		RecordingID:     id,
		Filename:        status.Filename,
		DurationSeconds: status.DurationSeconds,
		Progress:        status.Progress,
		Segments:        segments,
	})
}

func (h *Handler) Export(c echo.Context) error {
	id := c.Param("id")
	kind := export.Kind(c.QueryParam("format"))
	if kind == "" {
		kind = export.KindText
	}
	includeTimestamps := c.QueryParam("include_timestamps") != "false"

	data, contentType, err := h.orch.Export(id, kind, includeTimestamps)
	if err != nil {
		if errors.Is(err, shared.ErrSourceNotFound) {
			return shared.NotFound("recording_not_found", "Recording not found")
		}
		if errors.Is(err, shared.ErrUnsupportedFormat) {
			return shared.BadRequest("unsupported_format", "Supported formats: text, json, srt, vtt")
		}
		h.logger.Error("export failed", "recording_id", id, "error", err)
		return shared.InternalError("export_failed", "Failed to export transcript")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="transcript.`+export.FileExtension(kind)+`"`)
	return c.Blob(http.StatusOK, contentType, data)
}

func (h *Handler) Cancel(c echo.Context) error {
	id := c.Param("id")
	if err := h.orch.Cancel(id); err != nil {
		if errors.Is(err, shared.ErrSourceNotFound) {
			return shared.NotFound("recording_not_found", "Recording not found")
		}
		return shared.InternalError("cancel_failed", "Failed to cancel recording")
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "transcription cancelled"})
}

func (h *Handler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.orch.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, shared.ErrSourceNotFound) || errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("recording_not_found", "Recording not found")
		}
		h.logger.Error("delete failed", "recording_id", id, "error", err)
		return shared.InternalError("delete_failed", "Failed to delete recording")
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "recording deleted"})
}

// SegmentAudio serves one segment's audio so reviewers can listen while
// editing its transcript.
func (h *Handler) SegmentAudio(c echo.Context) error {
	segmentID := c.Param("id")
	data, err := h.orch.SegmentAudio(segmentID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrSegmentNotFound):
			return shared.NotFound("segment_not_found", "Segment not found")
		case errors.Is(err, shared.ErrSourceNotFound):
			return shared.NotFound("recording_not_found", "Recording not found")
		}
		h.logger.Error("failed to render segment audio", "segment_id", segmentID, "error", err)
		return shared.InternalError("audio_failed", "Failed to render segment audio")
	}
	return c.Blob(http.StatusOK, "audio/wav", data)
}

func (h *Handler) Validate(c echo.Context) error {
	segmentID := c.Param("id")

	var req dto.ValidateRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	record, err := h.orch.Validate(segmentID, req.EditedText, req.UserConfidence, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrInvalidConfidence):
			return shared.BadRequest("invalid_confidence", "user_confidence must be between 1 and 5")
		case errors.Is(err, shared.ErrSegmentNotFound):
			return shared.NotFound("segment_not_found", "Segment not found")
		case errors.Is(err, shared.ErrNotYetTranscribed):
			return shared.Conflict("not_transcribed", "Segment has no transcript to validate")
		}
		h.logger.Error("validation failed", "segment_id", segmentID, "error", err)
		return shared.InternalError("validate_failed", "Failed to record validation")
	}

	var progress tracker.Progress
	if sourceID, serr := h.orch.SegmentSource(segmentID); serr == nil {
		if status, serr := h.orch.Status(sourceID); serr == nil {
			progress = status.Progress
		}
	}

	return c.JSON(http.StatusOK, dto.ValidateResponse{
		Validation: record,
		Progress:   progress,
	})
}

func (h *Handler) Redispatch(c echo.Context) error {
	segmentID := c.Param("id")
	if err := h.orch.Redispatch(segmentID); err != nil {
		switch {
		case errors.Is(err, shared.ErrSegmentNotFound):
			return shared.NotFound("segment_not_found", "Segment not found")
		case errors.Is(err, shared.ErrConflict):
			return shared.Conflict("not_failed", "Only failed segments can be redispatched")
		case errors.Is(err, shared.ErrSourceNotFound):
			return shared.NotFound("recording_not_found", "Recording not found")
		}
		return shared.InternalError("redispatch_failed", "Failed to redispatch segment")
	}
	return c.JSON(http.StatusAccepted, dto.MessageResponse{Message: "segment redispatched"})
}
