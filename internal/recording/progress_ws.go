package recording

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/scriba-app/transcribe-backend/internal/orchestrator"
	"github.com/scriba-app/transcribe-backend/internal/shared"
	"github.com/scriba-app/transcribe-backend/internal/tracker"
)

const (
	progressWriteWait = 10 * time.Second
	progressInterval  = 500 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressServer streams status snapshots for a recording over a
// websocket so clients don't have to poll. The stream closes after the
// final snapshot at 100 percent, or when the client goes away.
type ProgressServer struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

func NewProgressServer(orch *orchestrator.Orchestrator, logger *slog.Logger) *ProgressServer {
	return &ProgressServer{
		orch:   orch,
		logger: logger.With("component", "progress_ws"),
	}
}

func (s *ProgressServer) RegisterRoutes(g *echo.Group) {
	g.GET("/recordings/:id/progress", s.HandleConnection)
}

func (s *ProgressServer) HandleConnection(c echo.Context) error {
	recordingID := c.Param("id")
	if _, err := s.orch.Status(recordingID); err != nil {
		if errors.Is(err, shared.ErrSourceNotFound) {
			return shared.NotFound("recording_not_found", "Recording not found")
		}
		return shared.InternalError("status_failed", "Failed to read status")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return err
	}
	defer ws.Close()

	// Consume control frames so close from the client is noticed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		status, err := s.orch.Status(recordingID)
		if err != nil {
			// Recording deleted mid-stream.
			return nil
		}

		ws.SetWriteDeadline(time.Now().Add(progressWriteWait))
		if err := ws.WriteJSON(status); err != nil {
			return nil
		}

		if status.Progress.Percentage >= 100 && !hasTranscribing(status) {
			ws.SetWriteDeadline(time.Now().Add(progressWriteWait))
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "transcription complete"))
			return nil
		}

		select {
		case <-clientGone:
			return nil
		case <-ticker.C:
		}
	}
}

func hasTranscribing(status *orchestrator.StatusSnapshot) bool {
	for _, seg := range status.Segments {
		if seg.State == tracker.StateTranscribing || seg.State == tracker.StatePending {
			return true
		}
	}
	return false
}
