package bootstrap

import (
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/scriba-app/transcribe-backend/internal/orchestrator"
	"github.com/scriba-app/transcribe-backend/internal/recording"
	"github.com/scriba-app/transcribe-backend/internal/reference"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideRecordingHandler(orch *orchestrator.Orchestrator, store *recording.Store, logger *slog.Logger) *recording.Handler {
	return recording.NewHandler(orch, store, logger)
}

func ProvideProgressServer(orch *orchestrator.Orchestrator, logger *slog.Logger) *recording.ProgressServer {
	return recording.NewProgressServer(orch, logger)
}

func ProvideReferenceHandler(store *reference.Store, logger *slog.Logger) *reference.Handler {
	return reference.NewHandler(store, logger)
}

type HandlerParams struct {
	fx.In

	RecordingHandler *recording.Handler
	ProgressServer   *recording.ProgressServer
	ReferenceHandler *reference.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/api")

	params.RecordingHandler.RegisterRoutes(api)
	params.ProgressServer.RegisterRoutes(api)
	params.ReferenceHandler.RegisterRoutes(api)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRecordingHandler,
		ProvideProgressServer,
		ProvideReferenceHandler,
	),
	fx.Invoke(RegisterRoutes),
)
