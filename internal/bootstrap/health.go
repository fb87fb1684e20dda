package bootstrap

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/scriba-app/transcribe-backend/internal/health"
	"github.com/scriba-app/transcribe-backend/internal/orchestrator"
	"github.com/scriba-app/transcribe-backend/internal/transcriber"
)

const version = "1.0.0"

func ProvideHealthHandler(
	db *gorm.DB,
	redisClient *redis.Client,
	backend transcriber.Backend,
	orch *orchestrator.Orchestrator,
) *health.Handler {
	return health.NewHandler(db, redisClient, backend, orch, version)
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
