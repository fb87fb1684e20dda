package reference

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scriba-app/transcribe-backend/internal/shared"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With("handler", "reference"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/reference", h.List)
	g.GET("/reference/:key", h.Get)
	g.PUT("/reference/:key", h.Put)
	g.DELETE("/reference/:key", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	keys, err := h.store.Keys(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list reference keys", "error", err)
		return shared.InternalError("list_failed", "Failed to list reference texts")
	}
	return c.JSON(http.StatusOK, map[string]any{"keys": keys})
}

func (h *Handler) Get(c echo.Context) error {
	text, err := h.store.Get(c.Request().Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("reference_not_found", "Reference text not found")
		}
		h.logger.Error("failed to read reference text", "key", c.Param("key"), "error", err)
		return shared.InternalError("get_failed", "Failed to read reference text")
	}
	return c.JSON(http.StatusOK, text)
}

func (h *Handler) Put(c echo.Context) error {
	var text Text
	if err := c.Bind(&text); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if text.Body == "" {
		return shared.BadRequest("missing_body", "body is required")
	}
	text.Key = c.Param("key")

	if err := h.store.Put(c.Request().Context(), &text); err != nil {
		h.logger.Error("failed to store reference text", "key", text.Key, "error", err)
		return shared.InternalError("put_failed", "Failed to store reference text")
	}
	return c.JSON(http.StatusOK, text)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("key")); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("reference_not_found", "Reference text not found")
		}
		return shared.InternalError("delete_failed", "Failed to delete reference text")
	}
	return c.NoContent(http.StatusNoContent)
}
