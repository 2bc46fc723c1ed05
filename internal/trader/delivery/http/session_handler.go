package http

import (
	"net/http"
	"strconv"
	"strings"

	"golang-ai-trader/internal/trader/service"
	"golang-ai-trader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SessionHandler handles HTTP requests for decision sessions.
type SessionHandler struct {
	orchestrator service.OrchestratorService
	logger       *logger.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(orchestrator service.OrchestratorService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{orchestrator: orchestrator, logger: log}
}

// RegisterRoutes registers the session routes to the Echo group.
func (h *SessionHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/:type/run", h.RunSession)
	g.GET("/decisions", h.GetDecisions)
}

// RunSession runs a decision session synchronously. On-demand sessions are
// operator-triggered and infrequent, so blocking the request keeps the
// result visible.
func (h *SessionHandler) RunSession(c echo.Context) error {
	sessionType := strings.ToUpper(c.Param("type"))
	record, err := h.orchestrator.RunSession(c.Request().Context(), sessionType)
	if err != nil && record == nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *SessionHandler) GetDecisions(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	records, err := h.orchestrator.RecentDecisions(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("Failed to get decisions", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}
