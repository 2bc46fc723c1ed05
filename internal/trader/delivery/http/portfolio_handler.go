package http

import (
	"net/http"

	"golang-ai-trader/internal/trader/service"
	"golang-ai-trader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PortfolioHandler handles HTTP requests for the portfolio.
type PortfolioHandler struct {
	tracker service.PositionTrackerService
	logger  *logger.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(tracker service.PositionTrackerService, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{tracker: tracker, logger: log}
}

// RegisterRoutes registers the portfolio routes to the Echo group.
func (h *PortfolioHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetPortfolio)
	g.POST("/snapshot", h.TakeSnapshot)
}

func (h *PortfolioHandler) GetPortfolio(c echo.Context) error {
	state, err := h.tracker.GetPortfolioState(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get portfolio state", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *PortfolioHandler) TakeSnapshot(c echo.Context) error {
	snapshot, err := h.tracker.TakeSnapshot(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to take snapshot", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, snapshot)
}
