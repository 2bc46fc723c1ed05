package http

import (
	"net/http"
	"strconv"

	"golang-ai-trader/internal/trader/service"
	"golang-ai-trader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalHandler handles HTTP requests for aggregated signals.
type SignalHandler struct {
	aggregator service.SignalAggregatorService
	logger     *logger.Logger
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(aggregator service.SignalAggregatorService, log *logger.Logger) *SignalHandler {
	return &SignalHandler{aggregator: aggregator, logger: log}
}

// RegisterRoutes registers the signal routes to the Echo group.
func (h *SignalHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:ticker", h.GetSignal)
	g.GET("/:ticker/history", h.GetSignalHistory)
}

func (h *SignalHandler) GetSignal(c echo.Context) error {
	signal, err := h.aggregator.Aggregate(c.Request().Context(), c.Param("ticker"))
	if err != nil {
		h.logger.Error("Failed to aggregate signal", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, signal)
}

func (h *SignalHandler) GetSignalHistory(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	signals, err := h.aggregator.RecentSignals(c.Request().Context(), c.Param("ticker"), limit)
	if err != nil {
		h.logger.Error("Failed to get signal history", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, signals)
}
