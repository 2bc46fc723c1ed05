package http

import (
	"net/http"

	"golang-ai-trader/internal/trader/service"
	"golang-ai-trader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OptimizerHandler handles HTTP requests for portfolio optimization.
type OptimizerHandler struct {
	optimizer service.OptimizerService
	logger    *logger.Logger
}

// NewOptimizerHandler creates a new OptimizerHandler.
func NewOptimizerHandler(optimizer service.OptimizerService, log *logger.Logger) *OptimizerHandler {
	return &OptimizerHandler{optimizer: optimizer, logger: log}
}

// RegisterRoutes registers the optimizer routes to the Echo group.
func (h *OptimizerHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/optimize", h.Optimize)
	g.POST("/frontier", h.EfficientFrontier)
	g.POST("/rebalance/plan", h.RebalancePlan)
}

type optimizeRequest struct {
	Tickers   []string `json:"tickers"`
	Objective string   `json:"objective"`
}

func (h *OptimizerHandler) Optimize(c echo.Context) error {
	var req optimizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	result, err := h.optimizer.Optimize(c.Request().Context(), req.Tickers, req.Objective)
	if err != nil {
		h.logger.Error("Optimization failed", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *OptimizerHandler) EfficientFrontier(c echo.Context) error {
	var req optimizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	points, err := h.optimizer.EfficientFrontier(c.Request().Context(), req.Tickers)
	if err != nil {
		h.logger.Error("Frontier computation failed", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, points)
}

func (h *OptimizerHandler) RebalancePlan(c echo.Context) error {
	var req optimizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	actions, result, err := h.optimizer.RebalancePlan(c.Request().Context(), req.Tickers, req.Objective)
	if err != nil {
		h.logger.Error("Rebalance plan failed", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"target": result, "actions": actions})
}
