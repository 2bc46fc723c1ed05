package http

import (
	"net/http"
	"strconv"

	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/internal/trader/service"
	"golang-ai-trader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orders service.OrderManagerService
	logger *logger.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders service.OrderManagerService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: log}
}

// RegisterRoutes registers the order routes to the Echo group.
func (h *OrderHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.SubmitOrder)
	g.GET("/active", h.GetActiveOrders)
	g.GET("/history", h.GetOrderHistory)
	g.DELETE("/:order_number", h.CancelOrder)
}

func (h *OrderHandler) SubmitOrder(c echo.Context) error {
	var intent dto.TradeIntent
	if err := c.Bind(&intent); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	order, err := h.orders.SubmitOrder(c.Request().Context(), &intent)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetActiveOrders(c echo.Context) error {
	orders, err := h.orders.ActiveOrders(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get active orders", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrderHistory(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	orders, err := h.orders.OrderHistory(c.Request().Context(), c.QueryParam("ticker"), limit)
	if err != nil {
		h.logger.Error("Failed to get order history", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	order, err := h.orders.CancelOrder(c.Request().Context(), c.Param("order_number"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}
