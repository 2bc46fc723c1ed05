package http

import (
	"errors"
	"net/http"

	"golang-ai-trader/internal/trader/dto"

	"github.com/labstack/echo/v4"
)

// writeError maps domain errors onto HTTP statuses.
func writeError(c echo.Context, err error) error {
	var (
		validationErr   *dto.ValidationError
		riskErr         *dto.RiskDeniedError
		insufficientErr *dto.InsufficientDataError
		externalErr     *dto.ExternalServiceError
	)
	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.As(err, &riskErr):
		return c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error()})
	case errors.As(err, &insufficientErr):
		return c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, dto.ErrSessionInProgress):
		return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case errors.As(err, &externalErr):
		return c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}
