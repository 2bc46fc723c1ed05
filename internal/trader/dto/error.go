package dto

import (
	"errors"
	"fmt"
)

// ErrSessionInProgress is returned when a decision session of the same type
// is already running.
var ErrSessionInProgress = errors.New("decision session already in progress")

// ErrInconclusiveDecision is returned when the reasoning loop hits its
// iteration cap without producing a final summary.
var ErrInconclusiveDecision = errors.New("decision loop reached iteration cap without conclusion")

// ValidationError reports an invalid request before it reaches any external
// system.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// RiskRuleCircuitBreaker identifies the daily-loss denial rule. A denial
// carrying it aborts a decision session instead of being surfaced to the
// model as a retryable failure.
const RiskRuleCircuitBreaker = "circuit_breaker"

// RiskDeniedError reports a trade intent rejected by a risk check.
type RiskDeniedError struct {
	Rule    string
	Message string
}

func (e *RiskDeniedError) Error() string {
	return fmt.Sprintf("risk check %s denied trade: %s", e.Rule, e.Message)
}

// ExternalServiceError wraps a failure from a dependency such as the broker
// API, a sentiment source, or the model API.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// InsufficientDataError reports that a computation lacked the history it
// needs, for example too few price observations for covariance estimation.
type InsufficientDataError struct {
	Need int
	Got  int
	What string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient %s: need %d, got %d", e.What, e.Need, e.Got)
}

// ErrorResponse represents a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}
