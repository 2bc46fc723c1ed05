package dto

import (
	"fmt"
	"math"
	"time"
)

// Tool names exposed to the reasoning loop.
const (
	ToolCheckBalance          = "check_balance"
	ToolGetCurrentPrice       = "get_current_price"
	ToolGetPortfolioStatus    = "get_portfolio_status"
	ToolExecuteTrade          = "execute_trade"
	ToolAnalyzeSignals        = "analyze_signals"
	ToolCalculatePositionSize = "calculate_position_size"
	ToolCheckStopLossTriggers = "check_stop_loss_triggers"
	ToolGetTradingHistory     = "get_trading_history"
)

// ToolRequest is the closed set of tool calls the reasoning loop can
// dispatch. Each request type names its tool; the dispatcher switches on the
// concrete type, so an unhandled request is a compile-time gap rather than a
// stringly-typed runtime surprise.
type ToolRequest interface {
	ToolName() string
}

type CheckBalanceRequest struct{}

func (CheckBalanceRequest) ToolName() string { return ToolCheckBalance }

type GetPriceRequest struct {
	Ticker string
}

func (GetPriceRequest) ToolName() string { return ToolGetCurrentPrice }

type PortfolioStatusRequest struct{}

func (PortfolioStatusRequest) ToolName() string { return ToolGetPortfolioStatus }

type ExecuteTradeRequest struct {
	Ticker   string
	Side     string
	Quantity int64
	Price    float64
	Reason   string
}

func (ExecuteTradeRequest) ToolName() string { return ToolExecuteTrade }

type AnalyzeSignalsRequest struct {
	Ticker string
}

func (AnalyzeSignalsRequest) ToolName() string { return ToolAnalyzeSignals }

type PositionSizeRequest struct {
	Ticker     string
	Confidence float64
}

func (PositionSizeRequest) ToolName() string { return ToolCalculatePositionSize }

type StopLossCheckRequest struct{}

func (StopLossCheckRequest) ToolName() string { return ToolCheckStopLossTriggers }

type TradeHistoryRequest struct {
	Limit int
}

func (TradeHistoryRequest) ToolName() string { return ToolGetTradingHistory }

// ToolCallRecord is one tool invocation captured on the decision audit
// trail.
type ToolCallRecord struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Result    any            `json:"result"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
	StartedAt time.Time      `json:"started_at"`
}

// DecodeToolRequest converts a model function call into its typed request.
// Unknown tool names and malformed arguments are errors so the loop can
// report them back to the model instead of guessing.
func DecodeToolRequest(name string, args map[string]any) (ToolRequest, error) {
	switch name {
	case ToolCheckBalance:
		return CheckBalanceRequest{}, nil
	case ToolGetCurrentPrice:
		ticker, err := stringArg(args, "ticker")
		if err != nil {
			return nil, err
		}
		return GetPriceRequest{Ticker: ticker}, nil
	case ToolGetPortfolioStatus:
		return PortfolioStatusRequest{}, nil
	case ToolExecuteTrade:
		ticker, err := stringArg(args, "ticker")
		if err != nil {
			return nil, err
		}
		side, err := stringArg(args, "side")
		if err != nil {
			return nil, err
		}
		qty, err := intArg(args, "quantity")
		if err != nil {
			return nil, err
		}
		req := ExecuteTradeRequest{Ticker: ticker, Side: side, Quantity: qty}
		if v, ok := args["price"]; ok {
			price, err := toFloat(v, "price")
			if err != nil {
				return nil, err
			}
			req.Price = price
		}
		if v, ok := args["reason"].(string); ok {
			req.Reason = v
		}
		return req, nil
	case ToolAnalyzeSignals:
		ticker, err := stringArg(args, "ticker")
		if err != nil {
			return nil, err
		}
		return AnalyzeSignalsRequest{Ticker: ticker}, nil
	case ToolCalculatePositionSize:
		ticker, err := stringArg(args, "ticker")
		if err != nil {
			return nil, err
		}
		confidence, err := toFloat(args["confidence"], "confidence")
		if err != nil {
			return nil, err
		}
		return PositionSizeRequest{Ticker: ticker, Confidence: confidence}, nil
	case ToolCheckStopLossTriggers:
		return StopLossCheckRequest{}, nil
	case ToolGetTradingHistory:
		req := TradeHistoryRequest{Limit: 20}
		if v, ok := args["limit"]; ok {
			limit, err := intArg(map[string]any{"limit": v}, "limit")
			if err != nil {
				return nil, err
			}
			req.Limit = int(limit)
		}
		return req, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing or invalid argument %q", key)
	}
	return v, nil
}

func intArg(args map[string]any, key string) (int64, error) {
	f, err := toFloat(args[key], key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("argument %q must be a whole number", key)
	}
	return int64(f), nil
}

// toFloat accepts the numeric encodings the model API produces for JSON
// numbers.
func toFloat(v any, key string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("missing or invalid argument %q", key)
	}
}
