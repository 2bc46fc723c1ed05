package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeToolRequestExecuteTrade(t *testing.T) {
	req, err := DecodeToolRequest(ToolExecuteTrade, map[string]any{
		"ticker":   "AAPL",
		"side":     "BUY",
		"quantity": float64(10),
		"price":    150.5,
		"reason":   "strong signal",
	})
	require.NoError(t, err)

	trade, ok := req.(ExecuteTradeRequest)
	require.True(t, ok)
	assert.Equal(t, "AAPL", trade.Ticker)
	assert.Equal(t, "BUY", trade.Side)
	assert.Equal(t, int64(10), trade.Quantity)
	assert.InDelta(t, 150.5, trade.Price, 1e-9)
	assert.Equal(t, "strong signal", trade.Reason)
}

func TestDecodeToolRequestMissingArgument(t *testing.T) {
	_, err := DecodeToolRequest(ToolExecuteTrade, map[string]any{"side": "BUY", "quantity": float64(1)})
	assert.ErrorContains(t, err, "ticker")
}

func TestDecodeToolRequestFractionalQuantity(t *testing.T) {
	_, err := DecodeToolRequest(ToolExecuteTrade, map[string]any{
		"ticker":   "AAPL",
		"side":     "BUY",
		"quantity": 1.5,
	})
	assert.ErrorContains(t, err, "whole number")
}

func TestDecodeToolRequestUnknownTool(t *testing.T) {
	_, err := DecodeToolRequest("launch_rocket", nil)
	assert.ErrorContains(t, err, "unknown tool")
}

func TestDecodeToolRequestNoArgTools(t *testing.T) {
	for name, want := range map[string]ToolRequest{
		ToolCheckBalance:          CheckBalanceRequest{},
		ToolGetPortfolioStatus:    PortfolioStatusRequest{},
		ToolCheckStopLossTriggers: StopLossCheckRequest{},
	} {
		req, err := DecodeToolRequest(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, want, req)
	}
}

func TestDecodeToolRequestHistoryDefaultsLimit(t *testing.T) {
	req, err := DecodeToolRequest(ToolGetTradingHistory, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, TradeHistoryRequest{Limit: 20}, req)

	req, err = DecodeToolRequest(ToolGetTradingHistory, map[string]any{"limit": float64(5)})
	require.NoError(t, err)
	assert.Equal(t, TradeHistoryRequest{Limit: 5}, req)
}

func TestDecodeToolRequestPositionSize(t *testing.T) {
	req, err := DecodeToolRequest(ToolCalculatePositionSize, map[string]any{
		"ticker":     "MSFT",
		"confidence": 0.8,
	})
	require.NoError(t, err)
	assert.Equal(t, PositionSizeRequest{Ticker: "MSFT", Confidence: 0.8}, req)
}
