package telegram

import (
	"fmt"
	"strings"
	"time"
)

// FormatCircuitBreakerMessage renders the alert sent when the daily loss
// circuit breaker halts trading.
func FormatCircuitBreakerMessage(at time.Time, dailyPnLPct, limitPct float64) string {
	var sb strings.Builder
	sb.WriteString("🚨 *Circuit Breaker Triggered*\n\n")
	sb.WriteString(fmt.Sprintf("Daily P/L: `%.2f%%` (limit `-%.0f%%`)\n", dailyPnLPct, limitPct))
	sb.WriteString("All new trades are halted until the next trading day.\n")
	sb.WriteString(fmt.Sprintf("\n_%s_", at.Format("2006-01-02 15:04:05 MST")))
	return sb.String()
}

// FormatAutoExitMessage renders the alert sent when a stop-loss or
// take-profit sweep generates a closing order.
func FormatAutoExitMessage(kind, ticker string, quantity int64, triggerPrice, currentPrice float64, orderNumber string) string {
	icon := "🛑"
	if kind == "TAKE_PROFIT" {
		icon = "🎯"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *%s Exit*\n\n", icon, kind))
	sb.WriteString(fmt.Sprintf("Ticker: `%s`\n", ticker))
	sb.WriteString(fmt.Sprintf("Quantity: `%d`\n", quantity))
	sb.WriteString(fmt.Sprintf("Trigger: `%.2f`  Current: `%.2f`\n", triggerPrice, currentPrice))
	sb.WriteString(fmt.Sprintf("Order: `%s`\n", orderNumber))
	return sb.String()
}

// FormatSessionSummaryMessage renders a decision session summary.
func FormatSessionSummaryMessage(sessionType string, executedTrades, toolCalls int, confidence float64, duration time.Duration) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🤖 *%s Session Completed*\n\n", sessionType))
	sb.WriteString(fmt.Sprintf("Trades executed: `%d`\n", executedTrades))
	sb.WriteString(fmt.Sprintf("Tool calls: `%d`\n", toolCalls))
	sb.WriteString(fmt.Sprintf("Confidence: `%.0f%%`\n", confidence*100))
	sb.WriteString(fmt.Sprintf("Duration: `%.1fs`\n", duration.Seconds()))
	return sb.String()
}

// FormatErrorAlertMessage renders an operator alert for a failed task.
func FormatErrorAlertMessage(at time.Time, errType, errMessage, data string) string {
	var sb strings.Builder
	sb.WriteString("⚠️ *Error Alert*\n\n")
	sb.WriteString(fmt.Sprintf("Type: `%s`\n", errType))
	sb.WriteString(fmt.Sprintf("Error: `%s`\n", errMessage))
	if data != "" {
		sb.WriteString(fmt.Sprintf("Data: `%s`\n", data))
	}
	sb.WriteString(fmt.Sprintf("\n_%s_", at.Format("2006-01-02 15:04:05 MST")))
	return sb.String()
}
