package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors exported by the trading service.
type Metrics struct {
	SessionsTotal     *prometheus.CounterVec
	ToolCallsTotal    *prometheus.CounterVec
	OrdersTotal       *prometheus.CounterVec
	RiskDenialsTotal  prometheus.Counter
	AutoExitsTotal    *prometheus.CounterVec
	PortfolioValue    prometheus.Gauge
	SessionDuration   prometheus.Histogram
}

// New registers the trading service collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_sessions_total",
			Help: "Decision sessions by type and outcome.",
		}, []string{"session_type", "outcome"}),
		ToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_tool_calls_total",
			Help: "Tool calls dispatched to the reasoning loop, by tool.",
		}, []string{"tool"}),
		OrdersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders by side and final status.",
		}, []string{"side", "status"}),
		RiskDenialsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "trader_risk_denials_total",
			Help: "Trade intents denied by risk checks.",
		}),
		AutoExitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_auto_exits_total",
			Help: "Automatic closes generated by the stop-loss/take-profit sweep.",
		}, []string{"kind"}),
		PortfolioValue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trader_portfolio_value",
			Help: "Last observed total portfolio value.",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_session_duration_seconds",
			Help:    "Decision session duration.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}
