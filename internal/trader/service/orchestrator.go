package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang-ai-trader/internal/entity"
	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/internal/trader/repository"
	"golang-ai-trader/pkg/common"
	"golang-ai-trader/pkg/logger"
	"golang-ai-trader/pkg/metrics"
	"golang-ai-trader/pkg/redis"
	"golang-ai-trader/pkg/telegram"
)

// sessionFlagTTL bounds how long a crashed session can block its type.
const sessionFlagTTL = 15 * time.Minute

// OrchestratorService runs decision sessions: it hands the model the
// trading tools and loops over its tool calls until the model concludes or
// the iteration cap is hit.
type OrchestratorService interface {
	RunSession(ctx context.Context, sessionType string) (*entity.DecisionRecord, error)
	RecentDecisions(ctx context.Context, limit int) ([]entity.DecisionRecord, error)
}

type orchestratorService struct {
	cfg          *config.Config
	logger       *logger.Logger
	reasoning    repository.ReasoningRepository
	decisionRepo repository.DecisionRepository
	broker       repository.BrokerRepository
	aggregator   SignalAggregatorService
	risk         RiskManagerService
	tracker      PositionTrackerService
	orders       OrderManagerService
	redis        *redis.Client
	notifier     telegram.Notifier
	metrics      *metrics.Metrics
}

func NewOrchestratorService(
	cfg *config.Config,
	log *logger.Logger,
	reasoning repository.ReasoningRepository,
	decisionRepo repository.DecisionRepository,
	broker repository.BrokerRepository,
	aggregator SignalAggregatorService,
	risk RiskManagerService,
	tracker PositionTrackerService,
	orders OrderManagerService,
	redisClient *redis.Client,
	notifier telegram.Notifier,
	m *metrics.Metrics,
) OrchestratorService {
	return &orchestratorService{
		cfg:          cfg,
		logger:       log,
		reasoning:    reasoning,
		decisionRepo: decisionRepo,
		broker:       broker,
		aggregator:   aggregator,
		risk:         risk,
		tracker:      tracker,
		orders:       orders,
		redis:        redisClient,
		notifier:     notifier,
		metrics:      m,
	}
}

// RunSession executes one decision session of the given type. Only one
// session per type runs at a time; the running flag lives in redis so
// concurrent schedulers and on-demand triggers see the same state.
func (s *orchestratorService) RunSession(ctx context.Context, sessionType string) (*entity.DecisionRecord, error) {
	if !common.IsValidSessionType(sessionType) {
		return nil, &dto.ValidationError{Field: "session_type", Message: fmt.Sprintf("unknown session type %q", sessionType)}
	}

	flagKey := common.RedisKeySessionRunning + ":" + sessionType
	acquired, err := s.redis.Client.SetNX(ctx, flagKey, time.Now().Format(time.RFC3339), sessionFlagTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to set session flag: %w", err)
	}
	if !acquired {
		return nil, dto.ErrSessionInProgress
	}
	defer func() {
		if err := s.redis.Client.Del(context.WithoutCancel(ctx), flagKey).Err(); err != nil {
			s.logger.Warn("Failed to clear session flag", logger.StringField("session_type", sessionType), logger.ErrorField(err))
		}
	}()

	record := &entity.DecisionRecord{
		SessionType: sessionType,
		Outcome:     entity.DecisionOutcomeRunning,
		StartedAt:   time.Now(),
	}
	if err := s.decisionRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create decision record: %w", err)
	}

	runErr := s.runLoop(ctx, sessionType, record)
	record.FinishedAt = time.Now()
	if err := s.decisionRepo.Update(ctx, record); err != nil {
		s.logger.Error("Failed to persist decision record", logger.ErrorField(err))
	}

	duration := record.FinishedAt.Sub(record.StartedAt)
	s.metrics.SessionsTotal.WithLabelValues(sessionType, record.Outcome).Inc()
	s.metrics.SessionDuration.Observe(duration.Seconds())

	if record.Outcome == entity.DecisionOutcomeCompleted {
		if err := s.notifier.NotifySessionSummary(sessionType, countTrades(record), record.Iterations, record.Confidence, duration); err != nil {
			s.logger.Warn("Failed to send session summary", logger.ErrorField(err))
		}
	}
	return record, runErr
}

func (s *orchestratorService) runLoop(ctx context.Context, sessionType string, record *entity.DecisionRecord) error {
	// A session that reached the model may have traded, so refresh the
	// daily snapshot on the way out whatever the outcome.
	defer func() {
		if record.Iterations == 0 {
			return
		}
		if _, err := s.tracker.TakeSnapshot(ctx); err != nil {
			s.logger.Warn("Failed to take post-session snapshot", logger.ErrorField(err))
		}
	}()

	tripped, dailyPnLPct, err := s.risk.CircuitBreakerTripped(ctx)
	if err != nil {
		record.Outcome = entity.DecisionOutcomeFailed
		record.Error = err.Error()
		return err
	}
	if tripped {
		record.Outcome = entity.DecisionOutcomeAborted
		record.Summary = fmt.Sprintf("circuit breaker active at %.2f%% daily loss", dailyPnLPct)
		if err := s.notifier.NotifyCircuitBreaker(time.Now(), dailyPnLPct, s.cfg.Risk.DailyLossLimitPct); err != nil {
			s.logger.Warn("Failed to send circuit breaker alert", logger.ErrorField(err))
		}
		return nil
	}

	state, err := s.tracker.GetPortfolioState(ctx)
	if err != nil {
		record.Outcome = entity.DecisionOutcomeFailed
		record.Error = err.Error()
		return err
	}
	signals := s.gatherSignals(ctx)
	persistSessionInputs(record, state, signals)

	session, err := s.reasoning.NewSession(ctx, systemInstruction())
	if err != nil {
		record.Outcome = entity.DecisionOutcomeFailed
		record.Error = err.Error()
		return err
	}

	var (
		toolCalls  []dto.ToolCallRecord
		trades     []dto.ExecutedTrade
		transcript []string
	)
	turn, err := session.SendText(ctx, sessionPrompt(sessionType, s.cfg.Trading.Watchlist)+sessionContext(state, signals))
	if err != nil {
		record.Outcome = entity.DecisionOutcomeFailed
		record.Error = err.Error()
		return err
	}

	for iteration := 1; ; iteration++ {
		record.Iterations = iteration
		if text := strings.TrimSpace(turn.Text); text != "" {
			transcript = append(transcript, text)
		}
		if len(turn.Calls) == 0 {
			record.Outcome = entity.DecisionOutcomeCompleted
			record.Summary, record.Confidence = parseConclusion(turn.Text)
			break
		}
		if iteration > s.cfg.Gemini.MaxIterations {
			record.Outcome = entity.DecisionOutcomeInconclusive
			record.Error = dto.ErrInconclusiveDecision.Error()
			s.persistLoopState(record, toolCalls, trades, transcript)
			return dto.ErrInconclusiveDecision
		}

		results := make([]repository.ToolResult, 0, len(turn.Calls))
		for _, call := range turn.Calls {
			callRecord := dto.ToolCallRecord{
				Tool:      call.Name,
				Args:      call.Args,
				StartedAt: time.Now(),
			}
			response, dispatchErr := s.dispatch(ctx, call, &callRecord, &trades)
			callRecord.Duration = time.Since(callRecord.StartedAt)
			toolCalls = append(toolCalls, callRecord)
			s.metrics.ToolCallsTotal.WithLabelValues(call.Name).Inc()
			results = append(results, repository.ToolResult{Name: call.Name, Response: response})

			var denial *dto.RiskDeniedError
			if errors.As(dispatchErr, &denial) && denial.Rule == dto.RiskRuleCircuitBreaker {
				record.Outcome = entity.DecisionOutcomeAborted
				record.Summary = "session aborted: circuit breaker tripped mid-session"
				s.persistLoopState(record, toolCalls, trades, transcript)
				return nil
			}
		}

		turn, err = session.SendToolResults(ctx, results)
		if err != nil {
			record.Outcome = entity.DecisionOutcomeFailed
			record.Error = err.Error()
			s.persistLoopState(record, toolCalls, trades, transcript)
			return err
		}
	}

	s.persistLoopState(record, toolCalls, trades, transcript)
	return nil
}

// gatherSignals aggregates the watchlist ahead of the session so the model
// opens with the signal picture. A source failure drops that ticker from
// the context; the model can still request it by tool call.
func (s *orchestratorService) gatherSignals(ctx context.Context) []dto.AggregatedSignal {
	signals := make([]dto.AggregatedSignal, 0, len(s.cfg.Trading.Watchlist))
	for _, ticker := range s.cfg.Trading.Watchlist {
		signal, err := s.aggregator.Aggregate(ctx, ticker)
		if err != nil {
			s.logger.Warn("Skipping signal for session context",
				logger.StringField("ticker", ticker),
				logger.ErrorField(err),
			)
			continue
		}
		signals = append(signals, *signal)
	}
	return signals
}

// dispatch routes one typed tool request to its service. Failures come back
// as structured tool responses so the model can react instead of the
// session dying; the raw error is returned alongside so the loop can
// inspect its type.
func (s *orchestratorService) dispatch(ctx context.Context, call repository.ToolInvocation, callRecord *dto.ToolCallRecord, trades *[]dto.ExecutedTrade) (map[string]any, error) {
	if call.Err != nil {
		callRecord.Error = call.Err.Error()
		return failureResponse(call.Err), call.Err
	}

	var (
		result any
		err    error
	)
	switch req := call.Request.(type) {
	case dto.CheckBalanceRequest:
		result, err = s.broker.GetBalance(ctx)
	case dto.GetPriceRequest:
		result, err = s.broker.GetPrice(ctx, req.Ticker)
	case dto.PortfolioStatusRequest:
		result, err = s.tracker.GetPortfolioState(ctx)
	case dto.ExecuteTradeRequest:
		result, err = s.executeTrade(ctx, req, trades)
	case dto.AnalyzeSignalsRequest:
		result, err = s.aggregator.Aggregate(ctx, req.Ticker)
	case dto.PositionSizeRequest:
		result, err = s.calculateSize(ctx, req)
	case dto.StopLossCheckRequest:
		result, err = s.risk.CheckExitTriggers(ctx)
	case dto.TradeHistoryRequest:
		result, err = s.orders.OrderHistory(ctx, "", req.Limit)
	default:
		err = fmt.Errorf("unhandled tool request %T", call.Request)
	}

	if err != nil {
		callRecord.Error = err.Error()
		return failureResponse(err), err
	}
	callRecord.Result = result
	return successResponse(result), nil
}

func (s *orchestratorService) executeTrade(ctx context.Context, req dto.ExecuteTradeRequest, trades *[]dto.ExecutedTrade) (any, error) {
	price := req.Price
	if price == 0 {
		quote, err := s.broker.GetPrice(ctx, req.Ticker)
		if err != nil {
			return nil, err
		}
		price = quote.Price
	}

	order, err := s.orders.SubmitOrder(ctx, &dto.TradeIntent{
		Ticker:   req.Ticker,
		Side:     strings.ToUpper(req.Side),
		Quantity: req.Quantity,
		Price:    price,
		Reason:   req.Reason,
	})
	if err != nil {
		return nil, err
	}

	*trades = append(*trades, dto.ExecutedTrade{
		OrderNumber: order.OrderNumber,
		Ticker:      order.Ticker,
		Side:        order.Side,
		Quantity:    order.Quantity,
		Price:       price,
		Reason:      order.Reason,
	})
	return order, nil
}

func (s *orchestratorService) calculateSize(ctx context.Context, req dto.PositionSizeRequest) (any, error) {
	quote, err := s.broker.GetPrice(ctx, req.Ticker)
	if err != nil {
		return nil, err
	}
	return s.risk.CalculatePositionSize(ctx, req.Ticker, req.Confidence, quote.Price)
}

func (s *orchestratorService) persistLoopState(record *entity.DecisionRecord, toolCalls []dto.ToolCallRecord, trades []dto.ExecutedTrade, transcript []string) {
	if payload, err := json.Marshal(toolCalls); err == nil {
		record.ToolCalls = payload
	}
	if payload, err := json.Marshal(trades); err == nil {
		record.ExecutedTrades = payload
	}
	record.Reasoning = strings.Join(transcript, "\n\n")
}

// persistSessionInputs stores the portfolio state and signals handed to the
// model so the decision record shows what it decided from.
func persistSessionInputs(record *entity.DecisionRecord, state *dto.PortfolioState, signals []dto.AggregatedSignal) {
	if payload, err := json.Marshal(state); err == nil {
		record.PortfolioState = payload
	}
	if payload, err := json.Marshal(signals); err == nil {
		record.SignalsUsed = payload
	}
}

func (s *orchestratorService) RecentDecisions(ctx context.Context, limit int) ([]entity.DecisionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.decisionRepo.FindRecent(ctx, limit)
}

func successResponse(result any) map[string]any {
	response := map[string]any{"success": true}
	payload, err := json.Marshal(result)
	if err != nil {
		response["result"] = fmt.Sprintf("%v", result)
		return response
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err == nil {
		response["result"] = decoded
	}
	return response
}

func failureResponse(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}

// parseConclusion extracts a summary and confidence from the final model
// text. A JSON conclusion is preferred; plain text becomes the summary with
// zero confidence.
func parseConclusion(text string) (string, float64) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var conclusion struct {
		Summary    string  `json:"summary"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(trimmed), &conclusion); err == nil && conclusion.Summary != "" {
		return conclusion.Summary, conclusion.Confidence
	}
	return text, 0
}

func countTrades(record *entity.DecisionRecord) int {
	var trades []dto.ExecutedTrade
	if err := json.Unmarshal(record.ExecutedTrades, &trades); err != nil {
		return 0
	}
	return len(trades)
}

func systemInstruction() string {
	return strings.TrimSpace(`
You are an automated equity trading assistant managing a real portfolio.
Use the provided tools to inspect the portfolio, analyze signals, size
positions, and execute trades. Every trade passes risk checks and may be
denied; treat a denial as final for this session. When you are done,
reply without any tool call, as JSON: {"summary": "...", "confidence": 0.0-1.0}.
`)
}

// sessionContext renders the gathered portfolio state and signals into the
// opening prompt so the model starts from current data instead of
// rediscovering it call by call.
func sessionContext(state *dto.PortfolioState, signals []dto.AggregatedSignal) string {
	var sb strings.Builder
	if payload, err := json.Marshal(state); err == nil {
		sb.WriteString("\n\nCurrent portfolio state:\n")
		sb.Write(payload)
	}
	if payload, err := json.Marshal(signals); err == nil {
		sb.WriteString("\n\nAggregated signals for the watchlist:\n")
		sb.Write(payload)
	}
	return sb.String()
}

func sessionPrompt(sessionType string, watchlist []string) string {
	tickers := strings.Join(watchlist, ", ")
	switch sessionType {
	case common.SessionPreSession:
		return fmt.Sprintf("Pre-market session. Review the portfolio and overnight signals for: %s. Decide position changes before the open.", tickers)
	case common.SessionMidSession:
		return fmt.Sprintf("Mid-day session. Check open positions, stop-loss triggers, and intraday signals for: %s. Adjust only where the signal is clear.", tickers)
	case common.SessionPreClose:
		return fmt.Sprintf("Pre-close session. Review today's fills and position risk for: %s. Close or trim positions you do not want to hold overnight.", tickers)
	default:
		return fmt.Sprintf("On-demand review. Evaluate the portfolio and signals for: %s. Recommend and execute any justified trades.", tickers)
	}
}
