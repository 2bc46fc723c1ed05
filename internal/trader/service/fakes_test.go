package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang-ai-trader/internal/entity"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/internal/trader/repository"
	"golang-ai-trader/pkg/logger"
	"golang-ai-trader/pkg/metrics"
	"golang-ai-trader/pkg/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

func testLogger() *logger.Logger {
	log, err := logger.New("error", "console")
	if err != nil {
		panic(err)
	}
	return log
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

type fakeSentiment struct {
	name      string
	weight    float64
	sentiment float64
	strength  float64
	err       error
	delay     time.Duration
}

func (f *fakeSentiment) Name() string    { return f.name }
func (f *fakeSentiment) Weight() float64 { return f.weight }

func (f *fakeSentiment) GetSentiment(ctx context.Context, ticker string) (*dto.RawSentiment, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &dto.RawSentiment{Ticker: ticker, Sentiment: f.sentiment, Strength: f.strength}, nil
}

type fakeSignalRepo struct {
	mu      sync.Mutex
	signals []entity.TradingSignal
	err     error
}

func (f *fakeSignalRepo) Create(ctx context.Context, signal *entity.TradingSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.signals = append(f.signals, *signal)
	return nil
}

func (f *fakeSignalRepo) FindRecentByTicker(ctx context.Context, ticker string, limit int) ([]entity.TradingSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.TradingSignal
	for _, s := range f.signals {
		if s.Ticker == ticker {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSignalRepo) FindLatest(ctx context.Context, limit int) ([]entity.TradingSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signals, nil
}

type fakeBroker struct {
	mu           sync.Mutex
	balance      dto.BrokerBalance
	balanceErr   error
	prices       map[string]float64
	priceErr     error
	closes       map[string][]dto.DailyClose
	closesErr    error
	submitResp   *dto.SubmitOrderResponse
	submitErr    error
	submitted    []dto.SubmitOrderRequest
	statuses     map[string]*dto.BrokerOrderStatus
	statusErr    error
	cancelErr    error
	cancelledIDs []string
}

func (f *fakeBroker) SubmitOrder(ctx context.Context, req *dto.SubmitOrderRequest) (*dto.SubmitOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, *req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.submitResp != nil {
		return f.submitResp, nil
	}
	return &dto.SubmitOrderResponse{BrokerOrderID: "BRK-1", Status: "PENDING"}, nil
}

func (f *fakeBroker) GetOrderStatus(ctx context.Context, brokerOrderID string) (*dto.BrokerOrderStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	status, ok := f.statuses[brokerOrderID]
	if !ok {
		return nil, errors.New("order not found")
	}
	return status, nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	f.cancelledIDs = append(f.cancelledIDs, brokerOrderID)
	return f.cancelErr
}

func (f *fakeBroker) GetBalance(ctx context.Context) (*dto.BrokerBalance, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	balance := f.balance
	return &balance, nil
}

func (f *fakeBroker) GetPositions(ctx context.Context) ([]dto.BrokerPosition, error) {
	return nil, nil
}

func (f *fakeBroker) GetPrice(ctx context.Context, ticker string) (*dto.Quote, error) {
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	price, ok := f.prices[ticker]
	if !ok {
		return nil, errors.New("no quote for " + ticker)
	}
	return &dto.Quote{Ticker: ticker, Price: price, AsOf: time.Now()}, nil
}

func (f *fakeBroker) GetDailyCloses(ctx context.Context, ticker string, days int) ([]dto.DailyClose, error) {
	if f.closesErr != nil {
		return nil, f.closesErr
	}
	return f.closes[ticker], nil
}

type fakePositionRepo struct {
	mu        sync.Mutex
	positions map[string]*entity.Position
	err       error
}

func newFakePositionRepo() *fakePositionRepo {
	return &fakePositionRepo{positions: make(map[string]*entity.Position)}
}

func (f *fakePositionRepo) Upsert(ctx context.Context, position *entity.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	stored := *position
	f.positions[position.Ticker] = &stored
	return nil
}

func (f *fakePositionRepo) Delete(ctx context.Context, ticker string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.positions, ticker)
	return nil
}

func (f *fakePositionRepo) FindByTicker(ctx context.Context, ticker string) (*entity.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	position, ok := f.positions[ticker]
	if !ok {
		return nil, nil
	}
	copied := *position
	return &copied, nil
}

func (f *fakePositionRepo) FindAll(ctx context.Context) ([]entity.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []entity.Position
	for _, p := range f.positions {
		out = append(out, *p)
	}
	return out, nil
}

type fakeSnapshotRepo struct {
	mu       sync.Mutex
	saved    []entity.PortfolioSnapshot
	baseline *entity.PortfolioSnapshot
	err      error
}

func (f *fakeSnapshotRepo) Save(ctx context.Context, snapshot *entity.PortfolioSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *snapshot)
	return nil
}

func (f *fakeSnapshotRepo) FindByDay(ctx context.Context, day time.Time) (*entity.PortfolioSnapshot, error) {
	return nil, nil
}

func (f *fakeSnapshotRepo) FindLatestBefore(ctx context.Context, day time.Time) (*entity.PortfolioSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.baseline, nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*entity.Order
	err    error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*entity.Order)}
}

func (f *fakeOrderRepo) Create(ctx context.Context, order *entity.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	stored := *order
	f.orders[order.OrderNumber] = &stored
	return nil
}

func (f *fakeOrderRepo) Update(ctx context.Context, order *entity.Order) error {
	return f.Create(ctx, order)
}

func (f *fakeOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderNumber]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderRepo) FindActive(ctx context.Context) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Order
	for _, order := range f.orders {
		if order.IsActive() {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) FindActiveByTicker(ctx context.Context, ticker string) ([]entity.Order, error) {
	active, err := f.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	var out []entity.Order
	for _, order := range active {
		if order.Ticker == ticker {
			out = append(out, order)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) FindRecentFilled(ctx context.Context, limit int) ([]entity.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) FindHistory(ctx context.Context, ticker string, limit int) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Order
	for _, order := range f.orders {
		out = append(out, *order)
	}
	return out, nil
}

type fakeDecisionRepo struct {
	mu      sync.Mutex
	records []*entity.DecisionRecord
}

func (f *fakeDecisionRepo) Create(ctx context.Context, record *entity.DecisionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record.ID = int64(len(f.records) + 1)
	f.records = append(f.records, record)
	return nil
}

func (f *fakeDecisionRepo) Update(ctx context.Context, record *entity.DecisionRecord) error {
	return nil
}

func (f *fakeDecisionRepo) FindRecent(ctx context.Context, limit int) ([]entity.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.DecisionRecord
	for _, r := range f.records {
		out = append(out, *r)
	}
	return out, nil
}

type fakeTracker struct {
	state      *dto.PortfolioState
	stateErr   error
	positions  []entity.Position
	refreshErr error
	fills      []appliedFill
	fillErr    error
	snapshots  int
}

type appliedFill struct {
	ticker   string
	side     string
	quantity int64
	price    float64
}

func (f *fakeTracker) GetPortfolioState(ctx context.Context) (*dto.PortfolioState, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	return f.state, nil
}

func (f *fakeTracker) ApplyFill(ctx context.Context, order *entity.Order, fillQuantity int64, fillPrice float64) error {
	if f.fillErr != nil {
		return f.fillErr
	}
	f.fills = append(f.fills, appliedFill{ticker: order.Ticker, side: order.Side, quantity: fillQuantity, price: fillPrice})
	return nil
}

func (f *fakeTracker) RefreshPrices(ctx context.Context) ([]entity.Position, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.positions, nil
}

func (f *fakeTracker) TakeSnapshot(ctx context.Context) (*entity.PortfolioSnapshot, error) {
	f.snapshots++
	return &entity.PortfolioSnapshot{}, nil
}

type fakeRisk struct {
	evalErr    error
	evaluated  []dto.TradeIntent
	tripped    bool
	dailyPct   float64
	breakerErr error
	sizing     *dto.PositionSizing
	exits      []dto.TriggeredExit
	exitsErr   error
}

func (f *fakeRisk) EvaluateTrade(ctx context.Context, intent *dto.TradeIntent) error {
	f.evaluated = append(f.evaluated, *intent)
	return f.evalErr
}

func (f *fakeRisk) CircuitBreakerTripped(ctx context.Context) (bool, float64, error) {
	return f.tripped, f.dailyPct, f.breakerErr
}

func (f *fakeRisk) CalculatePositionSize(ctx context.Context, ticker string, confidence, price float64) (*dto.PositionSizing, error) {
	return f.sizing, nil
}

func (f *fakeRisk) CheckExitTriggers(ctx context.Context) ([]dto.TriggeredExit, error) {
	return f.exits, f.exitsErr
}

// fakeNotifier records the rendered message for each typed notification so
// tests can assert on the operator-visible text.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) record(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return f.err
}

func (f *fakeNotifier) NotifyCircuitBreaker(at time.Time, dailyPnLPct, limitPct float64) error {
	return f.record(telegram.FormatCircuitBreakerMessage(at, dailyPnLPct, limitPct))
}

func (f *fakeNotifier) NotifyAutoExit(kind, ticker string, quantity int64, triggerPrice, currentPrice float64, orderNumber string) error {
	return f.record(telegram.FormatAutoExitMessage(kind, ticker, quantity, triggerPrice, currentPrice, orderNumber))
}

func (f *fakeNotifier) NotifySessionSummary(sessionType string, executedTrades, toolCalls int, confidence float64, duration time.Duration) error {
	return f.record(telegram.FormatSessionSummaryMessage(sessionType, executedTrades, toolCalls, confidence, duration))
}

func (f *fakeNotifier) NotifyError(errType, errMessage, data string) error {
	return f.record(telegram.FormatErrorAlertMessage(time.Now(), errType, errMessage, data))
}

// fakeSession scripts the model's turns: each call to SendText or
// SendToolResults pops the next turn.
type fakeSession struct {
	turns     []*repository.ModelTurn
	index     int
	sendErr   error
	received  [][]repository.ToolResult
	initTexts []string
}

func (f *fakeSession) next() (*repository.ModelTurn, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.index >= len(f.turns) {
		return &repository.ModelTurn{Text: `{"summary": "done", "confidence": 0.5}`}, nil
	}
	turn := f.turns[f.index]
	f.index++
	return turn, nil
}

func (f *fakeSession) SendText(ctx context.Context, text string) (*repository.ModelTurn, error) {
	f.initTexts = append(f.initTexts, text)
	return f.next()
}

func (f *fakeSession) SendToolResults(ctx context.Context, results []repository.ToolResult) (*repository.ModelTurn, error) {
	f.received = append(f.received, results)
	return f.next()
}

type fakeReasoning struct {
	session *fakeSession
	err     error
}

func (f *fakeReasoning) NewSession(ctx context.Context, systemInstruction string) (repository.ReasoningSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeOrders struct {
	submitted []dto.TradeIntent
	submitErr error
	order     *entity.Order
	history   []entity.Order
}

func (f *fakeOrders) SubmitOrder(ctx context.Context, intent *dto.TradeIntent) (*entity.Order, error) {
	f.submitted = append(f.submitted, *intent)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.order != nil {
		return f.order, nil
	}
	return &entity.Order{
		OrderNumber: "ORD-TEST",
		Ticker:      intent.Ticker,
		Side:        intent.Side,
		Quantity:    intent.Quantity,
		Status:      entity.OrderStatusPending,
	}, nil
}

func (f *fakeOrders) CancelOrder(ctx context.Context, orderNumber string) (*entity.Order, error) {
	return nil, nil
}

func (f *fakeOrders) Reconcile(ctx context.Context) error { return nil }

func (f *fakeOrders) SweepExits(ctx context.Context) ([]entity.Order, error) { return nil, nil }

func (f *fakeOrders) ActiveOrders(ctx context.Context) ([]entity.Order, error) { return nil, nil }

func (f *fakeOrders) OrderHistory(ctx context.Context, ticker string, limit int) ([]entity.Order, error) {
	return f.history, nil
}

type fakeAggregator struct {
	signal *dto.AggregatedSignal
	err    error
}

func (f *fakeAggregator) Aggregate(ctx context.Context, ticker string) (*dto.AggregatedSignal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.signal, nil
}

func (f *fakeAggregator) RecentSignals(ctx context.Context, ticker string, limit int) ([]entity.TradingSignal, error) {
	return nil, nil
}
