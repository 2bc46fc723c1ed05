package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang-ai-trader/internal/entity"
	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/internal/trader/repository"
	"golang-ai-trader/pkg/logger"
)

// minObservations is the fewest daily closes per ticker accepted for
// estimating returns and covariance.
const minObservations = 20

// OptimizerService computes mean-variance portfolios over daily return
// history.
type OptimizerService interface {
	Optimize(ctx context.Context, tickers []string, objective string) (*dto.OptimizationResult, error)
	EfficientFrontier(ctx context.Context, tickers []string) ([]dto.FrontierPoint, error)
	RebalancePlan(ctx context.Context, tickers []string, objective string) ([]dto.RebalanceAction, *dto.OptimizationResult, error)
}

type optimizerService struct {
	cfg     *config.Optimizer
	logger  *logger.Logger
	broker  repository.BrokerRepository
	tracker PositionTrackerService
}

func NewOptimizerService(
	cfg *config.Optimizer,
	log *logger.Logger,
	broker repository.BrokerRepository,
	tracker PositionTrackerService,
) OptimizerService {
	return &optimizerService{
		cfg:     cfg,
		logger:  log,
		broker:  broker,
		tracker: tracker,
	}
}

// Optimize solves for portfolio weights on the simplex (fully invested, no
// shorting) under the given objective.
func (s *optimizerService) Optimize(ctx context.Context, tickers []string, objective string) (*dto.OptimizationResult, error) {
	mu, cov, err := s.estimate(ctx, tickers)
	if err != nil {
		return nil, err
	}

	var loss func(w []float64) float64
	switch objective {
	case dto.ObjectiveSharpe, "":
		objective = dto.ObjectiveSharpe
		loss = func(w []float64) float64 {
			ret := dot(w, mu)
			vol := math.Sqrt(quadForm(w, cov))
			if vol == 0 {
				return math.Inf(1)
			}
			return -(ret - s.cfg.RiskFreeRate) / vol
		}
	case dto.ObjectiveMinVariance:
		loss = func(w []float64) float64 {
			return quadForm(w, cov)
		}
	case dto.ObjectiveMaxReturn:
		loss = func(w []float64) float64 {
			return -dot(w, mu)
		}
	default:
		return nil, &dto.ValidationError{Field: "objective", Message: fmt.Sprintf("unknown objective %q", objective)}
	}

	weights := minimizeOnSimplex(loss, len(tickers))
	return s.buildResult(objective, tickers, weights, mu, cov), nil
}

// EfficientFrontier sweeps target returns between the lowest and highest
// asset return, minimizing variance at each target.
func (s *optimizerService) EfficientFrontier(ctx context.Context, tickers []string) ([]dto.FrontierPoint, error) {
	mu, cov, err := s.estimate(ctx, tickers)
	if err != nil {
		return nil, err
	}

	low, high := mu[0], mu[0]
	for _, m := range mu {
		low = math.Min(low, m)
		high = math.Max(high, m)
	}

	points := make([]dto.FrontierPoint, 0, s.cfg.FrontierPoints)
	for i := 0; i < s.cfg.FrontierPoints; i++ {
		target := low
		if s.cfg.FrontierPoints > 1 {
			target = low + (high-low)*float64(i)/float64(s.cfg.FrontierPoints-1)
		}
		// The return constraint enters as a quadratic penalty so the
		// same simplex solver covers the constrained problem.
		const penalty = 10.0
		loss := func(w []float64) float64 {
			diff := dot(w, mu) - target
			return quadForm(w, cov) + penalty*diff*diff
		}
		weights := minimizeOnSimplex(loss, len(tickers))
		points = append(points, dto.FrontierPoint{
			TargetReturn: target,
			Volatility:   math.Sqrt(quadForm(weights, cov)),
			Weights:      weightMap(tickers, weights),
		})
	}
	return points, nil
}

// RebalancePlan compares current portfolio weights against the optimized
// target and emits trades for tickers drifted beyond the tolerance.
func (s *optimizerService) RebalancePlan(ctx context.Context, tickers []string, objective string) ([]dto.RebalanceAction, *dto.OptimizationResult, error) {
	result, err := s.Optimize(ctx, tickers, objective)
	if err != nil {
		return nil, nil, err
	}
	state, err := s.tracker.GetPortfolioState(ctx)
	if err != nil {
		return nil, nil, err
	}
	if state.TotalValue <= 0 {
		return nil, result, nil
	}

	currentWeights := make(map[string]float64, len(state.Positions))
	for _, p := range state.Positions {
		currentWeights[p.Ticker] = p.MarketValue / state.TotalValue
	}

	var actions []dto.RebalanceAction
	for _, ticker := range tickers {
		target := result.Weights[ticker]
		current := currentWeights[ticker]
		drift := target - current
		if math.Abs(drift) <= s.cfg.RebalanceTolerance {
			continue
		}
		quote, err := s.broker.GetPrice(ctx, ticker)
		if err != nil {
			return nil, nil, err
		}
		quantity := int64(math.Floor(math.Abs(drift) * state.TotalValue / quote.Price))
		if quantity == 0 {
			continue
		}
		side := entity.OrderSideBuy
		if drift < 0 {
			side = entity.OrderSideSell
		}
		actions = append(actions, dto.RebalanceAction{
			Ticker:        ticker,
			Side:          side,
			Quantity:      quantity,
			CurrentWeight: current,
			TargetWeight:  target,
		})
	}

	// Sells first so the buys are funded.
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Side == entity.OrderSideSell && actions[j].Side == entity.OrderSideBuy
	})
	return actions, result, nil
}

// estimate builds annualized mean returns and the covariance matrix from
// daily closes. Series are truncated to the shortest common length.
func (s *optimizerService) estimate(ctx context.Context, tickers []string) ([]float64, [][]float64, error) {
	if len(tickers) < 2 {
		return nil, nil, &dto.ValidationError{Field: "tickers", Message: "need at least two tickers"}
	}

	series := make([][]float64, len(tickers))
	shortest := math.MaxInt
	for i, ticker := range tickers {
		closes, err := s.broker.GetDailyCloses(ctx, ticker, s.cfg.LookbackDays)
		if err != nil {
			return nil, nil, err
		}
		if len(closes) < minObservations {
			return nil, nil, &dto.InsufficientDataError{What: "daily closes for " + ticker, Need: minObservations, Got: len(closes)}
		}
		returns := make([]float64, 0, len(closes)-1)
		for j := 1; j < len(closes); j++ {
			if closes[j-1].Close == 0 {
				continue
			}
			returns = append(returns, closes[j].Close/closes[j-1].Close-1)
		}
		series[i] = returns
		if len(returns) < shortest {
			shortest = len(returns)
		}
	}
	for i := range series {
		series[i] = series[i][len(series[i])-shortest:]
	}

	annual := float64(s.cfg.TradingDaysPerYear)
	mu := make([]float64, len(tickers))
	for i, returns := range series {
		mu[i] = mean(returns) * annual
	}

	cov := make([][]float64, len(tickers))
	degenerate := true
	for i := range tickers {
		cov[i] = make([]float64, len(tickers))
		for j := range tickers {
			cov[i][j] = covariance(series[i], series[j]) * annual
		}
		if cov[i][i] > 0 {
			degenerate = false
		}
	}
	if degenerate {
		return nil, nil, fmt.Errorf("degenerate covariance matrix: no asset shows price variance")
	}
	return mu, cov, nil
}

func (s *optimizerService) buildResult(objective string, tickers []string, weights, mu []float64, cov [][]float64) *dto.OptimizationResult {
	ret := dot(weights, mu)
	vol := math.Sqrt(quadForm(weights, cov))
	sharpe := 0.0
	if vol > 0 {
		sharpe = (ret - s.cfg.RiskFreeRate) / vol
	}
	return &dto.OptimizationResult{
		Objective:      objective,
		Weights:        weightMap(tickers, weights),
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    sharpe,
	}
}

// minimizeOnSimplex runs projected gradient descent from the uniform
// portfolio, with numerical gradients and Euclidean projection back onto
// the simplex after every step.
func minimizeOnSimplex(loss func([]float64) float64, n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1 / float64(n)
	}

	const (
		iterations = 2000
		step       = 0.01
		h          = 1e-6
	)
	grad := make([]float64, n)
	probe := make([]float64, n)
	for iter := 0; iter < iterations; iter++ {
		base := loss(weights)
		for i := range weights {
			copy(probe, weights)
			probe[i] += h
			grad[i] = (loss(probe) - base) / h
		}
		for i := range weights {
			weights[i] -= step * grad[i]
		}
		projectOntoSimplex(weights)
	}
	return weights
}

// projectOntoSimplex maps v in place to the nearest point with non-negative
// entries summing to one.
func projectOntoSimplex(v []float64) {
	n := len(v)
	sorted := make([]float64, n)
	copy(sorted, v)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	cumulative := 0.0
	rho := -1
	var theta float64
	for i := 0; i < n; i++ {
		cumulative += sorted[i]
		t := (cumulative - 1) / float64(i+1)
		if sorted[i]-t > 0 {
			rho = i
			theta = t
		}
	}
	if rho < 0 {
		for i := range v {
			v[i] = 1 / float64(n)
		}
		return
	}
	for i := range v {
		v[i] = math.Max(0, v[i]-theta)
	}
}

func weightMap(tickers []string, weights []float64) map[string]float64 {
	m := make(map[string]float64, len(tickers))
	for i, ticker := range tickers {
		m[ticker] = weights[i]
	}
	return m
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func quadForm(w []float64, cov [][]float64) float64 {
	var sum float64
	for i := range w {
		for j := range w {
			sum += w[i] * cov[i][j] * w[j]
		}
	}
	return sum
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func covariance(a, b []float64) float64 {
	ma, mb := mean(a), mean(b)
	var sum float64
	for i := range a {
		sum += (a[i] - ma) * (b[i] - mb)
	}
	if len(a) < 2 {
		return 0
	}
	return sum / float64(len(a)-1)
}
