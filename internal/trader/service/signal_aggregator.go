package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang-ai-trader/internal/entity"
	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/internal/trader/repository"
	"golang-ai-trader/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

// SignalAggregatorService combines sentiment from all configured sources
// into one recommendation per ticker.
type SignalAggregatorService interface {
	Aggregate(ctx context.Context, ticker string) (*dto.AggregatedSignal, error)
	RecentSignals(ctx context.Context, ticker string, limit int) ([]entity.TradingSignal, error)
}

type signalAggregatorService struct {
	cfg        *config.Signals
	logger     *logger.Logger
	sources    []repository.SentimentRepository
	signalRepo repository.SignalRepository
	cache      *gocache.Cache
}

func NewSignalAggregatorService(
	cfg *config.Signals,
	log *logger.Logger,
	sources []repository.SentimentRepository,
	signalRepo repository.SignalRepository,
) SignalAggregatorService {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}
	return &signalAggregatorService{
		cfg:        cfg,
		logger:     log,
		sources:    sources,
		signalRepo: signalRepo,
		cache:      gocache.New(cacheTTL, 2*cacheTTL),
	}
}

type sourceResult struct {
	index     int
	sentiment *dto.RawSentiment
	err       error
}

// Aggregate fans out to every source concurrently, each with its own
// timeout, and combines whatever came back. With renormalize_weights on
// (the default) missing sources drop out and the remaining weights are
// rescaled; with it off, missing sources count as neutral against the full
// weight total. All sources failing is an error either way.
func (s *signalAggregatorService) Aggregate(ctx context.Context, ticker string) (*dto.AggregatedSignal, error) {
	if cached, ok := s.cache.Get(ticker); ok {
		return cached.(*dto.AggregatedSignal), nil
	}

	results := make(chan sourceResult, len(s.sources))
	var wg sync.WaitGroup
	for i, source := range s.sources {
		wg.Add(1)
		go func(idx int, src repository.SentimentRepository) {
			defer wg.Done()
			srcCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
			sentiment, err := src.GetSentiment(srcCtx, ticker)
			results <- sourceResult{index: idx, sentiment: sentiment, err: err}
		}(i, source)
	}
	wg.Wait()
	close(results)

	// Re-ordered by source index so the composite is deterministic
	// regardless of which goroutine finished first.
	byIndex := make([]sourceResult, len(s.sources))
	for result := range results {
		byIndex[result.index] = result
	}

	signal, err := s.combine(ticker, byIndex)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, signal); err != nil {
		s.logger.Warn("Failed to persist signal", logger.StringField("ticker", ticker), logger.ErrorField(err))
	}
	s.cache.Set(ticker, signal, gocache.DefaultExpiration)
	return signal, nil
}

func (s *signalAggregatorService) combine(ticker string, results []sourceResult) (*dto.AggregatedSignal, error) {
	signal := &dto.AggregatedSignal{
		Ticker:      ticker,
		GeneratedAt: time.Now(),
	}

	var weightedSentiment, weightedStrength, availableWeight, totalWeight float64
	for i, result := range results {
		source := s.sources[i]
		totalWeight += source.Weight()
		if result.err != nil {
			s.logger.Warn("Sentiment source failed",
				logger.StringField("source", source.Name()),
				logger.StringField("ticker", ticker),
				logger.ErrorField(result.err),
			)
			signal.MissingSources = append(signal.MissingSources, source.Name())
			continue
		}
		weightedSentiment += source.Weight() * result.sentiment.Sentiment
		weightedStrength += source.Weight() * result.sentiment.Strength
		availableWeight += source.Weight()
		signal.Sources = append(signal.Sources, dto.SourceScore{
			Source:    source.Name(),
			Sentiment: result.sentiment.Sentiment,
			Strength:  result.sentiment.Strength,
			Weight:    source.Weight(),
		})
	}

	if availableWeight == 0 {
		return nil, &dto.ExternalServiceError{
			Service: "signal-sources",
			Err:     fmt.Errorf("all %d sentiment sources failed for %s", len(s.sources), ticker),
		}
	}

	divisor := availableWeight
	if !s.cfg.RenormalizeWeights {
		divisor = totalWeight
	}
	signal.Sentiment = weightedSentiment / divisor
	signal.Strength = weightedStrength / divisor
	signal.Recommendation = classify(signal.Sentiment, signal.Strength)
	return signal, nil
}

// classify maps a composite sentiment and strength onto the five
// recommendation classes. Weak strength always holds.
func classify(sentiment, strength float64) string {
	if strength < 0.3 {
		return entity.RecommendationHold
	}
	switch {
	case sentiment > 0.6:
		if strength > 0.7 {
			return entity.RecommendationStrongBuy
		}
		return entity.RecommendationBuy
	case sentiment > 0.2:
		if strength > 0.6 {
			return entity.RecommendationBuy
		}
		return entity.RecommendationHold
	case sentiment < -0.6:
		if strength > 0.7 {
			return entity.RecommendationStrongSell
		}
		return entity.RecommendationSell
	case sentiment < -0.2:
		if strength > 0.6 {
			return entity.RecommendationSell
		}
		return entity.RecommendationHold
	default:
		return entity.RecommendationHold
	}
}

func (s *signalAggregatorService) persist(ctx context.Context, signal *dto.AggregatedSignal) error {
	scores, err := json.Marshal(signal.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal source scores: %w", err)
	}
	return s.signalRepo.Create(ctx, &entity.TradingSignal{
		Ticker:         signal.Ticker,
		Sentiment:      signal.Sentiment,
		Strength:       signal.Strength,
		Recommendation: signal.Recommendation,
		SourceScores:   scores,
		MissingSources: signal.MissingSources,
	})
}

func (s *signalAggregatorService) RecentSignals(ctx context.Context, ticker string, limit int) ([]entity.TradingSignal, error) {
	return s.signalRepo.FindRecentByTicker(ctx, ticker, limit)
}
