package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/pkg/logger"
)

// SentimentRepository fetches sentiment for one ticker from one source.
type SentimentRepository interface {
	Name() string
	Weight() float64
	GetSentiment(ctx context.Context, ticker string) (*dto.RawSentiment, error)
}

// httpSentimentRepository covers the news, social, and analyst sources,
// which share the same JSON response shape and differ only in endpoint and
// weight.
type httpSentimentRepository struct {
	client *http.Client
	cfg    config.SignalSource
	logger *logger.Logger
}

func NewSentimentRepository(cfg config.SignalSource, timeoutClient *http.Client, log *logger.Logger) SentimentRepository {
	return &httpSentimentRepository{
		client: timeoutClient,
		cfg:    cfg,
		logger: log,
	}
}

func (r *httpSentimentRepository) Name() string {
	return r.cfg.Name
}

func (r *httpSentimentRepository) Weight() float64 {
	return r.cfg.Weight
}

func (r *httpSentimentRepository) GetSentiment(ctx context.Context, ticker string) (*dto.RawSentiment, error) {
	endpoint := fmt.Sprintf("%s/v1/sentiment/%s", r.cfg.BaseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &dto.ExternalServiceError{Service: r.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &dto.ExternalServiceError{
			Service: r.cfg.Name,
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var sentiment dto.RawSentiment
	if err := json.NewDecoder(resp.Body).Decode(&sentiment); err != nil {
		return nil, &dto.ExternalServiceError{Service: r.cfg.Name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if sentiment.Sentiment < -1 || sentiment.Sentiment > 1 {
		return nil, &dto.ExternalServiceError{
			Service: r.cfg.Name,
			Err:     fmt.Errorf("sentiment %.3f out of range [-1, 1]", sentiment.Sentiment),
		}
	}
	if sentiment.Strength < 0 || sentiment.Strength > 1 {
		return nil, &dto.ExternalServiceError{
			Service: r.cfg.Name,
			Err:     fmt.Errorf("strength %.3f out of range [0, 1]", sentiment.Strength),
		}
	}
	sentiment.Ticker = ticker
	return &sentiment, nil
}
