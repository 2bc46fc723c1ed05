package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/pkg/common"
	"golang-ai-trader/pkg/logger"
	"golang-ai-trader/pkg/redis"

	"golang.org/x/time/rate"
)

// BrokerRepository talks to the order execution API.
type BrokerRepository interface {
	SubmitOrder(ctx context.Context, req *dto.SubmitOrderRequest) (*dto.SubmitOrderResponse, error)
	GetOrderStatus(ctx context.Context, brokerOrderID string) (*dto.BrokerOrderStatus, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	GetBalance(ctx context.Context) (*dto.BrokerBalance, error)
	GetPositions(ctx context.Context) ([]dto.BrokerPosition, error)
	GetPrice(ctx context.Context, ticker string) (*dto.Quote, error)
	GetDailyCloses(ctx context.Context, ticker string, days int) ([]dto.DailyClose, error)
}

type brokerRepository struct {
	client  *http.Client
	cfg     *config.Broker
	logger  *logger.Logger
	limiter *rate.Limiter
	redis   *redis.Client
}

func NewBrokerRepository(cfg *config.Broker, log *logger.Logger, redisClient *redis.Client) BrokerRepository {
	perRequest := time.Minute / time.Duration(cfg.MaxRequestPerMinute)
	return &brokerRepository{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		logger:  log,
		limiter: rate.NewLimiter(rate.Every(perRequest), 1),
		redis:   redisClient,
	}
}

// SubmitOrder sends the order exactly once. A submission that fails after
// the request may have left the broker holding the order, so the caller
// treats an ambiguous error as UNKNOWN rather than retrying.
func (r *brokerRepository) SubmitOrder(ctx context.Context, req *dto.SubmitOrderRequest) (*dto.SubmitOrderResponse, error) {
	var resp dto.SubmitOrderResponse
	if err := r.do(ctx, http.MethodPost, "/v1/orders", req, &resp); err != nil {
		return nil, &dto.ExternalServiceError{Service: "broker", Err: err}
	}
	return &resp, nil
}

func (r *brokerRepository) GetOrderStatus(ctx context.Context, brokerOrderID string) (*dto.BrokerOrderStatus, error) {
	var resp dto.BrokerOrderStatus
	path := "/v1/orders/" + url.PathEscape(brokerOrderID)
	if err := r.doWithRetry(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &dto.ExternalServiceError{Service: "broker", Err: err}
	}
	return &resp, nil
}

func (r *brokerRepository) CancelOrder(ctx context.Context, brokerOrderID string) error {
	path := "/v1/orders/" + url.PathEscape(brokerOrderID)
	if err := r.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return &dto.ExternalServiceError{Service: "broker", Err: err}
	}
	return nil
}

func (r *brokerRepository) GetBalance(ctx context.Context) (*dto.BrokerBalance, error) {
	var resp dto.BrokerBalance
	if err := r.doWithRetry(ctx, http.MethodGet, "/v1/account/balance", nil, &resp); err != nil {
		return nil, &dto.ExternalServiceError{Service: "broker", Err: err}
	}
	return &resp, nil
}

func (r *brokerRepository) GetPositions(ctx context.Context) ([]dto.BrokerPosition, error) {
	var resp []dto.BrokerPosition
	if err := r.doWithRetry(ctx, http.MethodGet, "/v1/account/positions", nil, &resp); err != nil {
		return nil, &dto.ExternalServiceError{Service: "broker", Err: err}
	}
	return resp, nil
}

// GetPrice serves quotes from a short-lived redis cache so the reasoning
// loop and the stop-loss sweep do not burn the broker rate budget on the
// same tickers.
func (r *brokerRepository) GetPrice(ctx context.Context, ticker string) (*dto.Quote, error) {
	cacheKey := common.RedisKeyPriceCache + ":" + ticker
	if cached, err := r.redis.Client.Get(ctx, cacheKey).Bytes(); err == nil {
		var quote dto.Quote
		if err := json.Unmarshal(cached, &quote); err == nil {
			return &quote, nil
		}
	}

	var quote dto.Quote
	path := "/v1/quotes/" + url.PathEscape(ticker)
	if err := r.doWithRetry(ctx, http.MethodGet, path, nil, &quote); err != nil {
		return nil, &dto.ExternalServiceError{Service: "broker", Err: err}
	}

	if payload, err := json.Marshal(quote); err == nil {
		if err := r.redis.Client.Set(ctx, cacheKey, payload, r.cfg.PriceCacheTTL).Err(); err != nil {
			r.logger.Warn("Failed to cache quote", logger.StringField("ticker", ticker), logger.ErrorField(err))
		}
	}
	return &quote, nil
}

func (r *brokerRepository) GetDailyCloses(ctx context.Context, ticker string, days int) ([]dto.DailyClose, error) {
	var resp []dto.DailyClose
	path := fmt.Sprintf("/v1/quotes/%s/history?days=%d", url.PathEscape(ticker), days)
	if err := r.doWithRetry(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, &dto.ExternalServiceError{Service: "broker", Err: err}
	}
	return resp, nil
}

// doWithRetry retries idempotent reads with exponential backoff. Writes go
// through do and are never retried.
func (r *brokerRepository) doWithRetry(ctx context.Context, method, path string, body, out any) error {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if lastErr = r.do(ctx, method, path, body, out); lastErr == nil {
			return nil
		}
		r.logger.Warn("Broker request failed",
			logger.StringField("path", path),
			logger.IntField("attempt", attempt+1),
			logger.ErrorField(lastErr),
		)
	}
	return lastErr
}

func (r *brokerRepository) do(ctx context.Context, method, path string, body, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for rate limit: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
