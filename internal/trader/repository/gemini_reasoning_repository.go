package repository

import (
	"context"
	"fmt"
	"time"

	"golang-ai-trader/internal/trader/config"
	"golang-ai-trader/internal/trader/dto"
	"golang-ai-trader/pkg/logger"
	"golang-ai-trader/pkg/ratelimit"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ToolInvocation is one function call extracted from a model turn. Request
// is nil when decoding failed; Err carries the reason so the loop can report
// it back to the model.
type ToolInvocation struct {
	Name    string
	Args    map[string]any
	Request dto.ToolRequest
	Err     error
}

// ToolResult is one tool outcome sent back to the model.
type ToolResult struct {
	Name     string
	Response map[string]any
}

// ModelTurn is the model's reply: free text, tool calls, or both.
type ModelTurn struct {
	Text  string
	Calls []ToolInvocation
}

// ReasoningSession is one tool-calling conversation with the model.
type ReasoningSession interface {
	SendText(ctx context.Context, text string) (*ModelTurn, error)
	SendToolResults(ctx context.Context, results []ToolResult) (*ModelTurn, error)
}

// ReasoningRepository creates model conversations wired with the trading
// tool declarations.
type ReasoningRepository interface {
	NewSession(ctx context.Context, systemInstruction string) (ReasoningSession, error)
}

type geminiReasoningRepository struct {
	cfg            *config.Gemini
	logger         *logger.Logger
	client         *genai.Client
	requestLimiter *rate.Limiter
	tokenLimiter   *ratelimit.TokenLimiter
}

func NewGeminiReasoningRepository(cfg *config.Gemini, log *logger.Logger, client *genai.Client) ReasoningRepository {
	perRequest := time.Minute / time.Duration(cfg.MaxRequestPerMinute)
	return &geminiReasoningRepository{
		cfg:            cfg,
		logger:         log,
		client:         client,
		requestLimiter: rate.NewLimiter(rate.Every(perRequest), 1),
		tokenLimiter:   ratelimit.NewTokenLimiter(cfg.MaxTokenPerMinute),
	}
}

func (r *geminiReasoningRepository) NewSession(ctx context.Context, systemInstruction string) (ReasoningSession, error) {
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Tools: []*genai.Tool{
			{FunctionDeclarations: tradingToolDeclarations()},
		},
	}
	chat, err := r.client.Chats.Create(ctx, r.cfg.Model, genCfg, nil)
	if err != nil {
		return nil, &dto.ExternalServiceError{Service: "gemini", Err: fmt.Errorf("failed to create chat: %w", err)}
	}
	return &geminiSession{repo: r, chat: chat}, nil
}

type geminiSession struct {
	repo *geminiReasoningRepository
	chat *genai.Chat
}

func (s *geminiSession) SendText(ctx context.Context, text string) (*ModelTurn, error) {
	return s.send(ctx, genai.Part{Text: text})
}

func (s *geminiSession) SendToolResults(ctx context.Context, results []ToolResult) (*ModelTurn, error) {
	parts := make([]genai.Part, 0, len(results))
	for _, result := range results {
		parts = append(parts, genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				Name:     result.Name,
				Response: result.Response,
			},
		})
	}
	return s.send(ctx, parts...)
}

func (s *geminiSession) send(ctx context.Context, parts ...genai.Part) (*ModelTurn, error) {
	estimated := 0
	for _, part := range parts {
		estimated += len(part.Text) / 4
	}
	if estimated > 0 {
		if err := s.repo.tokenLimiter.Wait(ctx, estimated); err != nil {
			return nil, fmt.Errorf("failed to wait for token limit: %w", err)
		}
	}
	if err := s.repo.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	resp, err := s.chat.SendMessage(ctx, parts...)
	if err != nil {
		return nil, &dto.ExternalServiceError{Service: "gemini", Err: err}
	}

	turn := &ModelTurn{Text: resp.Text()}
	for _, call := range resp.FunctionCalls() {
		invocation := ToolInvocation{Name: call.Name, Args: call.Args}
		invocation.Request, invocation.Err = dto.DecodeToolRequest(call.Name, call.Args)
		if invocation.Err != nil {
			s.repo.logger.Warn("Failed to decode tool call",
				logger.StringField("tool", call.Name),
				logger.ErrorField(invocation.Err),
			)
		}
		turn.Calls = append(turn.Calls, invocation)
	}
	return turn, nil
}

func tradingToolDeclarations() []*genai.FunctionDeclaration {
	tickerProp := map[string]*genai.Schema{
		"ticker": {Type: genai.TypeString, Description: "Stock ticker symbol, e.g. AAPL"},
	}
	return []*genai.FunctionDeclaration{
		{
			Name:        dto.ToolCheckBalance,
			Description: "Get available cash and buying power.",
			Parameters:  &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}},
		},
		{
			Name:        dto.ToolGetCurrentPrice,
			Description: "Get the latest price for a ticker.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: tickerProp,
				Required:   []string{"ticker"},
			},
		},
		{
			Name:        dto.ToolGetPortfolioStatus,
			Description: "Get the full portfolio: positions, values, daily profit and loss.",
			Parameters:  &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}},
		},
		{
			Name:        dto.ToolExecuteTrade,
			Description: "Submit a BUY or SELL order. The order passes risk checks first and may be denied.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"ticker":   {Type: genai.TypeString, Description: "Stock ticker symbol"},
					"side":     {Type: genai.TypeString, Description: "BUY or SELL"},
					"quantity": {Type: genai.TypeInteger, Description: "Number of shares"},
					"price":    {Type: genai.TypeNumber, Description: "Optional limit price"},
					"reason":   {Type: genai.TypeString, Description: "Short rationale for the trade"},
				},
				Required: []string{"ticker", "side", "quantity"},
			},
		},
		{
			Name:        dto.ToolAnalyzeSignals,
			Description: "Aggregate sentiment signals for a ticker across news, social, and analyst sources.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: tickerProp,
				Required:   []string{"ticker"},
			},
		},
		{
			Name:        dto.ToolCalculatePositionSize,
			Description: "Calculate how many shares to buy for a ticker given a confidence between 0 and 1.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"ticker":     {Type: genai.TypeString, Description: "Stock ticker symbol"},
					"confidence": {Type: genai.TypeNumber, Description: "Confidence in the trade, 0 to 1"},
				},
				Required: []string{"ticker", "confidence"},
			},
		},
		{
			Name:        dto.ToolCheckStopLossTriggers,
			Description: "List open positions whose stop-loss or take-profit level is breached at current prices.",
			Parameters:  &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}},
		},
		{
			Name:        dto.ToolGetTradingHistory,
			Description: "Get recent orders, newest first.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"limit": {Type: genai.TypeInteger, Description: "Maximum number of orders to return"},
				},
			},
		},
	}
}
