// Package anthropic wraps the Anthropic Messages API for single-turn
// completions.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client defines the Anthropic operations used by provider-cli.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single completion request.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      string
	Messages    []Message
	Temperature *float64
}

// Message is one conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse is the decoded completion.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// ContentBlock is one block of response content.
type ContentBlock struct {
	Type string
	Text string
}

// Text concatenates the text blocks of the response.
func (r *MessageResponse) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// per-million-token pricing {input, output}.
var modelPricing = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {1.00, 5.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

// EstimateCost returns an estimated USD cost, or 0 for unknown models.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return float64(u.InputTokens)/1e6*p[0] + float64(u.OutputTokens)/1e6*p[1]
}

// Log writes usage and estimated cost at debug level.
func (u TokenUsage) Log(model, purpose string) {
	zap.L().Debug("anthropic: usage",
		zap.String("model", model),
		zap.String("purpose", purpose),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// Option configures the SDK client.
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at a different endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(opts *[]option.RequestOption) {
		*opts = append(*opts, option.WithBaseURL(u))
	}
}

// WithMaxRetries sets the SDK's own retry count.
func WithMaxRetries(n int) Option {
	return func(opts *[]option.RequestOption) {
		*opts = append(*opts, option.WithMaxRetries(n))
	}
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a Client backed by the official SDK.
func NewClient(apiKey string, opts ...Option) Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &sdkClient{client: sdk.NewClient(reqOpts...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return fromSDKMessage(msg), nil
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out[i] = sdk.NewAssistantMessage(block)
		} else {
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		blocks = append(blocks, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Content:    blocks,
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
