package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is the model used when none is configured.
const DefaultAnthropicModel = "claude-3-5-haiku-20241022"

// AnthropicClient adapts the Anthropic Messages API to Runtime.
type AnthropicClient struct {
	client anthropic.Client
	hasKey bool
}

// NewAnthropicClient builds a client. cfg.RetryMax counts attempts; the SDK
// gets one retry fewer, so 1 means a single call.
func NewAnthropicClient(apiKey string, cfg RuntimeConfig, opts ...option.RequestOption) *AnthropicClient {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(max(cfg.RetryMax-1, 0)),
	}
	if cfg.HTTPTimeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.HTTPTimeout))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(append(base, opts...)...),
		hasKey: apiKey != "",
	}
}

func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if !c.hasKey {
		return nil, errors.New("ANTHROPIC_API_KEY is missing")
	}
	model := req.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, translateAnthropicError(err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return &GenerateResponse{
		ID:        resp.ID,
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: text.String()}}},
		Usage:     Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		RequestID: resp.ID,
	}, nil
}

// translateAnthropicError maps SDK errors onto the package's typed errors.
// Context errors and transport failures pass through.
func translateAnthropicError(err error) error {
	var sdkErr *anthropic.Error
	if !errors.As(err, &sdkErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &UnreachableError{Host: "api.anthropic.com", Err: err}
	}
	apiErr := &APIError{StatusCode: sdkErr.StatusCode, Message: sdkErr.Error()}
	if sdkErr.Response != nil {
		apiErr.RequestID = extractRequestID(sdkErr.Response)
		return classifyAPIError(apiErr, sdkErr.Response)
	}
	return classifyStatus(apiErr, 0)
}
