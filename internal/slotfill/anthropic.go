package slotfill

import (
	"context"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/util"
)

// DefaultAnthropicModel is used when no model is configured
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicMessager is the subset of the Messages service the filler needs
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicFiller fills slots through the Anthropic Messages API
type AnthropicFiller struct {
	messages  AnthropicMessager
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewAnthropicFiller creates an Anthropic slot filler
func NewAnthropicFiller(cfg model.SlotFillConfig, proxy model.ProxyConfig) (*AnthropicFiller, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(util.NewHTTPClient(cfg.Timeout, proxy)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return NewAnthropicFillerWithClient(&client.Messages, cfg), nil
}

// NewAnthropicFillerWithClient creates a filler over an existing messages client
func NewAnthropicFillerWithClient(messages AnthropicMessager, cfg model.SlotFillConfig) *AnthropicFiller {
	chatModel := cfg.Model
	if chatModel == "" {
		chatModel = DefaultAnthropicModel
	}
	return &AnthropicFiller{
		messages:  messages,
		model:     chatModel,
		maxTokens: maxTokensOrDefault(cfg.MaxTokens),
		timeout:   timeoutOrDefault(cfg.Timeout),
	}
}

func (f *AnthropicFiller) Name() string {
	return "anthropic"
}

func (f *AnthropicFiller) Fill(ctx context.Context, transcript string) (*model.Slots, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(f.model),
		MaxTokens:   int64(f.maxTokens),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(transcript)))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return nil, unavailable(f.Name(), err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, unavailable(f.Name(), fmt.Errorf("no text in response"))
	}

	return ParseSlots(sb.String())
}
