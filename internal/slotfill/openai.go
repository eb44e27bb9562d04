package slotfill

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/util"
	"github.com/sashabaranov/go-openai"
)

// OpenAIFiller fills slots through the Chat Completions API in JSON mode
type OpenAIFiller struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewOpenAIFiller creates an OpenAI slot filler
func NewOpenAIFiller(cfg model.SlotFillConfig, proxy model.ProxyConfig) (*OpenAIFiller, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = util.NewHTTPClient(cfg.Timeout, proxy)

	chatModel := cfg.Model
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}

	return &OpenAIFiller{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     chatModel,
		maxTokens: maxTokensOrDefault(cfg.MaxTokens),
		timeout:   timeoutOrDefault(cfg.Timeout),
	}, nil
}

func (f *OpenAIFiller) Name() string {
	return "openai"
}

func (f *OpenAIFiller) Fill(ctx context.Context, transcript string) (*model.Slots, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: f.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(transcript)},
		},
		MaxTokens:   f.maxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, unavailable(f.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, unavailable(f.Name(), fmt.Errorf("no choices in response"))
	}

	return ParseSlots(resp.Choices[0].Message.Content)
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 1024
	}
	return n
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
