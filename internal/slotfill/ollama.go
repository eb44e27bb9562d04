package slotfill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/util"
)

const defaultOllamaModel = "llama3.1:8b"

// OllamaFiller fills slots with a local Ollama model
type OllamaFiller struct {
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaFiller creates an Ollama slot filler
func NewOllamaFiller(cfg model.SlotFillConfig, proxy model.ProxyConfig) *OllamaFiller {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	chatModel := cfg.Model
	if chatModel == "" {
		chatModel = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OllamaFiller{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      chatModel,
		maxTokens:  maxTokensOrDefault(cfg.MaxTokens),
		httpClient: util.NewHTTPClient(timeout, proxy),
	}
}

func (f *OllamaFiller) Name() string {
	return "ollama"
}

func (f *OllamaFiller) Fill(ctx context.Context, transcript string) (*model.Slots, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  f.model,
		Prompt: BuildPrompt(transcript),
		System: systemPrompt,
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			NumPredict: f.maxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", f.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, unavailable(f.Name(), err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, unavailable(f.Name(), fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, unavailable(f.Name(), fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error))
		}
		return nil, unavailable(f.Name(), fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody)))
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, unavailable(f.Name(), fmt.Errorf("unmarshal response: %w", err))
	}

	return ParseSlots(resp.Response)
}
