package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEngineModel   = "gpt-4o-mini"
	defaultEngineBaseURL = "https://api.openai.com/v1/responses"
	defaultMaxOutTokens  = 1024
)

// ResponseRef is the opaque session-continuity handle for a prior engine turn.
// It is round-tripped back to the engine verbatim and never inspected.
type ResponseRef struct {
	id string
}

func (r ResponseRef) isZero() bool {
	return r.id == ""
}

type EngineOptions struct {
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float64
	MaxOutputTokens int
	HTTPClient      *http.Client
}

// EngineClient talks to the remote reasoning engine over a turn-based JSON
// HTTP API. Each turn carries the advertised tool list and, after the first
// turn, the previous turn's ResponseRef instead of the full history.
type EngineClient struct {
	apiKey          string
	model           string
	baseURL         string
	temperature     float64
	maxOutputTokens int
	httpClient      *http.Client
}

func NewEngineClient(opts EngineOptions) *EngineClient {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultEngineModel
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultEngineBaseURL
	}
	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutTokens
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &EngineClient{
		apiKey:          strings.TrimSpace(opts.APIKey),
		model:           model,
		baseURL:         baseURL,
		temperature:     opts.Temperature,
		maxOutputTokens: maxTokens,
		httpClient:      httpClient,
	}
}

func (c *EngineClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type inputItem struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	Output  string `json:"output,omitempty"`
}

type engineTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Strict      bool           `json:"strict"`
}

type engineRequest struct {
	Model              string       `json:"model"`
	Temperature        float64      `json:"temperature,omitempty"`
	MaxOutputTokens    int          `json:"max_output_tokens,omitempty"`
	Tools              []engineTool `json:"tools,omitempty"`
	Input              []inputItem  `json:"input"`
	PreviousResponseID string       `json:"previous_response_id,omitempty"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type outputItem struct {
	Type      string        `json:"type"`
	CallID    string        `json:"call_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Content   []contentPart `json:"content,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type EngineResponse struct {
	ID     string       `json:"id"`
	Output []outputItem `json:"output"`
	Usage  Usage        `json:"usage"`
}

// Ref returns the opaque continuity handle for this response.
func (r *EngineResponse) Ref() ResponseRef {
	if r == nil {
		return ResponseRef{}
	}
	return ResponseRef{id: r.ID}
}

// ToolCalls extracts every tool-call request from the response, in the order
// the engine emitted them.
func (r *EngineResponse) ToolCalls() []ToolCall {
	if r == nil {
		return nil
	}
	calls := make([]ToolCall, 0, 1)
	for _, item := range r.Output {
		if item.Type != "function_call" {
			continue
		}
		calls = append(calls, ToolCall{
			ID:      item.CallID,
			Name:    item.Name,
			RawArgs: item.Arguments,
		})
	}
	return calls
}

// OutputText concatenates the response's free-text output blocks.
func (r *EngineResponse) OutputText() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, 1)
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" && strings.TrimSpace(part.Text) != "" {
				parts = append(parts, strings.TrimSpace(part.Text))
			}
		}
	}
	return strings.Join(parts, "\n")
}

type turnConfig struct {
	model           string
	temperature     float64
	maxOutputTokens int
}

func (c *EngineClient) createResponse(ctx context.Context, cfg turnConfig, tools []engineTool, input []inputItem, prev ResponseRef) (*EngineResponse, error) {
	model := strings.TrimSpace(cfg.model)
	if model == "" {
		model = c.model
	}
	temperature := cfg.temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := cfg.maxOutputTokens
	if maxTokens <= 0 {
		maxTokens = c.maxOutputTokens
	}

	req := engineRequest{
		Model:           model,
		Temperature:     temperature,
		MaxOutputTokens: maxTokens,
		Tools:           tools,
		Input:           input,
	}
	if !prev.isZero() {
		req.PreviousResponseID = prev.id
	}

	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal engine request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("reasoning engine status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out EngineResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}
	return &out, nil
}
