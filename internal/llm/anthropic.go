package llm

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	anthropicAPIURL       = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion   = "2023-06-01"
)

// Anthropic talks to the Claude Messages API.
type Anthropic struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropic creates a Claude backend. An empty model selects the default.
func NewAnthropic(apiKey, modelName string, client *http.Client) *Anthropic {
	if modelName == "" {
		modelName = defaultAnthropicModel
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Anthropic{
		apiKey:  apiKey,
		model:   modelName,
		baseURL: anthropicAPIURL,
		client:  client,
	}
}

// Name returns "claude".
func (a *Anthropic) Name() string { return "claude" }

// Generate makes a single request to the Claude Messages API and returns
// the concatenated text blocks.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	reqBody := anthropicRequest{
		Model:       a.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: []anthropicContentBlock{{Type: "text", Text: req.User}},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", &BackendError{Backend: a.Name(), Message: "marshaling request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.baseURL, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", &BackendError{Backend: a.Name(), Message: "creating request", Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", &BackendError{Backend: a.Name(), Message: "calling Claude API", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BackendError{Backend: a.Name(), Message: "reading response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicErrorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", &BackendError{Backend: a.Name(), StatusCode: resp.StatusCode, Message: msg}
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &BackendError{Backend: a.Name(), Message: "decoding response", Err: err}
	}

	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", &BackendError{Backend: a.Name(), Message: "response contained no text"}
	}

	return strings.Join(parts, ""), nil
}

// --- Claude API types ---

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
