package llm

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

const (
	defaultOpenAIModel = "gpt-4o"
	openAIAPIURL       = "https://api.openai.com/v1/chat/completions"
)

// OpenAI talks to the Chat Completions API.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates an OpenAI backend. An empty model selects the default.
func NewOpenAI(apiKey, modelName string, client *http.Client) *OpenAI {
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   modelName,
		baseURL: openAIAPIURL,
		client:  client,
	}
}

// Name returns "openai".
func (o *OpenAI) Name() string { return "openai" }

// Generate sends the system and user prompts as a two-message chat and
// returns the first choice.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.User})

	bodyBytes, err := json.Marshal(openAIRequest{
		Model:       o.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", &BackendError{Backend: o.Name(), Message: "marshaling request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, o.baseURL, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", &BackendError{Backend: o.Name(), Message: "creating request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", &BackendError{Backend: o.Name(), Message: "calling OpenAI API", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BackendError{Backend: o.Name(), Message: "reading response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr openAIErrorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", &BackendError{Backend: o.Name(), StatusCode: resp.StatusCode, Message: msg}
	}

	var result openAIResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &BackendError{Backend: o.Name(), Message: "decoding response", Err: err}
	}
	if len(result.Choices) == 0 {
		return "", &BackendError{Backend: o.Name(), Message: "response contained no choices"}
	}

	return result.Choices[0].Message.Content, nil
}

type openAIRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

type openAIErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
