package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

var defaultLocalStop = []string{"</s>", "User:", "\n\n\n"}

// Local talks to a llama.cpp compatible server running next to the
// process (POST /completion).
type Local struct {
	endpoint string
	threads  int
	client   *http.Client
}

// NewLocal creates a backend for the completion server at endpoint.
func NewLocal(endpoint string, threads int, client *http.Client) *Local {
	if client == nil {
		client = &http.Client{}
	}
	if threads <= 0 {
		threads = 4
	}
	return &Local{
		endpoint: strings.TrimRight(endpoint, "/"),
		threads:  threads,
		client:   client,
	}
}

// Name returns "local".
func (l *Local) Name() string { return "local" }

// JSONRequest wraps the prompts in the TinyLlama chat template, which small
// local models follow far more reliably than a bare instruction.
func (l *Local) JSONRequest(system, user string, maxTokens int) Request {
	prompt := fmt.Sprintf(
		"<|system|>\n%s\nYou must respond with valid JSON only. No explanations.</s>\n"+
			"<|user|>\n%s</s>\n<|assistant|>\n",
		system, user,
	)
	return Request{
		User:        prompt,
		MaxTokens:   maxTokens,
		Temperature: 0.1,
		Stop:        []string{"</s>"},
	}
}

// Generate runs a completion. The system and user prompts are joined with
// a blank line since the server takes a single prompt.
func (l *Local) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.User
	if req.System != "" {
		prompt = req.System + "\n\n" + req.User
	}
	stop := req.Stop
	if len(stop) == 0 {
		stop = defaultLocalStop
	}

	bodyBytes, err := json.Marshal(localRequest{
		Prompt:      prompt,
		NPredict:    req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        stop,
		Threads:     l.threads,
	})
	if err != nil {
		return "", &BackendError{Backend: l.Name(), Message: "marshaling request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, l.endpoint+"/completion", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", &BackendError{Backend: l.Name(), Message: "creating request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return "", &BackendError{Backend: l.Name(), Message: "calling local model", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BackendError{Backend: l.Name(), Message: "reading response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &BackendError{
			Backend:    l.Name(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	var result localResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &BackendError{Backend: l.Name(), Message: "decoding response", Err: err}
	}

	return strings.TrimSpace(result.Content), nil
}

type localRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop"`
	Threads     int      `json:"n_threads,omitempty"`
}

type localResponse struct {
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
}
