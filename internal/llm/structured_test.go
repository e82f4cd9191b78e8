package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend replays canned responses in order.
type scriptedBackend struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []Request
}

func (s *scriptedBackend) Name() string { return "scripted" }

func (s *scriptedBackend) Generate(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("script exhausted")
}

func (s *scriptedBackend) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func TestCleanJSON(t *testing.T) {
	testCases := []struct {
		name, input, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", "Sure! Here it is: {\"a\":{\"b\":2}} hope that helps", `{"a":{"b":2}}`},
		{"no braces", "nothing here", "nothing here"},
		{"whitespace", "  \n {\"a\":1}\n\n", `{"a":1}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanJSON(tc.input))
		})
	}
}

func TestGenerateJSONFirstAttempt(t *testing.T) {
	b := &scriptedBackend{responses: []string{"```json\n{\"intent\":\"NOTE\",\"confidence\":0.9}\n```"}}
	g := NewGenerator(b, 2, zerolog.Nop())

	res := g.GenerateJSON(context.Background(), "sys", "usr", 200)
	require.True(t, res.OK())
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, b.calls())

	var got struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, res.Decode(&got))
	assert.Equal(t, "NOTE", got.Intent)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
}

func TestGenerateJSONRetriesThenFallsBack(t *testing.T) {
	b := &scriptedBackend{responses: []string{"not json", "still not", "nope"}}
	g := NewGenerator(b, 2, zerolog.Nop())

	res := g.GenerateJSON(context.Background(), "Classify the intent of this email", "hello", 200)
	assert.Equal(t, StatusParseFailed, res.Status)
	assert.Equal(t, 3, b.calls(), "retries=2 means three attempts")
	assert.Error(t, res.Err)

	var got map[string]any
	require.NoError(t, res.Decode(&got))
	assert.Equal(t, "GENERAL", got["intent"])
	assert.InDelta(t, 0.3, got["confidence"], 1e-9)
}

func TestGenerateJSONRecoversOnRetry(t *testing.T) {
	b := &scriptedBackend{responses: []string{"garbage", `{"ok":true}`}}
	g := NewGenerator(b, 2, zerolog.Nop())

	res := g.GenerateJSON(context.Background(), "s", "u", 100)
	require.True(t, res.OK())
	assert.Equal(t, 2, res.Attempts)
	assert.JSONEq(t, `{"ok":true}`, string(res.Data))
}

func TestGenerateJSONSucceedsOnLastAttempt(t *testing.T) {
	b := &scriptedBackend{responses: []string{
		"Sure! Here is the JSON you asked for.",
		`{"intent": "QUERY",`,
		`{"intent":"QUERY","confidence":0.8,"reasoning":"asks about deadlines"}`,
	}}
	g := NewGenerator(b, 2, zerolog.Nop())

	res := g.GenerateJSON(context.Background(), "Classify the intent of this email", "what is due?", 200)
	require.True(t, res.OK())
	assert.NoError(t, res.Err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, b.calls())

	f, err := res.Fields()
	require.NoError(t, err)
	assert.Equal(t, "QUERY", f.String("intent"), "parsed value, not the fallback")
	assert.InDelta(t, 0.8, f.Float("confidence", 0), 1e-9)
}

func TestGenerateJSONBackendFailureDoesNotRetry(t *testing.T) {
	boom := &BackendError{Backend: "scripted", StatusCode: 500, Message: "down"}
	b := &scriptedBackend{errs: []error{boom}}
	g := NewGenerator(b, 2, zerolog.Nop())

	res := g.GenerateJSON(context.Background(), "extract the assignment", "x", 100)
	assert.Equal(t, StatusBackendFailed, res.Status)
	assert.Equal(t, 1, b.calls())

	var be *BackendError
	require.ErrorAs(t, res.Err, &be)
	assert.Equal(t, 500, be.StatusCode)

	var got map[string]any
	require.NoError(t, res.Decode(&got))
	assert.Equal(t, "Untitled Assignment", got["title"])
}

func TestGenerateJSONUsesHostedFraming(t *testing.T) {
	b := &scriptedBackend{responses: []string{`{}`}}
	g := NewGenerator(b, 0, zerolog.Nop())

	g.GenerateJSON(context.Background(), "base", "u", 50)
	require.Equal(t, 1, b.calls())
	assert.Contains(t, b.requests[0].System, "Return ONLY valid JSON")
	assert.InDelta(t, 0.3, b.requests[0].Temperature, 1e-9)
	assert.Equal(t, 50, b.requests[0].MaxTokens)
}

func TestFallback(t *testing.T) {
	longUser := ""
	for i := 0; i < 300; i++ {
		longUser += "x"
	}

	testCases := []struct {
		name         string
		system, user string
		key          string
		want         any
	}{
		{"intent keyword", "Determine the INTENT", "", "intent", "GENERAL"},
		{"classify keyword", "please classify", "", "reasoning", "Fallback - model failed to classify"},
		{"due date keyword", "return due_date", "", "priority", "medium"},
		{"assignment keyword", "an assignment", "", "title", "Untitled Assignment"},
		{"note keyword", "store a note", "my content", "content", "my content"},
		{"note empty user", "note", "", "content", "Note content unavailable"},
		{"query keyword", "analyze the query", "", "query_type", "general"},
		{"nothing matches", "hello", "world", "error", "parsing_failed"},
		// intent is checked before note
		{"first match wins", "classify this note", "", "intent", "GENERAL"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Fallback(tc.system, tc.user)
			assert.Equal(t, tc.want, got[tc.key])
		})
	}

	t.Run("note content truncated", func(t *testing.T) {
		got := Fallback("note", longUser)
		assert.Len(t, got["content"], 200)
	})
	t.Run("raw prompt truncated", func(t *testing.T) {
		got := Fallback("x", longUser)
		assert.Len(t, got["raw_prompt"], 100)
	})
}
