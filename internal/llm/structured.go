package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Status is the outcome class of a structured generation.
type Status int

const (
	// StatusOK means the model returned parseable JSON.
	StatusOK Status = iota
	// StatusParseFailed means every attempt produced unparseable output and
	// the keyword fallback was substituted.
	StatusParseFailed
	// StatusBackendFailed means the provider itself failed; Data still
	// carries the keyword fallback.
	StatusBackendFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusParseFailed:
		return "parse_failed"
	case StatusBackendFailed:
		return "backend_failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of GenerateJSON. Data always holds a JSON object.
type Result struct {
	Status   Status
	Data     []byte
	Attempts int
	Err      error
}

// OK reports whether the model itself produced the data.
func (r Result) OK() bool { return r.Status == StatusOK }

// Decode unmarshals Data into v.
func (r Result) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

// Generator runs free-text and JSON generations against a single backend.
type Generator struct {
	backend Backend
	retries int
	log     zerolog.Logger
}

// NewGenerator creates a Generator. retries is the number of extra JSON
// attempts after the first; negative values are treated as zero.
func NewGenerator(backend Backend, retries int, logger zerolog.Logger) *Generator {
	if retries < 0 {
		retries = 0
	}
	return &Generator{
		backend: backend,
		retries: retries,
		log:     logger.With().Str("module", "llm").Str("backend", backend.Name()).Logger(),
	}
}

// Generate returns free text from the backend.
func (g *Generator) Generate(
	ctx context.Context, system, user string, maxTokens int, temperature float64,
) (string, error) {
	text, err := g.backend.Generate(ctx, Request{
		System:      system,
		User:        user,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GenerateJSON asks the backend for a JSON object, retrying on unparseable
// output. A backend failure ends the attempt immediately. Whenever the
// model cannot supply the object, Data carries the keyword fallback.
func (g *Generator) GenerateJSON(ctx context.Context, system, user string, maxTokens int) Result {
	req := jsonRequest(g.backend, system, user, maxTokens)

	var lastErr error
	attempts := g.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := g.backend.Generate(ctx, req)
		if err != nil {
			g.log.Error().Err(err).Int("attempt", attempt).Msg("Backend failed during JSON generation")
			return Result{
				Status:   StatusBackendFailed,
				Data:     fallbackJSON(system, user),
				Attempts: attempt,
				Err:      err,
			}
		}

		cleaned := CleanJSON(text)
		var parsed map[string]any
		if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
			lastErr = err
			g.log.Warn().Err(err).Int("attempt", attempt).Int("of", attempts).
				Msg("Model returned invalid JSON")
			continue
		}
		return Result{Status: StatusOK, Data: []byte(cleaned), Attempts: attempt}
	}

	g.log.Error().Err(lastErr).Msg("JSON generation exhausted retries, using fallback")
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return Result{
		Status:   StatusParseFailed,
		Data:     fallbackJSON(system, user),
		Attempts: attempts,
		Err:      lastErr,
	}
}

// CleanJSON strips Markdown code fences and any prose around the outermost
// JSON object.
func CleanJSON(text string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// Fallback guesses the expected response shape from keywords in the
// prompts. The first matching rule wins.
func Fallback(system, user string) map[string]any {
	text := strings.ToLower(system + " " + user)

	switch {
	case strings.Contains(text, "intent") || strings.Contains(text, "classify"):
		return map[string]any{
			"intent":     "GENERAL",
			"confidence": 0.3,
			"reasoning":  "Fallback - model failed to classify",
		}
	case strings.Contains(text, "due_date") || strings.Contains(text, "assignment"):
		return map[string]any{
			"class_name":  nil,
			"due_date":    nil,
			"title":       "Untitled Assignment",
			"description": nil,
			"priority":    "medium",
		}
	case strings.Contains(text, "note"):
		content := truncate(user, 200)
		if content == "" {
			content = "Note content unavailable"
		}
		return map[string]any{
			"class_name": nil,
			"content":    content,
			"note_type":  "general",
			"tags":       []string{},
		}
	case strings.Contains(text, "query"):
		return map[string]any{
			"query_type":   "general",
			"time_filter":  nil,
			"class_filter": nil,
			"search_terms": []string{},
		}
	default:
		return map[string]any{
			"error":      "parsing_failed",
			"raw_prompt": truncate(user, 100),
		}
	}
}

func fallbackJSON(system, user string) []byte {
	data, err := json.Marshal(Fallback(system, user))
	if err != nil {
		return []byte(`{"error":"parsing_failed"}`)
	}
	return data
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
