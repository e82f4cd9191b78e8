package llm

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Fields is a decoded JSON object read one key at a time. Models, small
// local ones especially, return numbers where strings were asked for and
// the reverse; each accessor coerces what it can and falls back on its own
// so one odd field never discards the rest.
type Fields map[string]any

// Fields decodes Data as a JSON object.
func (r Result) Fields() (Fields, error) {
	var f Fields
	if err := json.Unmarshal(r.Data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}

// String returns key as text. Numbers and booleans are formatted; objects,
// arrays, null and missing keys give "".
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// OptString is String with absence kept distinct: null, missing, empty and
// the literal "null" give nil.
func (f Fields) OptString(key string) *string {
	s := f.String(key)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

// Float returns key as a number, parsing numeric strings. Anything else
// gives def.
func (f Fields) Float(key string, def float64) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// Strings returns key as a list of non-empty strings. A single string is
// split on commas. Anything else gives an empty, non-nil slice.
func (f Fields) Strings(key string) []string {
	out := []string{}
	switch v := f[key].(type) {
	case []any:
		for _, item := range v {
			s := Fields{"v": item}.String("v")
			if s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
