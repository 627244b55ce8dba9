package triage

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// Decoded is the outcome of decoding a model response: Parsed or Malformed
type Decoded interface {
	decoded()
}

// Parsed holds a response that contained valid JSON
type Parsed struct {
	JSON gjson.Result
}

// Malformed holds a response that contained no usable JSON
type Malformed struct {
	Raw    string
	Reason string
}

func (Parsed) decoded()    {}
func (Malformed) decoded() {}

// Decode extracts the JSON document of a model response. Fenced blocks are
// preferred, then the whole text, then the outermost {...} or [...] span.
func Decode(text string) Decoded {
	text = strings.TrimSpace(text)
	if text == "" {
		return Malformed{Raw: text, Reason: "empty response"}
	}

	candidates := []string{}
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, text)
	if span := outerSpan(text, '{', '}'); span != "" {
		candidates = append(candidates, span)
	}
	if span := outerSpan(text, '[', ']'); span != "" {
		candidates = append(candidates, span)
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" && gjson.Valid(candidate) {
			return Parsed{JSON: gjson.Parse(candidate)}
		}
	}

	return Malformed{Raw: text, Reason: "no valid JSON document in response"}
}

func outerSpan(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// coerceConfidence accepts numbers and numeric strings; anything else is 0.
// The result is clamped to [0, 1].
func coerceConfidence(r gjson.Result) float64 {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0
		}
		v = parsed
	default:
		return 0
	}

	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// coerceBool is true only for a JSON true literal
func coerceBool(r gjson.Result) bool {
	return r.Type == gjson.True
}

// coerceString returns nil for missing, non-string, blank or placeholder values
func coerceString(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	s := strings.TrimSpace(r.Str)
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a", "unknown":
		return nil
	}
	return &s
}
