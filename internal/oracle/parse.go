package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Fallback reasons.
const (
	FallbackEmpty       = "empty response"
	FallbackInvalidJSON = "invalid json"
	FallbackUnavailable = "oracle unavailable"
	FallbackDisabled    = "oracle disabled"
)

// Parsed is the result of interpreting an oracle response. When OK is false
// Value is T's zero value and Fallback names why.
type Parsed[T any] struct {
	Value    T
	OK       bool
	Fallback string
}

// ParseJSON strips markdown code fences and any prose around the outermost
// JSON value, then decodes into T.
func ParseJSON[T any](raw string) Parsed[T] {
	var out Parsed[T]

	body := extractJSON(raw)
	if body == "" {
		out.Fallback = FallbackEmpty
		return out
	}

	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		out.Fallback = fmt.Sprintf("%s: %v", FallbackInvalidJSON, err)
		return out
	}
	out.Value = v
	out.OK = true
	return out
}

// Failed converts an oracle call error into a fallback result.
func Failed[T any](err error) Parsed[T] {
	if eris.Is(err, ErrDisabled) {
		return Parsed[T]{Fallback: FallbackDisabled}
	}
	return Parsed[T]{Fallback: fmt.Sprintf("%s: %v", FallbackUnavailable, err)}
}

// Ask completes p and parses the response, folding call errors into the
// fallback.
func Ask[T any](ctx context.Context, o Oracle, p Prompt) Parsed[T] {
	raw, err := o.Complete(ctx, p)
	if err != nil {
		return Failed[T](err)
	}
	return ParseJSON[T](raw)
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
