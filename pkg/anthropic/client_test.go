package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageServer(t *testing.T, status int, body map[string]any, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body) //nolint:errcheck
	}))
}

func TestCreateMessage(t *testing.T) {
	var seen map[string]any
	ts := messageServer(t, http.StatusOK, map[string]any{
		"id":          "msg_001",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": `{"specialties":[]}`}},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 12, "output_tokens": 7},
	}, &seen)
	defer ts.Close()

	temp := 0.0
	c := NewClient("test-key", WithBaseURL(ts.URL), WithMaxRetries(0))
	resp, err := c.CreateMessage(context.Background(), MessageRequest{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   256,
		System:      "Output JSON only.",
		Messages:    []Message{{Role: "user", Content: "hello"}},
		Temperature: &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, "msg_001", resp.ID)
	assert.Equal(t, `{"specialties":[]}`, resp.Text())
	assert.Equal(t, int64(12), resp.Usage.InputTokens)
	assert.Equal(t, "end_turn", resp.StopReason)

	assert.Equal(t, "claude-haiku-4-5-20251001", seen["model"])
	system, ok := seen["system"].([]any)
	require.True(t, ok)
	assert.Len(t, system, 1)
}

func TestCreateMessage_Error(t *testing.T) {
	ts := messageServer(t, http.StatusBadRequest, map[string]any{
		"type":  "error",
		"error": map[string]any{"type": "invalid_request_error", "message": "bad"},
	}, nil)
	defer ts.Close()

	c := NewClient("test-key", WithBaseURL(ts.URL), WithMaxRetries(0))
	_, err := c.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 16,
		Messages:  []Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestToSDKMessages_Roles(t *testing.T) {
	out := toSDKMessages([]Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}, {Role: "other", Content: "c"}})
	require.Len(t, out, 3)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
	assert.Equal(t, "user", string(out[2].Role))
}

func TestMessageResponse_TextSkipsNonText(t *testing.T) {
	r := &MessageResponse{Content: []ContentBlock{{Type: "text", Text: "a"}, {Type: "tool_use"}, {Type: "text", Text: "b"}}}
	assert.Equal(t, "ab", r.Text())

	var nilResp *MessageResponse
	assert.Empty(t, nilResp.Text())
}

func TestTokenUsage_EstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 6.0, u.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
	assert.Equal(t, 0.0, u.EstimateCost("unknown"))
}
