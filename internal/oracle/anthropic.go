package oracle

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-cli/pkg/anthropic"
)

// Anthropic completes prompts with a Claude model.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic returns an Anthropic oracle.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

// Complete implements Oracle.
func (a *Anthropic) Complete(ctx context.Context, p Prompt) (string, error) {
	zero := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      p.System,
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: &zero,
	})
	if err != nil {
		return "", eris.Wrap(err, "oracle: anthropic")
	}
	resp.Usage.Log(a.model, "oracle")
	return resp.Text(), nil
}
