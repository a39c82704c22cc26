package oracle

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string
}

// Gemini completes prompts with a Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Gemini oracle.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("oracle: gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, eris.New("oracle: gemini model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if u := strings.TrimSpace(cfg.BaseURL); u != "" {
		cc.HTTPOptions.BaseURL = u
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: gemini client")
	}
	return &Gemini{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

// Complete implements Oracle.
func (g *Gemini) Complete(ctx context.Context, p Prompt) (string, error) {
	gc := &genai.GenerateContentConfig{CandidateCount: 1}
	if p.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(p.User), gc)
	if err != nil {
		return "", eris.Wrap(err, "oracle: gemini")
	}
	return resp.Text(), nil
}
