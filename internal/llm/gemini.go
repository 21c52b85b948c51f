package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Gemini is a thin wrapper around the official genai client.
type Gemini struct {
	cli    *genai.Client
	model  string
	logger *zap.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-pro"
	}
	return &Gemini{cli: cli, model: model, logger: logger}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Complete issues one GenerateContent call with a short retry on transport errors.
func (g *Gemini) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			lastErr = err
			g.logger.Warn("gemini request failed", zap.Int("attempt", attempt+1), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
			}
			continue
		}
		if len(resp.Candidates) == 0 {
			return nil, fmt.Errorf("gemini: no candidates returned")
		}

		out := &Response{
			Content:    resp.Text(),
			StopReason: mapGeminiFinish(resp.Candidates[0].FinishReason),
		}
		if resp.UsageMetadata != nil {
			out.Usage = Usage{
				InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
				OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("gemini: %w", lastErr)
}

func mapGeminiFinish(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonMaxTokens:
		return StopMaxTokens
	case genai.FinishReasonStop:
		return StopEndTurn
	case "":
		return StopUnknown
	default:
		return strings.ToLower(string(r))
	}
}
