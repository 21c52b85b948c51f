// Package planner runs the optional decomposition pass for long requests.
package planner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/saeedalam/promptforge/internal/llm"
	"github.com/saeedalam/promptforge/pkg/types"
)

// WordThreshold is the request length, in words, at or below which planning is skipped.
const WordThreshold = 150

const planTokens = 2048

// Result is the outcome of Plan. Plan is empty when Skipped.
type Result struct {
	Skipped bool
	Plan    string
}

// Planner asks the model for a component breakdown of long requests.
type Planner struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// New creates a planner.
func New(provider llm.Provider, model string, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{provider: provider, model: model, logger: logger}
}

// Plan skips requests of WordThreshold words or fewer; otherwise it makes one
// completion call and returns the raw plan text.
func (p *Planner) Plan(ctx context.Context, spec string, fw types.Framework) (Result, error) {
	words := len(strings.Fields(spec))
	if words <= WordThreshold {
		return Result{Skipped: true}, nil
	}

	resp, err := p.provider.Complete(ctx, llm.Request{
		Messages:     llm.UserPrompt(spec),
		Model:        p.model,
		MaxTokens:    planTokens,
		SystemPrompt: systemPrompt(fw),
	})
	if err != nil {
		return Result{}, fmt.Errorf("planning: %w", err)
	}

	p.logger.Info("plan generated",
		zap.String("framework", string(fw)),
		zap.Int("spec_words", words),
		zap.Int("plan_chars", len(resp.Content)))
	return Result{Plan: strings.TrimSpace(resp.Content)}, nil
}

func systemPrompt(fw types.Framework) string {
	return fmt.Sprintf(`You are planning a %s project before any code is written.
Break the request into components. For each component give:
- COMPONENT: <name>
- FILE: <relative path>
- RESPONSIBILITY: <one sentence>
- DEPENDS ON: <other components or "none">
Finish with the entry file and the order files should be written in.
Do not write code.`, fw)
}
