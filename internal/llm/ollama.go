package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/JexSrs/go-ollama"
	"go.uber.org/zap"
)

const ollamaDefaultHost = "http://localhost:11434"

// Ollama drives a local Ollama server through its Generate endpoint.
type Ollama struct {
	client *ollama.Ollama
	model  string
	logger *zap.Logger
}

// NewOllama creates an Ollama provider for host (empty = localhost).
func NewOllama(host, model string, logger *zap.Logger) (*Ollama, error) {
	if host == "" {
		host = ollamaDefaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid host %q: %w", host, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = "qwen2.5-coder"
	}
	return &Ollama{client: ollama.New(*u), model: model, logger: logger}, nil
}

func (o *Ollama) Name() string { return "ollama" }

// Complete flattens the conversation into one prompt. The Generate endpoint has
// no native stop reason, so a response that is not marked done is reported as
// length-truncated.
func (o *Ollama) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = o.model
	}

	var prompt strings.Builder
	for i, m := range req.Messages {
		if i > 0 {
			prompt.WriteString("\n\n")
		}
		if len(req.Messages) > 1 {
			prompt.WriteString(strings.ToUpper(m.Role) + ":\n")
		}
		prompt.WriteString(m.Content)
	}

	res, err := o.client.Generate(
		o.client.Generate.WithModel(model),
		o.client.Generate.WithSystem(req.SystemPrompt),
		o.client.Generate.WithPrompt(prompt.String()),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: generate: %w", err)
	}

	stop := StopEndTurn
	if !res.Done {
		stop = StopLength
	}
	o.logger.Debug("ollama response", zap.String("model", model), zap.Bool("done", res.Done))
	return &Response{Content: res.Response, StopReason: stop}, nil
}
