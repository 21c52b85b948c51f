// Package generate drives the completion provider to produce project files.
package generate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/saeedalam/promptforge/internal/extract"
	"github.com/saeedalam/promptforge/internal/llm"
	"github.com/saeedalam/promptforge/pkg/types"
)

// RepairContext carries the failure being repaired into the next generation.
type RepairContext struct {
	Errors []string
	Files  *types.FileSet
}

// Input is one generation call.
type Input struct {
	Spec        string
	Plan        string
	Framework   types.Framework
	MaxTokens   int
	Constraints []string
	Repair      *RepairContext
}

// Result is the outcome of Generate.
type Result struct {
	Success    bool
	Files      *types.FileSet
	Blocks     []extract.Block
	StopReason string
	Output     string
	LogPath    string
	Usage      llm.Usage
}

// Generator turns a request into files with a single completion call.
type Generator struct {
	provider llm.Provider
	model    string
	logDir   string
	logger   *zap.Logger
}

// New creates a generator. Truncated responses are saved under logDir.
func New(provider llm.Provider, model, logDir string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{provider: provider, model: model, logDir: logDir, logger: logger}
}

// Generate makes one completion call. A truncated response fails with
// types.ErrTruncated and its raw text is persisted to Result.LogPath.
func (g *Generator) Generate(ctx context.Context, in Input) (Result, error) {
	req := llm.Request{
		Messages:     llm.UserPrompt(UserPrompt(in)),
		Model:        g.model,
		MaxTokens:    in.MaxTokens,
		SystemPrompt: SystemPrompt(in.Framework, in.Constraints),
	}

	start := time.Now()
	resp, err := g.provider.Complete(ctx, req)
	if err != nil {
		return Result{Output: fmt.Sprintf("completion failed: %v", err)}, fmt.Errorf("generate: %w", err)
	}

	g.logger.Info("completion received",
		zap.String("framework", string(in.Framework)),
		zap.String("stop_reason", resp.StopReason),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	res := Result{StopReason: resp.StopReason, Usage: resp.Usage}

	if llm.IsTruncation(resp.StopReason) {
		res.LogPath = g.saveRaw(in.Framework, resp)
		res.Output = fmt.Sprintf("generation truncated at %d max tokens (stop reason %q); raw response saved to %s",
			in.MaxTokens, resp.StopReason, res.LogPath)
		g.logger.Warn("generation truncated",
			zap.String("framework", string(in.Framework)),
			zap.String("log", res.LogPath))
		return res, types.ErrTruncated
	}

	res.Blocks = extract.Extract(resp.Content, nil)
	res.Files = extract.ToFileSet(res.Blocks, in.Framework.DefaultEntry())
	if res.Files.Len() == 0 {
		res.Output = "response contained no code blocks"
		return res, fmt.Errorf("generate: %s", res.Output)
	}

	res.Success = true
	res.Output = fmt.Sprintf("generated %d file(s)", res.Files.Len())
	return res, nil
}

func (g *Generator) saveRaw(fw types.Framework, resp *llm.Response) string {
	dir := g.logDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		g.logger.Warn("cannot create log directory", zap.String("dir", dir), zap.Error(err))
		return ""
	}
	name := fmt.Sprintf("truncated-%s-%s.log", fw, time.Now().Format("20060102-150405.000"))
	path := filepath.Join(dir, name)

	header := fmt.Sprintf("# framework: %s\n# stop_reason: %s\n# output_tokens: %d\n\n",
		fw, resp.StopReason, resp.Usage.OutputTokens)
	if err := os.WriteFile(path, []byte(header+resp.Content), 0644); err != nil {
		g.logger.Warn("cannot save truncated response", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}
