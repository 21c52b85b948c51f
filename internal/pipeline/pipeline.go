// Package pipeline sequences one build from prompt to packaged output and
// records the terminal outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saeedalam/promptforge/internal/brand"
	"github.com/saeedalam/promptforge/internal/budget"
	"github.com/saeedalam/promptforge/internal/config"
	"github.com/saeedalam/promptforge/internal/generate"
	"github.com/saeedalam/promptforge/internal/llm"
	"github.com/saeedalam/promptforge/internal/memory"
	"github.com/saeedalam/promptforge/internal/merge"
	"github.com/saeedalam/promptforge/internal/metrics"
	"github.com/saeedalam/promptforge/internal/packager"
	"github.com/saeedalam/promptforge/internal/planner"
	"github.com/saeedalam/promptforge/internal/publish"
	"github.com/saeedalam/promptforge/internal/repair"
	"github.com/saeedalam/promptforge/internal/router"
	"github.com/saeedalam/promptforge/internal/storage"
	"github.com/saeedalam/promptforge/internal/validate"
	"github.com/saeedalam/promptforge/pkg/types"
)

// Options wires the orchestrator. Only Config is required.
type Options struct {
	Config *config.Config

	// Provider, when set, serves every build regardless of the request's
	// provider selector.
	Provider llm.Provider
	// Store may be nil; history and constraint memory then degrade to no-ops.
	Store     *storage.Store
	Packager  packager.Packager
	Publisher publish.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// OnFileWrite is called with the path of every file the build writes.
	OnFileWrite func(path string)
}

// Orchestrator runs builds.
type Orchestrator struct {
	opts      Options
	cfg       *config.Config
	router    *router.Router
	validator *validate.Validator
	memory    *memory.Memory
	branding  *brand.Injector
	logger    *zap.Logger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Packager == nil {
		opts.Packager = packager.Noop{}
	}

	var store memory.ConstraintStore
	if opts.Store != nil {
		store = opts.Store
	}

	return &Orchestrator{
		opts:      opts,
		cfg:       opts.Config,
		router:    router.New(),
		validator: validate.New(opts.Logger),
		memory:    memory.New(store, opts.Logger),
		branding:  brand.New(opts.Config.Branding.Marker, opts.Config.Branding.URL),
		logger:    opts.Logger,
	}
}

// Memory exposes the constraint memory the orchestrator uses.
func (o *Orchestrator) Memory() *memory.Memory {
	return o.memory
}

// run carries the state of one build.
type run struct {
	req       types.BuildRequest
	id        string
	start     time.Time
	framework types.Framework
	appName   string
	provider  string
	model     string
	sourceDir string
	branded   bool
	logger    *zap.Logger
}

// BuildApp runs a build and returns its terminal record. Only an invalid
// request returns an error; every other failure is a failed record.
func (o *Orchestrator) BuildApp(ctx context.Context, req types.BuildRequest) (*types.BuildRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return o.Build(ctx, req).Record, nil
}

// Build runs the whole pipeline for req.
func (o *Orchestrator) Build(ctx context.Context, req types.BuildRequest) types.BuildResult {
	if err := req.Validate(); err != nil {
		return types.BuildResult{Success: false, Output: err.Error()}
	}

	r := &run{
		req:   req,
		id:    storage.NewBuildID(),
		start: time.Now(),
	}
	r.framework = o.router.Route(req.Prompt, string(req.FrameworkOverride))
	r.appName = SanitizeName(req.Name)
	if r.appName == "" {
		r.appName = DeriveName(req.Prompt)
	}
	r.logger = o.logger.With(
		zap.String("build_id", r.id),
		zap.String("framework", string(r.framework)),
		zap.String("app", r.appName))
	r.logger.Info("build started")

	provider, err := o.provider(ctx, r)
	if err != nil {
		return o.finish(ctx, r, types.StatusFailed, "", fmt.Sprintf("provider unavailable: %v", err))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.cfg.MaxTokens
	}
	maxTokens = budget.Resolve(r.model, maxTokens)

	input := generate.Input{
		Spec:        req.Prompt,
		Framework:   r.framework,
		MaxTokens:   maxTokens,
		Constraints: o.memory.Get(ctx, r.framework),
	}
	if len(input.Constraints) > 0 {
		r.logger.Info("constraints loaded", zap.Int("count", len(input.Constraints)))
	}

	if o.cfg.Planning.Enabled {
		plan, err := planner.New(provider, r.model, r.logger).Plan(ctx, req.Prompt, r.framework)
		if err != nil {
			r.logger.Warn("planning failed, generating without a plan", zap.Error(err))
		}
		input.Plan = plan.Plan
	}

	gen := generate.New(provider, r.model, o.cfg.LogDir, r.logger)
	first, err := gen.Generate(ctx, input)
	if err != nil {
		if errors.Is(err, types.ErrTruncated) {
			o.opts.Metrics.ObserveTruncation(r.framework, 1)
		}
		return o.finish(ctx, r, types.StatusFailed, "", first.Output)
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = o.cfg.MaxRetries
	}
	loop := repair.New(gen, o.validator, o.memory, maxRetries, r.logger)
	outcome, err := loop.Run(ctx, input, first.Files)
	o.opts.Metrics.ObserveRepair(r.framework, outcome.Attempts)
	o.opts.Metrics.ObserveTruncation(r.framework, outcome.Truncations)
	if err != nil {
		// Keep what was generated so the failure can be inspected.
		if outcome.Files != nil && outcome.Files.Len() > 0 {
			if werr := o.writeSources(r, outcome.Files); werr != nil {
				r.logger.Warn("could not write failed sources", zap.Error(werr))
			}
		}
		return o.finish(ctx, r, types.StatusFailed, "", outcome.Output)
	}

	files := o.branding.Inject(outcome.Files, r.framework, req.NoBranding)
	r.branded = !req.NoBranding && o.branding.Branded(files)

	if err := o.writeSources(r, files); err != nil {
		return o.finish(ctx, r, types.StatusFailed, "", fmt.Sprintf("write sources: %v", err))
	}

	entry := filepath.Join(r.sourceDir, filepath.FromSlash(EntryFile(r.framework, files)))
	if r.framework == types.FrameworkPowerShell {
		var opts []merge.Option
		if r.branded {
			opts = append(opts, merge.WithHeader(o.branding.ScriptHeader()))
		}
		merged, err := merge.MergeEntry(r.sourceDir, EntryFile(r.framework, files), opts...)
		if err != nil {
			return o.finish(ctx, r, types.StatusFailed, "", fmt.Sprintf("merge: %v", err))
		}
		if merged.Merged {
			r.logger.Info("sources merged",
				zap.String("path", merged.Path),
				zap.Strings("included", merged.Included))
			o.notify(merged.Path)
		}
		entry = merged.Path
	}

	pkg, err := o.opts.Packager.Package(ctx, packager.Job{
		Framework: r.framework,
		SourceDir: r.sourceDir,
		Entry:     entry,
		AppName:   r.appName,
	})
	if err != nil {
		return o.finish(ctx, r, types.StatusFailed, "", fmt.Sprintf("packager: %v", err))
	}
	if !pkg.Succeeded() {
		o.memory.Learn(ctx, r.framework, []string{lastLines(pkg.Output, 20)})
		return o.finish(ctx, r, types.StatusFailed, "",
			fmt.Sprintf("packager exited with code %d:\n%s", pkg.ExitCode, lastLines(pkg.Output, 20)))
	}

	msg := outcome.Output
	if pkg.Skipped {
		msg += "; " + pkg.Output
	} else if pkg.ExePath != "" {
		o.notify(pkg.ExePath)
		o.publish(ctx, r, pkg.ExePath)
	}
	return o.finish(ctx, r, types.StatusCompleted, pkg.ExePath, msg)
}

func (o *Orchestrator) provider(ctx context.Context, r *run) (llm.Provider, error) {
	name := firstNonEmpty(r.req.Provider, o.cfg.Provider)
	r.model = firstNonEmpty(r.req.Model, o.cfg.Model)

	if o.opts.Provider != nil {
		r.provider = o.opts.Provider.Name()
		if r.model == "" {
			r.model = llm.DefaultModel(r.provider)
		}
		return o.opts.Provider, nil
	}

	r.provider = name
	if r.model == "" {
		r.model = llm.DefaultModel(name)
	}
	return llm.NewProvider(ctx, llm.ProviderConfig{
		Provider:        name,
		Model:           r.model,
		AnthropicAPIKey: o.cfg.AnthropicAPIKey,
		AnthropicURL:    o.cfg.AnthropicURL,
		GeminiAPIKey:    o.cfg.GeminiAPIKey,
		OllamaHost:      o.cfg.OllamaHost,
	}, r.logger)
}

func (o *Orchestrator) writeSources(r *run, files *types.FileSet) error {
	dir := filepath.Join(o.cfg.OutputDir, storage.SourceDirName(r.appName, r.id))
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	manifest := &types.Manifest{
		BuildID:   r.id,
		Name:      r.appName,
		Framework: r.framework,
		Entry:     EntryFile(r.framework, files),
		Branded:   r.branded,
	}
	if err := storage.WriteSources(abs, files, manifest, o.opts.OnFileWrite); err != nil {
		return err
	}
	r.sourceDir = abs
	r.logger.Info("sources written", zap.String("dir", abs), zap.Int("files", files.Len()))
	return nil
}

func (o *Orchestrator) notify(path string) {
	if o.opts.OnFileWrite != nil {
		o.opts.OnFileWrite(path)
	}
}

func (o *Orchestrator) publish(ctx context.Context, r *run, exe string) {
	if o.opts.Publisher == nil {
		return
	}
	url, err := o.opts.Publisher.Publish(ctx, r.id, exe)
	if err != nil {
		r.logger.Warn("artifact upload failed", zap.Error(err))
		return
	}
	r.logger.Info("artifact uploaded", zap.String("url", url))
}

// finish persists the terminal record and converts it to a result.
func (o *Orchestrator) finish(ctx context.Context, r *run, status, exePath, output string) types.BuildResult {
	rec := &types.BuildRecord{
		ID:        r.id,
		Name:      r.appName,
		Framework: r.framework,
		Prompt:    r.req.Prompt,
		Status:    status,
		ExePath:   exePath,
		SourceDir: r.sourceDir,
		Provider:  r.provider,
		Model:     r.model,
		Branded:   r.branded,
		BuildTime: time.Since(r.start).Seconds(),
		Output:    output,
		CreatedAt: time.Now(),
	}

	if o.opts.Store == nil {
		r.logger.Warn("build history unavailable, record not persisted",
			zap.Error(types.ErrPersistenceUnavailable))
	} else if err := o.opts.Store.AddBuild(ctx, rec); err != nil {
		r.logger.Warn("build history unavailable, record not persisted", zap.Error(err))
	}

	o.opts.Metrics.ObserveBuild(rec)
	if err := o.opts.Metrics.WriteTextfile(o.cfg.Metrics.Textfile); err != nil {
		r.logger.Warn("metrics export failed", zap.Error(err))
	}

	log := r.logger.Info
	if status != types.StatusCompleted {
		log = r.logger.Warn
	}
	log("build finished",
		zap.String("status", status),
		zap.Float64("seconds", rec.BuildTime),
		zap.String("source_dir", rec.SourceDir))

	return types.BuildResult{
		Success:   status == types.StatusCompleted,
		Output:    output,
		ExePath:   exePath,
		Framework: r.framework,
		AppName:   r.appName,
		Record:    rec,
	}
}

// ListBuilds returns the build history, newest first.
func (o *Orchestrator) ListBuilds(ctx context.Context) ([]types.BuildRecord, error) {
	if o.opts.Store == nil {
		return nil, types.ErrPersistenceUnavailable
	}
	return o.opts.Store.ListBuilds(ctx, 0)
}

// RemoveBuild deletes every record named name and reports how many went.
func (o *Orchestrator) RemoveBuild(ctx context.Context, name string) (int64, error) {
	if o.opts.Store == nil {
		return 0, types.ErrPersistenceUnavailable
	}
	return o.opts.Store.RemoveBuild(ctx, name)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
