package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/saeedalam/promptforge/internal/brand"
	"github.com/saeedalam/promptforge/internal/config"
	"github.com/saeedalam/promptforge/internal/llm"
	"github.com/saeedalam/promptforge/internal/metrics"
	"github.com/saeedalam/promptforge/internal/packager"
	"github.com/saeedalam/promptforge/internal/storage"
	"github.com/saeedalam/promptforge/pkg/types"
)

// ===== FIXTURES =====

const tkResponse = "```python main.py\n" +
	"import tkinter as tk\n" +
	"from tkinter import colorchooser\n" +
	"\n" +
	"root = tk.Tk()\n" +
	"root.title(\"Color Picker\")\n" +
	"tk.Button(root, text=\"Pick\", command=colorchooser.askcolor).pack()\n" +
	"root.mainloop()\n" +
	"```\n"

const psResponse = "```powershell app.ps1\n" +
	". \"$PSScriptRoot\\source\\data.ps1\"\n" +
	"Write-Host (Get-Data)\n" +
	"```\n\n" +
	"```powershell source/data.ps1\n" +
	"function Get-Data { 42 }\n" +
	"```\n"

const ps7Response = "```powershell app.ps1\n$x = $env:USERNAME ?? 'nobody'\nWrite-Host $x\n```\n"

type harness struct {
	cfg     *config.Config
	store   *storage.Store
	metrics *metrics.Metrics

	mu      sync.Mutex
	written []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(root, "builds")
	cfg.LogDir = filepath.Join(root, "logs")

	store := storage.NewStore(filepath.Join(root, config.Dir), zaptest.NewLogger(t))
	t.Cleanup(func() { store.Close() })
	return &harness{cfg: cfg, store: store, metrics: metrics.New()}
}

func (h *harness) orchestrator(t *testing.T, provider llm.Provider, mutate func(*Options)) *Orchestrator {
	opts := Options{
		Config:   h.cfg,
		Provider: provider,
		Store:    h.store,
		Metrics:  h.metrics,
		Logger:   zaptest.NewLogger(t),
		OnFileWrite: func(p string) {
			h.mu.Lock()
			h.written = append(h.written, p)
			h.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

type fakePackager struct {
	res  packager.Result
	jobs []packager.Job
}

func (f *fakePackager) Package(_ context.Context, job packager.Job) (packager.Result, error) {
	f.jobs = append(f.jobs, job)
	return f.res, nil
}

type fakePublisher struct {
	files []string
}

func (f *fakePublisher) Publish(_ context.Context, buildID, file string) (string, error) {
	f.files = append(f.files, file)
	return "https://artifacts.example/builds/" + buildID, nil
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

// ===== BUILDS =====

func TestBuildTkinterApp(t *testing.T) {
	h := newHarness(t)
	provider := llm.NewScripted(llm.Response{Content: tkResponse, StopReason: llm.StopEndTurn})
	o := h.orchestrator(t, provider, nil)
	ctx := context.Background()

	rec, err := o.BuildApp(ctx, types.BuildRequest{Prompt: "a tkinter color picker tool"})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, types.StatusCompleted, rec.Status, rec.Output)
	assert.Equal(t, types.FrameworkPythonTk, rec.Framework)
	assert.Equal(t, "tkinter-color-picker-tool", rec.Name)
	assert.Equal(t, "scripted", rec.Provider)
	assert.True(t, rec.Branded)
	assert.Empty(t, rec.ExePath)
	assert.Contains(t, rec.Output, "validation passed after 0 repair attempt(s)")
	assert.Contains(t, rec.Output, "sources only")

	require.NotEmpty(t, rec.SourceDir)
	main := readFile(t, filepath.Join(rec.SourceDir, "main.py"))
	assert.Equal(t, 1, strings.Count(main, brand.DefaultMarker))

	m, err := storage.ReadManifest(rec.SourceDir)
	require.NoError(t, err)
	assert.Equal(t, "main.py", m.Entry)
	assert.True(t, m.Branded)

	builds, err := o.ListBuilds(ctx)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, rec.ID, builds[0].ID)

	assert.Len(t, provider.Calls(), 1, "short prompts are not planned")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.BuildsTotal.WithLabelValues("python-tk", "completed")))
}

func TestBuildNoBranding(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t, llm.NewScripted(llm.Response{Content: tkResponse}), nil)

	rec, err := o.BuildApp(context.Background(), types.BuildRequest{Prompt: "a tkinter color picker", NoBranding: true, Name: "Picker App"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, rec.Status)
	assert.False(t, rec.Branded)
	assert.Equal(t, "Picker-App", rec.Name)
	assert.NotContains(t, readFile(t, filepath.Join(rec.SourceDir, "main.py")), brand.DefaultMarker)
}

func TestBuildRejectsEmptyPrompt(t *testing.T) {
	h := newHarness(t)
	provider := llm.NewScripted(llm.Response{Content: tkResponse})
	o := h.orchestrator(t, provider, nil)

	rec, err := o.BuildApp(context.Background(), types.BuildRequest{Prompt: "   "})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
	assert.Nil(t, rec)
	assert.Empty(t, provider.Calls())

	builds, err := o.ListBuilds(context.Background())
	require.NoError(t, err)
	assert.Empty(t, builds)
}

func TestBuildExhaustedRepairs(t *testing.T) {
	h := newHarness(t)
	h.cfg.MaxRetries = 1
	provider := llm.NewScripted(llm.Response{Content: ps7Response})
	o := h.orchestrator(t, provider, nil)
	ctx := context.Background()

	rec, err := o.BuildApp(ctx, types.BuildRequest{Prompt: "a powershell script that shows the user name"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, rec.Status)
	assert.Equal(t, types.FrameworkPowerShell, rec.Framework)
	assert.Contains(t, rec.Output, "validation failed after 1 repair attempt(s)")
	assert.Len(t, provider.Calls(), 2)

	assert.NotEmpty(t, rec.SourceDir, "failed sources are kept for inspection")
	assert.FileExists(t, filepath.Join(rec.SourceDir, "app.ps1"))

	assert.NotEmpty(t, o.Memory().Get(ctx, types.FrameworkPowerShell))
	stored, err := h.store.Constraints(ctx, types.FrameworkPowerShell)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	// The learned constraint reaches the next build's system prompt.
	next := llm.NewScripted(llm.Response{Content: psResponse})
	_, err = h.orchestrator(t, next, nil).BuildApp(ctx, types.BuildRequest{Prompt: "a powershell script"})
	require.NoError(t, err)
	assert.Contains(t, next.Calls()[0].SystemPrompt, stored[0].ConstraintText)
}

func TestBuildTruncated(t *testing.T) {
	h := newHarness(t)
	provider := llm.NewScripted(llm.Response{Content: "```python main.py\nimport tk", StopReason: llm.StopMaxTokens})
	o := h.orchestrator(t, provider, nil)

	rec, err := o.BuildApp(context.Background(), types.BuildRequest{Prompt: "a tkinter clock", MaxTokens: 1000})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, rec.Status)
	assert.Contains(t, rec.Output, "truncated at 1000 max tokens")
	assert.Empty(t, rec.SourceDir)

	logs, err := os.ReadDir(h.cfg.LogDir)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Truncations.WithLabelValues("python-tk")))
}

func TestBuildMergesPowerShell(t *testing.T) {
	h := newHarness(t)
	pkg := &fakePackager{res: packager.Result{ExitCode: 0}}
	o := h.orchestrator(t, llm.NewScripted(llm.Response{Content: psResponse}), func(opts *Options) {
		opts.Packager = pkg
	})

	rec, err := o.BuildApp(context.Background(), types.BuildRequest{Prompt: "a powershell disk report"})
	require.NoError(t, err)
	require.Equal(t, types.StatusCompleted, rec.Status, rec.Output)

	mergedPath := filepath.Join(rec.SourceDir, "app.merged.ps1")
	merged := readFile(t, mergedPath)
	assert.Contains(t, merged, "function Get-Data")
	assert.NotContains(t, merged, "$PSScriptRoot")
	assert.True(t, strings.HasPrefix(merged, "# "+brand.DefaultMarker+"\n"), merged)
	assert.Equal(t, 1, strings.Count(merged, brand.DefaultMarker), "merged script carries one header")

	require.Len(t, pkg.jobs, 1)
	assert.Equal(t, mergedPath, pkg.jobs[0].Entry)
	assert.Equal(t, rec.Name, pkg.jobs[0].AppName)

	assert.Contains(t, h.written, mergedPath)
	assert.Contains(t, h.written, filepath.Join(rec.SourceDir, "app.ps1"))
	assert.Contains(t, h.written, filepath.Join(rec.SourceDir, "source", "data.ps1"))
}

func TestBuildPackagerFailureIsLearned(t *testing.T) {
	h := newHarness(t)
	pkg := &fakePackager{res: packager.Result{ExitCode: 1, Output: "building...\nModuleNotFoundError: No module named 'requests'\n"}}
	o := h.orchestrator(t, llm.NewScripted(llm.Response{Content: tkResponse}), func(opts *Options) {
		opts.Packager = pkg
	})
	ctx := context.Background()

	rec, err := o.BuildApp(ctx, types.BuildRequest{Prompt: "a tkinter color picker"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, rec.Status)
	assert.Contains(t, rec.Output, "packager exited with code 1")
	assert.Contains(t, rec.Output, "No module named 'requests'")
	assert.NotEmpty(t, o.Memory().Get(ctx, types.FrameworkPythonTk))
}

func TestBuildPublishesExecutable(t *testing.T) {
	h := newHarness(t)
	pub := &fakePublisher{}
	pkg := &fakePackager{res: packager.Result{ExitCode: 0, ExePath: "/tmp/dist/picker.exe"}}
	o := h.orchestrator(t, llm.NewScripted(llm.Response{Content: tkResponse}), func(opts *Options) {
		opts.Packager = pkg
		opts.Publisher = pub
	})

	rec, err := o.BuildApp(context.Background(), types.BuildRequest{Prompt: "a tkinter color picker"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, rec.Status)
	assert.Equal(t, "/tmp/dist/picker.exe", rec.ExePath)
	assert.Equal(t, []string{"/tmp/dist/picker.exe"}, pub.files)
}

func TestBuildProviderUnavailable(t *testing.T) {
	h := newHarness(t)
	h.cfg.Provider = "carrier-pigeon"
	o := h.orchestrator(t, nil, nil)

	rec, err := o.BuildApp(context.Background(), types.BuildRequest{Prompt: "a tkinter clock"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, rec.Status)
	assert.Contains(t, rec.Output, "provider unavailable")
}

// ===== HISTORY =====

func TestRemoveBuild(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t, llm.NewScripted(llm.Response{Content: tkResponse}), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := o.BuildApp(ctx, types.BuildRequest{Prompt: "a tkinter clock", Name: "clock"})
		require.NoError(t, err)
	}
	_, err := o.BuildApp(ctx, types.BuildRequest{Prompt: "a tkinter timer", Name: "timer"})
	require.NoError(t, err)

	n, err := o.RemoveBuild(ctx, "clock")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	builds, err := o.ListBuilds(ctx)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "timer", builds[0].Name)

	n, err = o.RemoveBuild(ctx, "clock")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithoutStore(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t, llm.NewScripted(llm.Response{Content: tkResponse}), func(opts *Options) {
		opts.Store = nil
	})
	ctx := context.Background()

	rec, err := o.BuildApp(ctx, types.BuildRequest{Prompt: "a tkinter clock"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, rec.Status)

	_, err = o.ListBuilds(ctx)
	assert.ErrorIs(t, err, types.ErrPersistenceUnavailable)
	_, err = o.RemoveBuild(ctx, "tkinter-clock")
	assert.ErrorIs(t, err, types.ErrPersistenceUnavailable)
}
