package repair

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/saeedalam/promptforge/internal/generate"
	"github.com/saeedalam/promptforge/internal/validate"
	"github.com/saeedalam/promptforge/pkg/types"
)

// ===== FAKES =====

type genStep struct {
	res generate.Result
	err error
}

type fakeGen struct {
	steps  []genStep
	inputs []generate.Input
}

func (g *fakeGen) Generate(_ context.Context, in generate.Input) (generate.Result, error) {
	g.inputs = append(g.inputs, in)
	if len(g.steps) == 0 {
		return generate.Result{}, errors.New("no more steps")
	}
	s := g.steps[0]
	g.steps = g.steps[1:]
	return s.res, s.err
}

type fakeLearner struct {
	calls [][]string
}

func (l *fakeLearner) Learn(_ context.Context, _ types.Framework, errs []string) []string {
	l.calls = append(l.calls, errs)
	return []string{"Do not use PowerShell 7 operators."}
}

func ps(content string) *types.FileSet {
	return types.NewFileSet(types.GeneratedFile{Path: "app.ps1", Language: "powershell", Content: content})
}

func psInput() generate.Input {
	return generate.Input{Spec: "a disk report", Framework: types.FrameworkPowerShell}
}

// ===== TESTS =====

func TestRunPassesWithoutRepair(t *testing.T) {
	gen := &fakeGen{}
	mem := &fakeLearner{}
	loop := New(gen, validate.New(nil), mem, 3, zaptest.NewLogger(t))

	out, err := loop.Run(context.Background(), psInput(), ps(`Write-Host "ok"`))
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, out.State)
	assert.Zero(t, out.Attempts)
	assert.Empty(t, gen.inputs)
	assert.Empty(t, mem.calls)
	assert.Equal(t, "validation passed after 0 repair attempt(s)", out.Output)
}

func TestRunAutoFixesScopedColon(t *testing.T) {
	gen := &fakeGen{}
	mem := &fakeLearner{}
	loop := New(gen, validate.New(nil), mem, 3, zaptest.NewLogger(t))

	out, err := loop.Run(context.Background(), psInput(), ps(`Write-Host "Path $dir: done"`))
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, out.State)
	assert.Zero(t, out.Attempts, "fixed without regenerating")
	assert.Contains(t, out.Fixes, "scoped-variable-colon")

	f, _ := out.Files.Get("app.ps1")
	assert.Contains(t, f.Content, "${dir}:")
	assert.Empty(t, gen.inputs)
}

func TestRunRegeneratesWithErrorsAndConstraints(t *testing.T) {
	gen := &fakeGen{steps: []genStep{{res: generate.Result{Success: true, Files: ps(`Write-Host "fixed"`)}}}}
	mem := &fakeLearner{}
	loop := New(gen, validate.New(nil), mem, 3, zaptest.NewLogger(t))

	var states []State
	loop.OnTransition = func(s State, _ int) { states = append(states, s) }

	out, err := loop.Run(context.Background(), psInput(), ps(`$x = $a ?? 1`))
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.Contains(t, out.Constraints, "Do not use PowerShell 7 operators.")

	require.Len(t, gen.inputs, 1)
	in := gen.inputs[0]
	require.NotNil(t, in.Repair)
	assert.NotEmpty(t, in.Repair.Errors)
	assert.Contains(t, in.Constraints, "Do not use PowerShell 7 operators.")
	prev, _ := in.Repair.Files.Get("app.ps1")
	assert.Equal(t, `$x = $a ?? 1`, prev.Content)

	assert.Equal(t, []State{
		StateGenerated, StateValidating, StateRepairing, StateGenerated, StateValidating, StateSuccess,
	}, states)
}

func TestRunExhausts(t *testing.T) {
	bad := generate.Result{Success: true, Files: ps(`$x = $a ?? 1`)}
	gen := &fakeGen{steps: []genStep{{res: bad}, {res: bad}}}
	mem := &fakeLearner{}
	loop := New(gen, validate.New(nil), mem, 2, zaptest.NewLogger(t))

	out, err := loop.Run(context.Background(), psInput(), ps(`$x = $a ?? 1`))
	require.ErrorIs(t, err, types.ErrRepairExhausted)
	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, 2, out.Attempts)
	assert.Len(t, gen.inputs, 2)
	assert.Len(t, mem.calls, 3, "every failed validation is learned from")
	assert.Contains(t, out.Output, "validation failed after 2 repair attempt(s)")
	assert.False(t, out.Validation.Success)
}

func TestRunZeroRetries(t *testing.T) {
	gen := &fakeGen{}
	loop := New(gen, validate.New(nil), &fakeLearner{}, -1, nil)

	out, err := loop.Run(context.Background(), psInput(), ps(`$x = $a ?? 1`))
	require.ErrorIs(t, err, types.ErrRepairExhausted)
	assert.Zero(t, out.Attempts)
	assert.Empty(t, gen.inputs)
}

func TestRunTruncatedRepairSpendsAttempt(t *testing.T) {
	gen := &fakeGen{steps: []genStep{
		{res: generate.Result{LogPath: "/tmp/truncated.log"}, err: types.ErrTruncated},
		{res: generate.Result{Success: true, Files: ps(`Write-Host "ok"`)}},
	}}
	mem := &fakeLearner{}
	loop := New(gen, validate.New(nil), mem, 3, zaptest.NewLogger(t))

	out, err := loop.Run(context.Background(), psInput(), ps(`$x = $a ?? 1`))
	require.NoError(t, err)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 1, out.Truncations)
	assert.Len(t, mem.calls, 1, "unchanged files are learned from once")
	assert.Equal(t, gen.inputs[0].Constraints, gen.inputs[1].Constraints)
	assert.Equal(t, "/tmp/truncated.log", out.LogPath)

	prev, _ := gen.inputs[1].Repair.Files.Get("app.ps1")
	assert.Equal(t, `$x = $a ?? 1`, prev.Content, "files from before the truncation stay in play")
}

func TestRunProviderFailure(t *testing.T) {
	gen := &fakeGen{steps: []genStep{{res: generate.Result{Output: "completion failed: offline"}, err: errors.New("offline")}}}
	loop := New(gen, validate.New(nil), &fakeLearner{}, 3, nil)

	out, err := loop.Run(context.Background(), psInput(), ps(`$x = $a ?? 1`))
	require.EqualError(t, err, "offline")
	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, "completion failed: offline", out.Output)
}

func TestStripStrayFences(t *testing.T) {
	out, ok := stripStrayFences("```powershell\nWrite-Host hi\n```\n")
	assert.True(t, ok)
	assert.Equal(t, "Write-Host hi", out)

	out, ok = stripStrayFences("Write-Host hi")
	assert.False(t, ok)
	assert.Equal(t, "Write-Host hi", out)
}

func TestApplyFixesLeavesInputUntouched(t *testing.T) {
	in := types.NewFileSet(
		types.GeneratedFile{Path: "app.ps1", Content: "\uFEFFWrite-Host hi"},
		types.GeneratedFile{Path: "README.md", Content: "```\nusage\n```"},
	)
	out, applied := ApplyFixes(DefaultFixes, in, nil)
	assert.Equal(t, []string{"bom"}, applied)

	f, _ := out.Get("app.ps1")
	assert.Equal(t, "Write-Host hi", f.Content)
	orig, _ := in.Get("app.ps1")
	assert.Equal(t, "\uFEFFWrite-Host hi", orig.Content)
	md, _ := out.Get("README.md")
	assert.Equal(t, "```\nusage\n```", md.Content, "markdown is not a code file")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "repairing", StateRepairing.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
}
