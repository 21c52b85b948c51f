package packager

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/saeedalam/promptforge/pkg/types"
)

func TestExpand(t *testing.T) {
	job := Job{Framework: types.FrameworkPythonTk, SourceDir: "/tmp/build", Entry: "main.py", AppName: "picker"}
	got := Expand([]string{"pyinstaller", "--onefile", "--name", "{name}", "--distpath", "{source_dir}/dist", "{entry}"}, job)
	assert.Equal(t, []string{
		"pyinstaller", "--onefile", "--name", "picker", "--distpath", "/tmp/build/dist", filepath.Join("/tmp/build", "main.py"),
	}, got)

	assert.Equal(t, []string{filepath.Join("/tmp/build", "dist", "picker.exe")}, Expand([]string{"{output}"}, job))
}

func TestNoop(t *testing.T) {
	res, err := Noop{}.Package(context.Background(), Job{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.True(t, res.Succeeded())
}

func TestExecUnconfiguredFrameworkIsSkipped(t *testing.T) {
	e := NewExec(map[types.Framework][]string{types.FrameworkTauri: {"cargo", "tauri", "build"}}, zaptest.NewLogger(t))
	res, err := e.Package(context.Background(), Job{Framework: types.FrameworkPowerShell, SourceDir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestExecRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	job := Job{Framework: types.FrameworkPowerShell, SourceDir: dir, Entry: "app.ps1", AppName: "report"}

	ok := NewExec(map[types.Framework][]string{
		types.FrameworkPowerShell: {"sh", "-c", "echo packaging {name} && touch '{output}'"},
	}, zaptest.NewLogger(t))
	res, err := ok.Package(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, OutputPath(job), res.ExePath)
	assert.Contains(t, res.Output, "packaging report")

	failing := NewExec(map[types.Framework][]string{
		types.FrameworkPowerShell: {"sh", "-c", "echo 'ParserError: unexpected token' >&2; exit 3"},
	}, nil)
	res, err = failing.Package(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Succeeded())
	assert.Contains(t, res.Output, "ParserError")

	missing := NewExec(map[types.Framework][]string{
		types.FrameworkPowerShell: {"promptforge-no-such-packager"},
	}, nil)
	_, err = missing.Package(context.Background(), job)
	assert.Error(t, err)
}
