package merge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedalam/promptforge/pkg/types"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	}
	return dir
}

func TestMergeEntryInlinesIncludes(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"app.ps1": ". \"$PSScriptRoot\\source\\data.ps1\"\n" +
			". (Join-Path $PSScriptRoot 'source/ui.ps1')\n" +
			"Show-Report (Get-Data)\n",
		"source/data.ps1": "function Get-Data { 42 }\n",
		"source/ui.ps1":   "function Show-Report($d) { Write-Host $d }\n",
	})

	res, err := MergeEntry(dir, "app.ps1")
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.Equal(t, filepath.Join(dir, "app.merged.ps1"), res.Path)
	assert.Equal(t, []string{"source/data.ps1", "source/ui.ps1"}, res.Included)

	raw, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	merged := string(raw)

	assert.NotContains(t, merged, "$PSScriptRoot")
	data := strings.Index(merged, "function Get-Data")
	ui := strings.Index(merged, "function Show-Report")
	call := strings.Index(merged, "Show-Report (Get-Data)")
	require.True(t, data >= 0 && ui >= 0 && call >= 0, merged)
	assert.Less(t, data, ui)
	assert.Less(t, ui, call)
	assert.Contains(t, merged, "#region source/data.ps1\n")
	assert.Contains(t, merged, "#endregion source/ui.ps1\n")
}

func TestMergeEntryNested(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"app.ps1":   ". .\\lib\\a.ps1\n. .\\lib\\b.ps1\nRun\n",
		"lib/a.ps1": ". \"$PSScriptRoot\\b.ps1\"\nfunction A { B }\n",
		"lib/b.ps1": "function B { 1 }\n",
	})

	res, err := MergeEntry(dir, "app.ps1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/b.ps1", "lib/a.ps1"}, res.Included)

	raw, _ := os.ReadFile(res.Path)
	assert.Equal(t, 1, strings.Count(string(raw), "function B"), "each file is inlined once")
}

func TestMergeEntryWithoutDirectives(t *testing.T) {
	dir := writeTree(t, map[string]string{"app.ps1": "Write-Host 'solo'\n"})

	res, err := MergeEntry(dir, "app.ps1")
	require.NoError(t, err)
	assert.False(t, res.Merged)
	assert.Equal(t, filepath.Join(dir, "app.ps1"), res.Path)
	assert.NoFileExists(t, filepath.Join(dir, "app.merged.ps1"))
}

func TestMergeEntryWithHeader(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"app.ps1": "# Built with Acme\n. \"$PSScriptRoot\\lib.ps1\"\nShow-Total\n",
		"lib.ps1": "# Built with Acme\r\nfunction Show-Total { Write-Host 3 }\r\n",
	})

	res, err := MergeEntry(dir, "app.ps1", WithHeader("# Built with Acme"))
	require.NoError(t, err)
	require.True(t, res.Merged)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	merged := string(data)
	assert.True(t, strings.HasPrefix(merged, "# Built with Acme\n#region lib.ps1\n"), merged)
	assert.Equal(t, 1, strings.Count(merged, "Built with Acme"))
	assert.Contains(t, merged, "function Show-Total")
	assert.True(t, strings.HasSuffix(merged, "Show-Total\n"), merged)
}

func TestMergeEntryErrors(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"app.ps1":    ". .\\missing.ps1\n",
		"escape.ps1": ". ..\\outside.ps1\n",
	})

	_, err := MergeEntry(dir, "nope.ps1")
	assert.ErrorIs(t, err, types.ErrEntryNotFound)

	_, err = MergeEntry(dir, "app.ps1")
	assert.Error(t, err)

	_, err = MergeEntry(dir, "escape.ps1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")

	_, err = Merge(t.TempDir())
	assert.ErrorIs(t, err, types.ErrEntryNotFound)
}

func TestMergeFindsDefaultEntry(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.ps1": ". .\\util.ps1\nGo\n",
		"util.ps1": "function Go { }\n",
	})
	res, err := Merge(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main.merged.ps1"), res.Path)
}

func TestScan(t *testing.T) {
	src := strings.Join([]string{
		`. "$PSScriptRoot\lib\a.ps1"`,
		`. '.\b.ps1'  # helpers`,
		`. ./c.psm1`,
		`. (Join-Path $PSScriptRoot "d.ps1")`,
		`. $env:TEMP\x.ps1`,
		`. C:\abs\y.ps1`,
		`. .\notes.txt`,
		`$x = 1`,
	}, "\n")

	var targets []string
	for _, d := range Scan(src) {
		targets = append(targets, d.Target)
	}
	assert.Equal(t, []string{"lib/a.ps1", "b.ps1", "c.psm1", "d.ps1"}, targets)
	assert.Equal(t, 4, Scan(src)[3].Line)
}

func TestMergedName(t *testing.T) {
	assert.Equal(t, "app.merged.ps1", MergedName("app.ps1"))
	assert.Equal(t, "src/main.merged.ps1", MergedName("src/main.ps1"))
}
