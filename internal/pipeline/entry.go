package pipeline

import (
	"path"
	"strings"

	"github.com/saeedalam/promptforge/pkg/types"
)

// EntryFile picks the file a packager starts from.
func EntryFile(fw types.Framework, files *types.FileSet) string {
	var candidates []string
	switch fw {
	case types.FrameworkPowerShell:
		candidates = []string{"app.ps1", "main.ps1"}
	case types.FrameworkPythonTk:
		candidates = []string{"main.py", "app.py"}
	case types.FrameworkPythonWeb:
		candidates = []string{"main.py", "app.py", "server.py"}
	case types.FrameworkTauri:
		candidates = []string{"src-tauri/src/main.rs", "src/main.rs"}
	}
	for _, c := range candidates {
		if _, ok := files.Get(c); ok {
			return c
		}
	}

	want := map[types.Framework]string{
		types.FrameworkPowerShell:       ".ps1",
		types.FrameworkPowerShellModule: ".psm1",
		types.FrameworkPythonTk:         ".py",
		types.FrameworkPythonWeb:        ".py",
		types.FrameworkTauri:            ".rs",
	}[fw]
	for _, p := range files.Paths() {
		if strings.EqualFold(path.Ext(p), want) {
			return p
		}
	}
	return fw.DefaultEntry()
}
