package repair

import (
	"path"
	"strings"

	"github.com/saeedalam/promptforge/internal/validate"
	"github.com/saeedalam/promptforge/pkg/types"
)

// Fix is a deterministic rewrite for an error shape the validator reports.
type Fix struct {
	ID string
	// Trigger is the substring an error must contain for the fix to run.
	// Empty means the fix always runs.
	Trigger    string
	Extensions []string
	Apply      func(content string) (string, bool)
}

func (f Fix) triggered(errs []string) bool {
	if f.Trigger == "" {
		return true
	}
	for _, e := range errs {
		if strings.Contains(e, f.Trigger) {
			return true
		}
	}
	return false
}

func (f Fix) appliesTo(p string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(p))
	for _, e := range f.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

var codeExtensions = []string{
	".ps1", ".psm1", ".psd1", ".py", ".rs", ".js", ".mjs", ".ts", ".html", ".css", ".toml", ".json",
}

// DefaultFixes is the ordered auto-fix table.
var DefaultFixes = []Fix{
	{
		ID: "bom",
		Apply: func(s string) (string, bool) {
			out := strings.TrimPrefix(s, "\uFEFF")
			return out, out != s
		},
	},
	{
		ID:         "stray-fence",
		Extensions: codeExtensions,
		Apply:      stripStrayFences,
	},
	{
		ID:         "scoped-variable-colon",
		Trigger:    "scoped-variable-colon",
		Extensions: []string{".ps1", ".psm1"},
		Apply: func(s string) (string, bool) {
			out, n := validate.FixScopedColonRefs(s)
			return out, n > 0
		},
	},
}

// stripStrayFences drops markdown fence lines left at the very start or end
// of a file body.
func stripStrayFences(s string) (string, bool) {
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && isFenceLine(lines[start]) {
		start++
	}
	for end > start {
		if strings.TrimSpace(lines[end-1]) == "" && end-1 > start && isFenceLine(lines[end-2]) {
			end--
			continue
		}
		if isFenceLine(lines[end-1]) {
			end--
			continue
		}
		break
	}
	if start == 0 && end == len(lines) {
		return s, false
	}
	return strings.Join(lines[start:end], "\n"), true
}

func isFenceLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

// ApplyFixes runs the triggered fixes over every file and returns the
// rewritten set with the ids of fixes that changed something.
func ApplyFixes(fixes []Fix, files *types.FileSet, errs []string) (*types.FileSet, []string) {
	out := files.Clone()
	var applied []string
	for _, fx := range fixes {
		if !fx.triggered(errs) {
			continue
		}
		changed := false
		for _, f := range out.Files() {
			if !fx.appliesTo(f.Path) {
				continue
			}
			if content, ok := fx.Apply(f.Content); ok {
				f.Content = content
				out.Put(f)
				changed = true
			}
		}
		if changed {
			applied = append(applied, fx.ID)
		}
	}
	return out, applied
}
