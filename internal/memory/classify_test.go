package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saeedalam/promptforge/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     string
		fw      types.Framework
		pattern string
		want    string
	}{
		{
			name:    "scoped colon names the variable",
			err:     `app.ps1: scoped-variable-colon: "$dir:" at line 3; write "${dir}:"`,
			fw:      types.FrameworkPowerShell,
			pattern: "scoped-variable-colon",
			want:    `"${dir}:"`,
		},
		{
			name:    "ps7 operator",
			err:     "app.ps1: ps7-operator: null-coalescing operator '??' requires PowerShell 7",
			fw:      types.FrameworkPowerShell,
			pattern: "ps7-operator",
			want:    "Windows PowerShell 5.1",
		},
		{
			name:    "rust unresolved import names the crate",
			err:     "error[E0432]: unresolved import `serde_json`",
			fw:      types.FrameworkTauri,
			pattern: "unresolved-import",
			want:    "`serde_json`",
		},
		{
			name:    "python missing module",
			err:     "ModuleNotFoundError: No module named 'requests'",
			fw:      types.FrameworkPythonWeb,
			pattern: "missing-package",
			want:    "'requests'",
		},
		{
			name:    "unbalanced braces apply everywhere",
			err:     "main.rs: syntax: unclosed '{' opened at line 4",
			fw:      types.FrameworkTauri,
			pattern: "syntax",
			want:    "close every brace",
		},
		{
			name:    "approved verb only for modules",
			err:     "m.psm1: approved-verb: function 'Fetch-X' must use an approved Verb-Noun name",
			fw:      types.FrameworkPowerShellModule,
			pattern: "approved-verb",
			want:    "approved PowerShell verb",
		},
		{
			name:    "html structure",
			err:     "src/index.html: html-structure: missing <!DOCTYPE html> declaration",
			fw:      types.FrameworkTauri,
			pattern: "html-structure",
			want:    "<!DOCTYPE html>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, pattern := ClassifyDetail(tt.err, tt.fw)
			assert.Equal(t, tt.pattern, pattern)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestClassifyRespectsFramework(t *testing.T) {
	// The module-only verb rule does not fire for plain scripts.
	_, pattern := ClassifyDetail("approved Verb-Noun name", types.FrameworkPowerShell)
	assert.NotEqual(t, "approved-verb", pattern)
}

func TestClassifyFallback(t *testing.T) {
	text, pattern := ClassifyDetail("main.py: custom-rule: something   odd\nhappened", types.FrameworkPythonTk)
	assert.Equal(t, "generic", pattern)
	assert.Equal(t, "Avoid: something odd happened", text)

	long := strings.Repeat("x", 400)
	assert.LessOrEqual(t, len([]rune(Classify(long, types.FrameworkTauri))), len("Avoid: ")+maxSummary)
	assert.Equal(t, "Avoid: unspecified failure", Classify("   ", types.FrameworkTauri))
}

func TestTableEntriesAreComplete(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range Table {
		assert.NotEmpty(t, e.ID)
		assert.NotNil(t, e.Match, e.ID)
		assert.NotNil(t, e.Template, e.ID)
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}
