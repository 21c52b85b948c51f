package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saeedalam/promptforge/pkg/types"
)

func TestRoute(t *testing.T) {
	r := New()

	tests := []struct {
		prompt string
		want   types.Framework
	}{
		{"a tkinter color picker tool", types.FrameworkPythonTk},
		{"python gui for renaming photos", types.FrameworkPythonTk},
		{"a sales dashboard", types.FrameworkPythonWeb},
		{"web app with login and a database", types.FrameworkPythonWeb},
		{"a tauri markdown editor", types.FrameworkTauri},
		{"a cmdlet set for managing printers", types.FrameworkPowerShellModule},
		{"powershell script that cleans temp folders", types.FrameworkPowerShell},
		{"TKINTER stopwatch", types.FrameworkPythonTk},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Route(tt.prompt, ""))
		})
	}
}

func TestRouteDefaultsWhenNothingMatches(t *testing.T) {
	d := New().Explain("something that sorts my files", "")
	assert.Equal(t, types.FrameworkPowerShell, d.Framework)
	assert.True(t, d.Defaulted)
}

func TestRouteOverrideWins(t *testing.T) {
	d := New().Explain("a tkinter color picker tool", "tauri")
	assert.Equal(t, types.FrameworkTauri, d.Framework)
	assert.True(t, d.Override)

	// An unknown override is ignored.
	assert.Equal(t, types.FrameworkPythonTk, New().Route("a tkinter color picker tool", "cobol"))
}

func TestRouteTieFollowsPriority(t *testing.T) {
	r := NewWithRules(map[types.Framework][]Rule{
		types.FrameworkPowerShell: {rule("tool")},
		types.FrameworkPythonTk:   {rule("tool")},
	})
	assert.Equal(t, types.FrameworkPythonTk, r.Route("a tool", ""))
}

func TestRuleNeedsAllTerms(t *testing.T) {
	r := New()
	// "python" alone matches no rule that requires a second term.
	d := r.Explain("python", "")
	assert.Zero(t, d.Scores[types.FrameworkPythonTk])
}
