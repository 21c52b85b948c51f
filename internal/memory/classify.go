// Package memory keeps the constraints learned from failed builds and feeds
// them back into future generations for the same framework.
package memory

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/saeedalam/promptforge/pkg/types"
)

// Entry maps a recognised failure shape to a directive.
type Entry struct {
	ID         string
	Frameworks []types.Framework // empty = every framework
	Match      *regexp.Regexp
	Template   func(groups []string) string
}

func (e Entry) appliesTo(fw types.Framework) bool {
	if len(e.Frameworks) == 0 {
		return true
	}
	for _, f := range e.Frameworks {
		if f == fw {
			return true
		}
	}
	return false
}

func fixed(s string) func([]string) string {
	return func([]string) string { return s }
}

// firstGroup returns the first non-empty capture group, or fallback.
func firstGroup(groups []string, fallback string) string {
	for _, g := range groups[1:] {
		if g != "" {
			return g
		}
	}
	return fallback
}

var (
	powershell = []types.Framework{types.FrameworkPowerShell, types.FrameworkPowerShellModule}
	python     = []types.Framework{types.FrameworkPythonTk, types.FrameworkPythonWeb}
	tauri      = []types.Framework{types.FrameworkTauri}
	module     = []types.Framework{types.FrameworkPowerShellModule}
)

// Table is the ordered classifier. The first match wins; anything unmatched
// falls through to the generic directive in Classify.
var Table = []Entry{
	{
		ID:         "scoped-variable-colon",
		Frameworks: powershell,
		Match:      regexp.MustCompile(`(?is)scoped-variable-colon.*?"\$(\w+):"|"\$(\w+):"|scoped-variable-colon|':' was not followed by a valid variable name|variable reference is not valid`),
		Template: func(g []string) string {
			name := firstGroup(g, "name")
			return `Avoid "$` + name + `:" inside double-quoted strings; write "${` + name + `}:" or "$($` + name + `):" instead.`
		},
	},
	{
		ID:         "ps7-operator",
		Frameworks: powershell,
		Match:      regexp.MustCompile(`(?i)ps7-operator|requires PowerShell 7|null-coalescing|null-conditional|unexpected token '\?`),
		Template:   fixed("Target Windows PowerShell 5.1: avoid the '??', '?.' and '?[' operators; use explicit if/else null checks."),
	},
	{
		ID:         "unresolved-import",
		Frameworks: tauri,
		Match:      regexp.MustCompile("(?i)(?:error\\[E04\\d\\d\\]:\\s*)?(?:unresolved import [`']?([\\w:]+)|can't find crate for [`']?(\\w+)|use of undeclared crate or module [`']?(\\w+))|E0432|E0433|E0463"),
		Template: func(g []string) string {
			return "Only use crates declared in Cargo.toml; do not reference unresolved imports such as `" + firstGroup(g, "unknown") + "`."
		},
	},
	{
		ID:         "borrow-violation",
		Frameworks: tauri,
		Match:      regexp.MustCompile(`(?i)E0499|E0502|E0505|E0382|E0597|borrow of moved value|cannot borrow|does not live long enough`),
		Template:   fixed("Avoid ownership/borrow violations: clone data or narrow borrow scopes so no value is used after move or borrowed mutably twice."),
	},
	{
		ID:         "missing-package",
		Frameworks: python,
		Match:      regexp.MustCompile(`(?i)(?:ModuleNotFoundError:\s*)?No module named ['"]?([\w.]+)|ImportError: cannot import name ['"]?(\w+)|ModuleNotFoundError`),
		Template: func(g []string) string {
			return "Only import the Python standard library and declared packages; '" + firstGroup(g, "that module") + "' is not available."
		},
	},
	{
		ID:         "approved-verb",
		Frameworks: module,
		Match:      regexp.MustCompile(`(?i)approved-verb|approved Verb-Noun`),
		Template:   fixed("Name every module function with an approved PowerShell verb (Get-, Set-, New-, Remove-, Invoke-, ...) in Verb-Noun form."),
	},
	{
		ID:         "module-exports",
		Frameworks: module,
		Match:      regexp.MustCompile(`(?i)module exports no functions|must declare FunctionsToExport|must declare ModuleVersion|has no \.psm1`),
		Template:   fixed("Emit a .psm1 with public functions and a .psd1 manifest declaring ModuleVersion and FunctionsToExport listing them."),
	},
	{
		ID:       "syntax",
		Match:    regexp.MustCompile(`(?i)\bsyntax\b|unclosed '|unexpected '[})\]]'|mismatched '|unterminated`),
		Template: fixed("Emit complete files: close every brace, parenthesis and string before the closing fence."),
	},
	{
		ID:         "invoke-expression",
		Frameworks: powershell,
		Match:      regexp.MustCompile(`(?i)Invoke-Expression|\biex\b`),
		Template:   fixed("Never use Invoke-Expression or iex; call commands directly with splatted parameters."),
	},
	{
		ID:         "forced-deletion",
		Frameworks: powershell,
		Match:      regexp.MustCompile(`(?i)recursive forced deletion`),
		Template:   fixed("Do not combine Remove-Item -Recurse -Force; delete specific, validated paths only."),
	},
	{
		ID:         "elevation",
		Frameworks: powershell,
		Match:      regexp.MustCompile(`(?i)elevated process launch|-Verb\s+RunAs`),
		Template:   fixed("Do not request elevation with Start-Process -Verb RunAs; run with the caller's privileges."),
	},
	{
		ID:         "com-object",
		Frameworks: powershell,
		Match:      regexp.MustCompile(`(?i)COM object`),
		Template:   fixed("Do not instantiate COM objects (New-Object -ComObject); use native cmdlets or .NET types."),
	},
	{
		ID:         "remote-wmi",
		Frameworks: powershell,
		Match:      regexp.MustCompile(`(?i)remote WMI`),
		Template:   fixed("Do not query remote machines with WMI/CIM -ComputerName; operate on the local machine only."),
	},
	{
		ID:         "network-listener",
		Frameworks: powershell,
		Match:      regexp.MustCompile(`(?i)network listener`),
		Template:   fixed("Do not open raw network listeners (TcpListener, HttpListener)."),
	},
	{
		ID:         "python-eval",
		Frameworks: python,
		Match:      regexp.MustCompile(`(?i)eval\(\) executes|exec\(\) executes`),
		Template:   fixed("Never use eval() or exec(); parse input explicitly (ast.literal_eval, int(), json.loads)."),
	},
	{
		ID:         "python-shell",
		Frameworks: python,
		Match:      regexp.MustCompile(`(?i)OS command execution|shell=True`),
		Template:   fixed("Do not shell out (os.system, os.popen, subprocess with shell=True); use Python libraries instead."),
	},
	{
		ID:         "python-dynamic-import",
		Frameworks: python,
		Match:      regexp.MustCompile(`(?i)dynamic import`),
		Template:   fixed("Use static import statements; no __import__ or importlib.import_module."),
	},
	{
		ID:         "html-structure",
		Frameworks: tauri,
		Match:      regexp.MustCompile(`(?i)DOCTYPE|missing <head>|missing <body>`),
		Template:   fixed("Every bundled HTML file must start with <!DOCTYPE html> and contain <head> and <body> elements."),
	},
	{
		ID:         "external-origin",
		Frameworks: tauri,
		Match:      regexp.MustCompile(`(?i)external origin`),
		Template:   fixed("Bundle all scripts and styles locally; never reference CDNs or other external origins."),
	},
	{
		ID:         "html-injection",
		Frameworks: tauri,
		Match:      regexp.MustCompile(`(?i)raw HTML injection|innerHTML|document\.write`),
		Template:   fixed("Build DOM nodes with createElement and textContent; never assign innerHTML or call document.write."),
	},
	{
		ID:         "script-eval",
		Frameworks: tauri,
		Match:      regexp.MustCompile(`(?i)dynamic function construction|new Function|eval\(\) in bundled`),
		Template:   fixed("Never use eval() or new Function() in frontend scripts."),
	},
	{
		ID:         "tauri-layout",
		Frameworks: tauri,
		Match:      regexp.MustCompile(`(?i)requires a Cargo\.toml|requires an entry source file|declares \[lib\]|no \[package\] table|not valid TOML`),
		Template:   fixed("Always emit a valid Cargo.toml with [package], src/main.rs, and src/lib.rs when [lib] is declared, each as its own fenced file."),
	},
	{
		ID:       "unsafe-path",
		Match:    regexp.MustCompile(`(?i)unsafe-path|escapes the project`),
		Template: fixed("Use relative file paths inside the project; never absolute paths or '..' segments."),
	},
}

const maxSummary = 160

// Classify turns an error message into a directive for future generations.
func Classify(errorText string, fw types.Framework) string {
	text, _ := ClassifyDetail(errorText, fw)
	return text
}

// ClassifyDetail is Classify plus the pattern ID that matched ("generic" for
// the fallback).
func ClassifyDetail(errorText string, fw types.Framework) (string, string) {
	for _, e := range Table {
		if !e.appliesTo(fw) {
			continue
		}
		if g := e.Match.FindStringSubmatch(errorText); g != nil {
			return e.Template(g), e.ID
		}
	}
	return "Avoid: " + Summarize(errorText), "generic"
}

// Summarize collapses whitespace, drops a leading "path: rule:" prefix and
// truncates to a short single line.
func Summarize(errorText string) string {
	s := strings.Join(strings.Fields(errorText), " ")
	if parts := strings.SplitN(s, ": ", 3); len(parts) == 3 && !strings.Contains(parts[0], " ") && !strings.Contains(parts[1], " ") {
		s = parts[2]
	}
	if s == "" {
		return "unspecified failure"
	}
	if utf8.RuneCountInString(s) > maxSummary {
		r := []rune(s)
		s = string(r[:maxSummary-3]) + "..."
	}
	return s
}
