package generate

import (
	"fmt"
	"strings"

	"github.com/saeedalam/promptforge/pkg/types"
)

const outputContract = `OUTPUT FORMAT
Emit every file as its own fenced code block. The opening fence carries the
language and the relative file path separated by a space, for example:

` + "```powershell source/data.ps1" + `
...file contents...
` + "```" + `

Use forward slashes in paths. Never use absolute paths or "..". Write complete
files; do not elide code with comments such as "rest unchanged".`

var frameworkGuides = map[types.Framework]string{
	types.FrameworkPowerShell: `TARGET: a Windows PowerShell 5.1 script application packaged to a single .exe.
- Entry file: app.ps1. Helper files may live under source/ and be dot-sourced with . "$PSScriptRoot\source\name.ps1".
- Do not use PowerShell 7 operators (??, ?., ?[, ternary).
- Inside double-quoted strings write "${name}:" rather than "$name:".
- Never use Invoke-Expression, Remove-Item -Recurse -Force, or Start-Process -Verb RunAs.`,

	types.FrameworkPowerShellModule: `TARGET: a Windows PowerShell 5.1 script module.
- Emit <Name>.psm1 with the functions and <Name>.psd1 with ModuleVersion and FunctionsToExport.
- Every function uses an approved verb in Verb-Noun form (Get-Thing, Set-Thing, ...).
- Export at least one function.
- Do not use PowerShell 7 operators, COM objects, remote WMI queries or raw network listeners.`,

	types.FrameworkPythonTk: `TARGET: a Python 3 desktop application using tkinter, packaged with PyInstaller.
- Entry file: main.py. Additional modules may sit next to it.
- Use only the standard library unless a package is essential; list any in requirements.txt.
- Never use eval, exec, os.system, subprocess with shell=True, or dynamic imports.`,

	types.FrameworkPythonWeb: `TARGET: a Python 3 web application (Flask) with templates bundled locally.
- Entry file: main.py. Templates go under templates/, static assets under static/.
- List third-party packages in requirements.txt.
- Never use eval, exec, os.system, subprocess with shell=True, or dynamic imports.`,

	types.FrameworkTauri: `TARGET: a Tauri desktop application.
- Emit at least these files: src-tauri/Cargo.toml, src-tauri/src/main.rs, src-tauri/build.rs, src/index.html.
- If Cargo.toml declares [lib], also emit the matching src/lib.rs.
- index.html starts with <!DOCTYPE html> and has <head> and <body>; no CDN or external script/style references.
- Frontend scripts never use eval, new Function, innerHTML assignment or document.write.`,
}

// SystemPrompt builds the system prompt for a framework, folding in learned
// constraints.
func SystemPrompt(fw types.Framework, constraints []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You generate complete, working %s projects from a user's description.\n\n", fw)
	if guide, ok := frameworkGuides[fw]; ok {
		b.WriteString(guide)
		b.WriteString("\n\n")
	}
	if len(constraints) > 0 {
		b.WriteString("LEARNED CONSTRAINTS (from earlier failed builds; follow all of them)\n")
		for _, c := range constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}
	b.WriteString(outputContract)
	return b.String()
}

// UserPrompt builds the user message for the first or a repair generation.
func UserPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("REQUEST\n")
	b.WriteString(strings.TrimSpace(in.Spec))
	b.WriteString("\n")

	if strings.TrimSpace(in.Plan) != "" {
		b.WriteString("\nPLAN (advisory)\n")
		b.WriteString(strings.TrimSpace(in.Plan))
		b.WriteString("\n")
	}

	if in.Repair != nil {
		b.WriteString("\nThe previous attempt failed validation with these errors:\n")
		for _, e := range in.Repair.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		if in.Repair.Files != nil && in.Repair.Files.Len() > 0 {
			b.WriteString("\nPrevious files:\n")
			for _, f := range in.Repair.Files.Files() {
				fmt.Fprintf(&b, "\n```%s %s\n%s\n```\n", f.Language, f.Path, f.Content)
			}
		}
		b.WriteString("\nReturn the full corrected project, every file, in the same format.\n")
	}
	return b.String()
}
