package validate

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/saeedalam/promptforge/pkg/types"
)

var psExts = []string{".ps1", ".psm1"}

// Scope and provider qualifiers that legitimately follow "$name:".
var psQualifiers = map[string]bool{
	"env": true, "global": true, "script": true, "local": true, "private": true,
	"using": true, "variable": true, "function": true, "alias": true, "workflow": true,
}

var scopedColonRef = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*):`)

func powerShellRules() []Rule {
	return []Rule{
		{
			ID:         "syntax",
			Message:    "unbalanced braces or quotes",
			Extensions: []string{".ps1", ".psm1", ".psd1"},
			Check: func(_ types.GeneratedFile, src Source) []string {
				return src.Problems
			},
		},
		{
			ID:         "dangerous-call",
			Message:    "Invoke-Expression evaluates arbitrary strings",
			Extensions: psExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`(?i)\bInvoke-Expression\b|(?:^|[\s|;(])iex\b`),
		},
		{
			ID:         "dangerous-call",
			Message:    "recursive forced deletion",
			Extensions: psExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`(?i)\b(?:Remove-Item|rm|del|ri|rmdir)\b[^\n|;]*(?:-Recurse\b[^\n|;]*-Force\b|-Force\b[^\n|;]*-Recurse\b)`),
		},
		{
			ID:         "dangerous-call",
			Message:    "elevated process launch",
			Extensions: psExts,
			View:       ViewCode,
			Pattern:    regexp.MustCompile(`(?i)\bStart-Process\b[^\n]*-Verb\s+['"]?RunAs\b`),
		},
		{
			ID:         "ps7-operator",
			Message:    "null-coalescing operator '??' requires PowerShell 7; target is Windows PowerShell 5.1",
			Extensions: psExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`\?\?=?`),
		},
		{
			ID:         "ps7-operator",
			Message:    "null-conditional member access '?.' requires PowerShell 7; target is Windows PowerShell 5.1",
			Extensions: psExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`(?:\$\{?[A-Za-z_][\w:]*\}?|[)\]])\?\.[A-Za-z_]`),
		},
		{
			ID:         "ps7-operator",
			Message:    "null-conditional index '?[' requires PowerShell 7; target is Windows PowerShell 5.1",
			Extensions: psExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`(?:\$\{?[A-Za-z_][\w:]*\}?|[)\]])\?\[`),
		},
		{
			ID:         "scoped-variable-colon",
			Message:    "variable followed by ':' inside a string is parsed as a scope qualifier",
			Extensions: psExts,
			Check: func(_ types.GeneratedFile, src Source) []string {
				var out []string
				for _, s := range src.Strings {
					if !s.Interpolated {
						continue
					}
					for _, name := range ScopedColonRefs(s.Body) {
						out = append(out, fmt.Sprintf("\"$%s:\" at line %d; write \"${%s}:\"", name, s.Line, name))
					}
				}
				return out
			},
		},
	}
}

// ScopedColonRefs returns variable names written as "$name:" that are not
// scope or provider qualifiers.
func ScopedColonRefs(body string) []string {
	var out []string
	for _, m := range scopedColonRef.FindAllStringSubmatchIndex(body, -1) {
		if m[0] > 0 && body[m[0]-1] == '`' {
			continue
		}
		name := body[m[2]:m[3]]
		if psQualifiers[strings.ToLower(name)] {
			continue
		}
		out = append(out, name)
	}
	return out
}

// FixScopedColonRefs rewrites "$name:" to "${name}:" inside double-quoted
// strings. It returns the new content and the number of rewrites.
func FixScopedColonRefs(content string) (string, int) {
	count := 0
	fixed := doubleQuoted.ReplaceAllStringFunc(content, func(lit string) string {
		return scopedColonRef.ReplaceAllStringFunc(lit, func(ref string) string {
			name := ref[1 : len(ref)-1]
			if psQualifiers[strings.ToLower(name)] {
				return ref
			}
			count++
			return "${" + name + "}:"
		})
	})
	return fixed, count
}

var doubleQuoted = regexp.MustCompile("\"(?:[^\"`\\n]|`.)*\"")

// =============================================================================
// MODULES
// =============================================================================

var approvedVerbs = map[string]bool{}

func init() {
	for _, v := range strings.Fields(`Add Clear Close Copy Enter Exit Find Format Get Hide Join Lock Move New Open
		Optimize Pop Push Redo Remove Rename Reset Resize Search Select Set Show Skip Split Step Switch Undo Unlock
		Watch Backup Checkpoint Compare Compress Convert ConvertFrom ConvertTo Dismount Edit Expand Export Group
		Import Initialize Limit Merge Mount Out Publish Restore Save Sync Unpublish Update Approve Assert Build
		Complete Confirm Deny Deploy Disable Enable Install Invoke Register Request Restart Resume Start Stop Submit
		Suspend Uninstall Unregister Wait Debug Measure Ping Repair Resolve Test Trace Connect Disconnect Read
		Receive Send Write Block Grant Protect Revoke Unblock Unprotect Use`) {
		approvedVerbs[strings.ToLower(v)] = true
	}
}

var (
	psFunctionDecl    = regexp.MustCompile(`(?mi)^\s*function\s+(?:global:|script:)?([A-Za-z][\w-]*)`)
	psExportMember    = regexp.MustCompile(`(?i)Export-ModuleMember\s+(?:-Function\s+)?([^\r\n]+)`)
	psdFunctionsField = regexp.MustCompile(`(?is)FunctionsToExport\s*=\s*(@\((.*?)\)|'[^']*'(?:\s*,\s*'[^']*')*|"[^"]*"(?:\s*,\s*"[^"]*")*)`)
	psdVersionField   = regexp.MustCompile(`(?i)\bModuleVersion\s*=`)
	quotedName        = regexp.MustCompile(`['"]([^'"]*)['"]`)
)

// IsApprovedName reports whether name is an approved Verb-Noun.
func IsApprovedName(name string) bool {
	verb, noun, ok := strings.Cut(name, "-")
	return ok && noun != "" && approvedVerbs[strings.ToLower(verb)]
}

func moduleFunctions(files []types.GeneratedFile) []string {
	var names []string
	for _, f := range byExt(files, ".psm1") {
		src := lexPowerShell(f.Content)
		for _, m := range psFunctionDecl.FindAllStringSubmatch(src.Code, -1) {
			names = append(names, m[1])
		}
	}
	return names
}

// ExportedFunctions resolves the module's public surface: the manifest's
// FunctionsToExport when present, else Export-ModuleMember, else every
// function defined in a .psm1.
func ExportedFunctions(files []types.GeneratedFile) []string {
	defined := moduleFunctions(files)

	for _, m := range byExt(files, ".psd1") {
		field := psdFunctionsField.FindStringSubmatch(m.Content)
		if field == nil {
			continue
		}
		list := field[1]
		if field[2] != "" || strings.HasPrefix(list, "@(") {
			list = field[2]
		}
		var names []string
		for _, q := range quotedName.FindAllStringSubmatch(list, -1) {
			if q[1] == "*" {
				return defined
			}
			if q[1] != "" {
				names = append(names, q[1])
			}
		}
		return names
	}

	var exported []string
	found := false
	for _, f := range byExt(files, ".psm1") {
		src := lexPowerShell(f.Content)
		for _, m := range psExportMember.FindAllStringSubmatch(src.Code, -1) {
			found = true
			for _, n := range strings.Split(m[1], ",") {
				n = strings.Trim(strings.TrimSpace(n), `'"@()`)
				if n == "*" {
					return defined
				}
				if n != "" && !strings.HasPrefix(n, "-") {
					exported = append(exported, strings.Fields(n)[0])
				}
			}
		}
	}
	if found {
		return exported
	}
	return defined
}

func moduleRules() []Rule {
	return []Rule{
		{
			ID:      "module-layout",
			Message: "module requires a .psm1 file",
			CheckSet: func(files []types.GeneratedFile) []string {
				if len(byExt(files, ".psm1")) == 0 {
					return []string{"powershell-module project has no .psm1 file"}
				}
				return nil
			},
		},
		{
			ID:         "approved-verb",
			Message:    "functions must use an approved Verb-Noun name",
			Extensions: []string{".psm1"},
			Check: func(_ types.GeneratedFile, src Source) []string {
				var out []string
				for _, m := range psFunctionDecl.FindAllStringSubmatch(src.Code, -1) {
					if !IsApprovedName(m[1]) {
						out = append(out, fmt.Sprintf("function '%s' must use an approved Verb-Noun name", m[1]))
					}
				}
				return out
			},
		},
		{
			ID:         "manifest",
			Message:    "module manifest is incomplete",
			Extensions: []string{".psd1"},
			Check: func(f types.GeneratedFile, _ Source) []string {
				var out []string
				if !psdVersionField.MatchString(f.Content) {
					out = append(out, fmt.Sprintf("%s must declare ModuleVersion", path.Base(f.Path)))
				}
				if !strings.Contains(strings.ToLower(f.Content), "functionstoexport") {
					out = append(out, fmt.Sprintf("%s must declare FunctionsToExport", path.Base(f.Path)))
				}
				return out
			},
		},
		{
			ID:      "no-exports",
			Message: "module exports no functions",
			CheckSet: func(files []types.GeneratedFile) []string {
				if len(byExt(files, ".psm1")) == 0 {
					return nil
				}
				if len(ExportedFunctions(files)) == 0 {
					return []string{"module exports no functions"}
				}
				return nil
			},
		},
		{
			ID:         "blacklisted-call",
			Message:    "COM object instantiation",
			Extensions: psExts,
			View:       ViewCode,
			Pattern:    regexp.MustCompile(`(?i)\bNew-Object\b[^\n]*-ComObject\b`),
		},
		{
			ID:         "blacklisted-call",
			Message:    "remote WMI query",
			Extensions: psExts,
			View:       ViewCode,
			Pattern:    regexp.MustCompile(`(?i)\b(?:Get-WmiObject|gwmi|Get-CimInstance|Invoke-WmiMethod|Invoke-CimMethod)\b[^\n]*-ComputerName\b`),
		},
		{
			ID:         "blacklisted-call",
			Message:    "raw network listener",
			Extensions: psExts,
			View:       ViewCode,
			Pattern:    regexp.MustCompile(`(?i)(?:System\.)?Net\.(?:Sockets\.TcpListener|Sockets\.UdpClient|HttpListener)\b`),
		},
	}
}
