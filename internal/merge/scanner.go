package merge

import (
	"bufio"
	"path"
	"regexp"
	"strings"
)

// Dot-sourcing forms
var (
	// . "$PSScriptRoot\lib\x.ps1"   . '.\x.ps1'   . ./x.ps1
	dotSourceLine = regexp.MustCompile(`^\s*\.\s+(?:"([^"]+)"|'([^']+)'|([^\s"'#(]+))\s*(?:#.*)?$`)
	// . (Join-Path $PSScriptRoot "x.ps1")
	dotSourceJoin = regexp.MustCompile(`(?i)^\s*\.\s+\(\s*Join-Path\s+\$PSScriptRoot\s+(?:"([^"]+)"|'([^']+)'|(\S+?))\s*\)\s*(?:#.*)?$`)

	scriptRoot = regexp.MustCompile(`(?i)^\$(?:\{PSScriptRoot\}|PSScriptRoot)`)
)

// Directive is one inclusion statement found in a script.
type Directive struct {
	Line   int // 1-based
	Target string
	Raw    string
}

// Scan returns the inclusion directives in a PowerShell script, in order.
func Scan(content string) []Directive {
	var out []Directive
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if target, ok := directiveTarget(line); ok {
			out = append(out, Directive{Line: n, Target: target, Raw: strings.TrimSpace(line)})
		}
	}
	return out
}

func directiveTarget(line string) (string, bool) {
	for _, re := range []*regexp.Regexp{dotSourceJoin, dotSourceLine} {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, g := range m[1:] {
			if g != "" {
				return normalizeTarget(g)
			}
		}
	}
	return "", false
}

// normalizeTarget turns a directive argument into a slash path relative to
// the including script. Absolute or non-script targets are not directives
// this package can resolve.
func normalizeTarget(raw string) (string, bool) {
	p := scriptRoot.ReplaceAllString(raw, "")
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimLeft(p, "/")
	if p == "" || strings.Contains(p, "$") || strings.Contains(p, ":") {
		return "", false
	}
	ext := strings.ToLower(path.Ext(p))
	if ext != ".ps1" && ext != ".psm1" {
		return "", false
	}
	return path.Clean(p), true
}
