// Package brand stamps an attribution marker into generated sources.
package brand

import (
	"fmt"
	"html"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/saeedalam/promptforge/pkg/types"
)

// DefaultMarker is the attribution text inserted into branded files.
const DefaultMarker = "Built with PromptForge"

// Injector inserts Marker into the files a framework brands. A file that
// already contains Marker is left alone.
type Injector struct {
	Marker string
	URL    string
}

// New returns an injector; an empty marker falls back to DefaultMarker.
func New(marker, url string) *Injector {
	if strings.TrimSpace(marker) == "" {
		marker = DefaultMarker
	}
	return &Injector{Marker: marker, URL: url}
}

// Inject returns a copy of files with attribution added. With noBranding the
// input is returned unchanged.
func Inject(files *types.FileSet, fw types.Framework, noBranding bool) *types.FileSet {
	return New("", "").Inject(files, fw, noBranding)
}

// Inject is the configured form of the package-level Inject.
func (b *Injector) Inject(files *types.FileSet, fw types.Framework, noBranding bool) *types.FileSet {
	if noBranding || files == nil {
		return files
	}
	out := types.NewFileSet()
	for _, f := range files.Files() {
		if !b.marked(f.Content) {
			if content, ok := b.brand(f, fw); ok {
				f.Content = content
			}
		}
		out.Put(f)
	}
	return out
}

// Branded reports whether any file carries the marker.
func (b *Injector) Branded(files *types.FileSet) bool {
	for _, f := range files.Files() {
		if b.marked(f.Content) {
			return true
		}
	}
	return false
}

// marked reports whether content carries the marker in any of the forms
// brand writes it: raw, HTML-escaped or as the body of a quoted string.
func (b *Injector) marked(content string) bool {
	quoted := strconv.Quote(b.Marker)
	for _, form := range []string{b.Marker, html.EscapeString(b.Marker), quoted[1 : len(quoted)-1]} {
		if strings.Contains(content, form) {
			return true
		}
	}
	return false
}

// ScriptHeader is the comment line Inject puts at the top of PowerShell
// scripts.
func (b *Injector) ScriptHeader() string {
	return "# " + b.Marker
}

func (b *Injector) brand(f types.GeneratedFile, fw types.Framework) (string, bool) {
	ext := strings.ToLower(path.Ext(f.Path))
	switch {
	case ext == ".html" && (fw == types.FrameworkTauri || fw == types.FrameworkPythonWeb):
		return b.footer(f.Content), true
	case (ext == ".ps1" || ext == ".psm1") && fw.IsPowerShell():
		return headerComment(f.Content, b.ScriptHeader()), true
	case ext == ".py" && fw.IsPython():
		if fw == types.FrameworkPythonTk {
			if content, ok := b.aboutBinding(f.Content); ok {
				return content, true
			}
		}
		return headerComment(f.Content, "# "+b.Marker), true
	case ext == ".rs" && fw == types.FrameworkTauri:
		return headerComment(f.Content, "// "+b.Marker), true
	}
	return "", false
}

var bodyClose = regexp.MustCompile(`(?i)</body\s*>`)

func (b *Injector) footer(page string) string {
	text := html.EscapeString(b.Marker)
	if b.URL != "" {
		text = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(b.URL), text)
	}
	footer := fmt.Sprintf(`<footer class="promptforge-brand" style="text-align:center;font-size:11px;opacity:.6">%s</footer>`, text)

	locs := bodyClose.FindAllStringIndex(page, -1)
	if len(locs) == 0 {
		return strings.TrimRight(page, "\n") + "\n" + footer + "\n"
	}
	at := locs[len(locs)-1][0]
	return page[:at] + footer + "\n" + page[at:]
}

// headerComment puts comment at the top of content, below a shebang, an
// encoding declaration or a #Requires line.
func headerComment(content, comment string) string {
	lines := strings.SplitAfter(content, "\n")
	i := 0
	for i < len(lines) && i < 2 {
		t := strings.TrimSpace(lines[i])
		if strings.HasPrefix(t, "#!") || strings.HasPrefix(t, "# -*-") ||
			strings.HasPrefix(t, "# coding") || strings.HasPrefix(strings.ToLower(t), "#requires") {
			i++
			continue
		}
		break
	}
	head := strings.Join(lines[:i], "")
	if head != "" && !strings.HasSuffix(head, "\n") {
		head += "\n"
	}
	return head + comment + "\n" + strings.Join(lines[i:], "")
}

var mainloopCall = regexp.MustCompile(`(?m)^([ \t]*)(\w+)\.mainloop\(\)`)

// aboutBinding binds F1 on the Tk root to an About dialog, just before the
// last mainloop call.
func (b *Injector) aboutBinding(content string) (string, bool) {
	locs := mainloopCall.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return "", false
	}
	m := locs[len(locs)-1]
	indent := content[m[2]:m[3]]
	root := content[m[4]:m[5]]

	snippet := fmt.Sprintf("%[1]simport tkinter.messagebox as _pf_about\n"+
		"%[1]s%[2]s.bind(\"<F1>\", lambda _e: _pf_about.showinfo(\"About\", %[3]q))\n",
		indent, root, b.Marker)
	return content[:m[0]] + snippet + content[m[0]:], true
}
