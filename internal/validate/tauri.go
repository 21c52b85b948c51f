package validate

import (
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/net/html"

	"github.com/saeedalam/promptforge/pkg/types"
)

var scriptExts = []string{".js", ".mjs", ".ts"}

func tauriRules() []Rule {
	return []Rule{
		{
			ID:       "manifest",
			Message:  "tauri project requires Cargo.toml",
			CheckSet: checkCargoManifest,
		},
		{
			ID:      "entry",
			Message: "tauri project requires src/main.rs",
			CheckSet: func(files []types.GeneratedFile) []string {
				if len(byBase(files, "main.rs")) == 0 {
					return []string{"tauri project requires an entry source file main.rs"}
				}
				return nil
			},
		},
		{
			ID:         "syntax",
			Message:    "unbalanced braces",
			Extensions: []string{".rs"},
			Check: func(_ types.GeneratedFile, src Source) []string {
				return src.Problems
			},
		},
		{
			ID:         "html-structure",
			Message:    "bundled HTML must be a complete local document",
			Extensions: []string{".html", ".htm"},
			Check:      checkHTML,
		},
		{
			ID:         "dynamic-eval",
			Message:    "eval() in bundled script",
			Extensions: scriptExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`(?:^|[^\w.$])eval\s*\(`),
		},
		{
			ID:         "html-injection",
			Message:    "raw HTML injection",
			Extensions: scriptExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`\.(?:innerHTML|outerHTML)\s*\+?=|\binsertAdjacentHTML\s*\(|\bdocument\.write(?:ln)?\s*\(`),
		},
		{
			ID:         "dynamic-function",
			Message:    "dynamic function construction",
			Extensions: scriptExts,
			View:       ViewBare,
			Pattern:    regexp.MustCompile(`\bnew\s+Function\s*\(|(?:^|[^\w.])Function\s*\(\s*["'\x60]`),
		},
	}
}

type cargoManifest struct {
	Package *struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Lib *struct {
		Path string `toml:"path"`
	} `toml:"lib"`
}

func checkCargoManifest(files []types.GeneratedFile) []string {
	manifests := byBase(files, "Cargo.toml")
	if len(manifests) == 0 {
		return []string{"tauri project requires a Cargo.toml manifest"}
	}

	var out []string
	for _, m := range manifests {
		var cm cargoManifest
		if err := toml.Unmarshal([]byte(m.Content), &cm); err != nil {
			out = append(out, fmt.Sprintf("%s is not valid TOML: %v", m.Path, err))
			continue
		}
		if cm.Package == nil {
			out = append(out, fmt.Sprintf("%s has no [package] table", m.Path))
		}
		if cm.Lib != nil {
			libPath := cm.Lib.Path
			if libPath == "" {
				libPath = "src/lib.rs"
			}
			want := path.Join(path.Dir(m.Path), libPath)
			if !hasPath(files, want) {
				out = append(out, fmt.Sprintf("%s declares [lib] but %s is missing", m.Path, want))
			}
		}
	}
	return out
}

func externalOrigin(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "//")
}

func checkHTML(_ types.GeneratedFile, src Source) []string {
	var doctype, head, body bool
	external := map[string]bool{}

	z := html.NewTokenizer(strings.NewReader(src.Raw))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return []string{fmt.Sprintf("unparseable HTML: %v", z.Err())}
			}
			break
		}
		switch tt {
		case html.DoctypeToken:
			doctype = true
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "head":
				head = true
			case "body":
				body = true
			case "script":
				for _, a := range tok.Attr {
					if a.Key == "src" && externalOrigin(a.Val) {
						external["script "+a.Val] = true
					}
				}
			case "link":
				for _, a := range tok.Attr {
					if a.Key == "href" && externalOrigin(a.Val) {
						external["stylesheet "+a.Val] = true
					}
				}
			}
		}
	}

	var out []string
	if !doctype {
		out = append(out, "missing <!DOCTYPE html> declaration")
	}
	if !head {
		out = append(out, "missing <head> element")
	}
	if !body {
		out = append(out, "missing <body> element")
	}
	for _, ref := range sortedKeys(external) {
		out = append(out, "external origin not allowed: "+ref)
	}
	return out
}
