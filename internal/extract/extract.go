// Package extract turns fenced model output into files.
//
// Wire contract between the generator prompt and this parser:
//
//	```<language> <relative/path.ext>
//	<file body>
//	```
//
// The opening fence carries an optional language tag and, separated by
// whitespace, an optional relative path. A fence without a path yields a block
// with an empty FileName; ToFileSet assigns such blocks the framework's default
// entry name. Fences may be three or more backticks or tildes; a block closes
// on a fence of the same character at least as long as the opener. Blocks whose
// body is blank are dropped. Index is 1-based in document order.
package extract

import (
	"strings"

	"github.com/saeedalam/promptforge/pkg/types"
)

// Block is one fenced code block.
type Block struct {
	Index     int    `json:"index"`
	Language  string `json:"language,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Code      string `json:"code"`
	LineCount int    `json:"line_count"`
}

// Extract returns every non-empty fenced block in text. When track is non-nil
// it is called for each emitted block.
func Extract(text string, track func(Block)) []Block {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var blocks []Block
	var body []string
	var open bool
	var fenceChar byte
	var fenceLen int
	var lang, name string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !open {
			ch, n := fence(trimmed)
			if n == 0 {
				continue
			}
			open = true
			fenceChar, fenceLen = ch, n
			lang, name = parseHeader(trimmed[n:])
			body = body[:0]
			continue
		}

		if ch, n := fence(trimmed); n >= fenceLen && ch == fenceChar && strings.TrimSpace(trimmed[n:]) == "" {
			open = false
			if b, ok := newBlock(len(blocks)+1, lang, name, body); ok {
				blocks = append(blocks, b)
				if track != nil {
					track(b)
				}
			}
			continue
		}
		body = append(body, line)
	}

	// An unterminated trailing fence still yields its body.
	if open {
		if b, ok := newBlock(len(blocks)+1, lang, name, body); ok {
			blocks = append(blocks, b)
			if track != nil {
				track(b)
			}
		}
	}
	return blocks
}

func newBlock(index int, lang, name string, body []string) (Block, bool) {
	code := strings.Join(body, "\n")
	if strings.TrimSpace(code) == "" {
		return Block{}, false
	}
	return Block{
		Index:     index,
		Language:  lang,
		FileName:  name,
		Code:      code,
		LineCount: len(body),
	}, true
}

func fence(line string) (byte, int) {
	if len(line) < 3 {
		return 0, 0
	}
	ch := line[0]
	if ch != '`' && ch != '~' {
		return 0, 0
	}
	n := 0
	for n < len(line) && line[n] == ch {
		n++
	}
	if n < 3 {
		return 0, 0
	}
	return ch, n
}

func parseHeader(rest string) (string, string) {
	fields := strings.Fields(rest)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		// A lone token that looks like a path is a file name with no language.
		if strings.ContainsAny(fields[0], "./\\") {
			return languageFor(fields[0]), normalizePath(fields[0])
		}
		return strings.ToLower(fields[0]), ""
	default:
		return strings.ToLower(fields[0]), normalizePath(fields[1])
	}
}

func normalizePath(p string) string {
	p = strings.Trim(p, "\"'`")
	p = strings.TrimPrefix(p, "filename=")
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return p
}

var extLanguages = map[string]string{
	".ps1":  "powershell",
	".psm1": "powershell",
	".psd1": "powershell",
	".py":   "python",
	".rs":   "rust",
	".toml": "toml",
	".html": "html",
	".js":   "javascript",
	".ts":   "typescript",
	".css":  "css",
	".json": "json",
	".txt":  "text",
}

func languageFor(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return extLanguages[strings.ToLower(path[i:])]
}

// ToFileSet converts blocks into a file set. Blocks without a file name are
// written to defaultName; when several unnamed blocks exist the later ones are
// concatenated onto the first.
func ToFileSet(blocks []Block, defaultName string) *types.FileSet {
	fs := types.NewFileSet()
	for _, b := range blocks {
		path := b.FileName
		if path == "" {
			path = defaultName
			if prev, ok := fs.Get(path); ok {
				prev.Content = strings.TrimRight(prev.Content, "\n") + "\n\n" + b.Code
				fs.Put(prev)
				continue
			}
		}
		lang := b.Language
		if lang == "" {
			lang = languageFor(path)
		}
		fs.Put(types.GeneratedFile{Path: path, Language: lang, Content: b.Code})
	}
	return fs
}
