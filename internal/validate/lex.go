package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// StringLit is a string literal found by a lexer.
type StringLit struct {
	Line         int
	Body         string
	Interpolated bool
}

// Source holds the views of one file that rules match against.
type Source struct {
	Raw string
	// Code has comments removed; string literals are kept.
	Code string
	// Bare has comments and string bodies removed.
	Bare     string
	Strings  []StringLit
	Problems []string
}

const maxProblems = 3

type opener struct {
	ch   byte
	line int
}

var closers = map[byte]byte{'}': '{', ')': '(', ']': '['}

// lexer is shared state for the per-language scanners below.
type lexer struct {
	s        string
	i        int
	line     int
	code     strings.Builder
	bare     strings.Builder
	stack    []opener
	problems []string
	strs     []StringLit
}

func newLexer(s string) *lexer {
	return &lexer{s: s, line: 1}
}

func (l *lexer) peek(n int) byte {
	if l.i+n < len(l.s) {
		return l.s[l.i+n]
	}
	return 0
}

// emit writes to both views.
func (l *lexer) emit(c byte) {
	l.code.WriteByte(c)
	l.bare.WriteByte(c)
	if c == '\n' {
		l.line++
	}
}

// emitString writes string content: full text to Code, newlines only to Bare.
func (l *lexer) emitString(c byte) {
	l.code.WriteByte(c)
	if c == '\n' {
		l.bare.WriteByte(c)
		l.line++
	}
}

// skip drops a comment byte, keeping line structure.
func (l *lexer) skip(c byte) {
	if c == '\n' {
		l.code.WriteByte(c)
		l.bare.WriteByte(c)
		l.line++
	}
}

func (l *lexer) problem(format string, args ...any) {
	if len(l.problems) < maxProblems {
		l.problems = append(l.problems, fmt.Sprintf(format, args...))
	}
}

func (l *lexer) open(c byte) {
	l.stack = append(l.stack, opener{ch: c, line: l.line})
}

func (l *lexer) close(c byte) {
	want := closers[c]
	if len(l.stack) == 0 {
		l.problem("unexpected '%c' at line %d", c, l.line)
		return
	}
	top := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	if top.ch != want {
		l.problem("mismatched '%c' at line %d (open '%c' from line %d)", c, l.line, top.ch, top.line)
	}
}

func (l *lexer) finish() Source {
	for i := len(l.stack) - 1; i >= 0; i-- {
		l.problem("unclosed '%c' opened at line %d", l.stack[i].ch, l.stack[i].line)
	}
	return Source{
		Raw:      l.s,
		Code:     l.code.String(),
		Bare:     l.bare.String(),
		Strings:  l.strs,
		Problems: l.problems,
	}
}

// =============================================================================
// POWERSHELL
// =============================================================================

func lexPowerShell(s string) Source {
	l := newLexer(s)
	l.psCode(false)
	return l.finish()
}

func (l *lexer) psCode(sub bool) {
	base := len(l.stack)
	for l.i < len(l.s) {
		c := l.s[l.i]
		switch {
		case c == '<' && l.peek(1) == '#':
			l.psBlockComment()
		case c == '#':
			for l.i < len(l.s) && l.s[l.i] != '\n' {
				l.i++
			}
		case c == '@' && (l.peek(1) == '"' || l.peek(1) == '\'') && l.restBlank(l.i+2):
			l.psHereString(l.peek(1))
		case c == '"':
			l.psDouble()
		case c == '\'':
			l.psSingle()
		case c == '`':
			l.emit(c)
			l.i++
			if l.i < len(l.s) {
				l.emit(l.s[l.i])
				l.i++
			}
		case c == '{' || c == '(' || c == '[':
			l.open(c)
			l.emit(c)
			l.i++
		case c == ')' && sub && len(l.stack) == base:
			l.emit(c)
			l.i++
			return
		case c == '}' || c == ')' || c == ']':
			l.close(c)
			l.emit(c)
			l.i++
		default:
			l.emit(c)
			l.i++
		}
	}
}

func (l *lexer) restBlank(from int) bool {
	for j := from; j < len(l.s); j++ {
		switch l.s[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return true
}

func (l *lexer) psBlockComment() {
	start := l.line
	l.i += 2
	for l.i < len(l.s) {
		if l.s[l.i] == '#' && l.peek(1) == '>' {
			l.i += 2
			return
		}
		l.skip(l.s[l.i])
		l.i++
	}
	l.problem("unterminated block comment starting at line %d", start)
}

func (l *lexer) psDouble() {
	start := l.line
	var body strings.Builder
	l.emit('"')
	l.i++
	for l.i < len(l.s) {
		c := l.s[l.i]
		switch {
		case c == '`':
			body.WriteByte(c)
			l.emitString(c)
			l.i++
			if l.i < len(l.s) {
				body.WriteByte(l.s[l.i])
				l.emitString(l.s[l.i])
				l.i++
			}
		case c == '"' && l.peek(1) == '"':
			body.WriteString(`""`)
			l.emitString(c)
			l.emitString(c)
			l.i += 2
		case c == '"':
			l.emit('"')
			l.i++
			l.strs = append(l.strs, StringLit{Line: start, Body: body.String(), Interpolated: true})
			return
		case c == '$' && l.peek(1) == '(':
			body.WriteString("$()")
			l.emit('$')
			l.emit('(')
			l.i += 2
			l.psCode(true)
		default:
			body.WriteByte(c)
			l.emitString(c)
			l.i++
		}
	}
	l.problem("unterminated string starting at line %d", start)
}

func (l *lexer) psSingle() {
	start := l.line
	var body strings.Builder
	l.emit('\'')
	l.i++
	for l.i < len(l.s) {
		c := l.s[l.i]
		if c == '\'' {
			if l.peek(1) == '\'' {
				body.WriteString("''")
				l.emitString(c)
				l.emitString(c)
				l.i += 2
				continue
			}
			l.emit('\'')
			l.i++
			l.strs = append(l.strs, StringLit{Line: start, Body: body.String()})
			return
		}
		body.WriteByte(c)
		l.emitString(c)
		l.i++
	}
	l.problem("unterminated string starting at line %d", start)
}

func (l *lexer) psHereString(q byte) {
	start := l.line
	l.emit('@')
	l.emit(q)
	l.i += 2
	terminator := "\n" + string(q) + "@"
	end := strings.Index(l.s[l.i:], terminator)
	if end < 0 {
		for ; l.i < len(l.s); l.i++ {
			l.emitString(l.s[l.i])
		}
		l.problem("unterminated here-string starting at line %d", start)
		return
	}
	body := l.s[l.i : l.i+end]
	for j := 0; j < len(body); j++ {
		l.emitString(body[j])
	}
	l.i += end
	l.emit('\n')
	l.emit(q)
	l.emit('@')
	l.i += len(terminator)
	l.strs = append(l.strs, StringLit{Line: start, Body: body, Interpolated: q == '"'})
}

// =============================================================================
// PYTHON
// =============================================================================

func lexPython(s string) Source {
	l := newLexer(s)
	for l.i < len(l.s) {
		c := l.s[l.i]
		switch {
		case c == '#':
			for l.i < len(l.s) && l.s[l.i] != '\n' {
				l.i++
			}
		case c == '"' || c == '\'':
			l.pyString(c)
		default:
			l.emit(c)
			l.i++
		}
	}
	return l.finish()
}

func (l *lexer) pyString(q byte) {
	start := l.line
	triple := l.peek(1) == q && l.peek(2) == q
	width := 1
	if triple {
		width = 3
	}
	for k := 0; k < width; k++ {
		l.emit(q)
	}
	l.i += width

	var body strings.Builder
	for l.i < len(l.s) {
		c := l.s[l.i]
		if c == '\\' && l.i+1 < len(l.s) {
			body.WriteByte(c)
			body.WriteByte(l.s[l.i+1])
			l.emitString(c)
			l.emitString(l.s[l.i+1])
			l.i += 2
			continue
		}
		if c == q && (!triple || (l.peek(1) == q && l.peek(2) == q)) {
			for k := 0; k < width; k++ {
				l.emit(q)
			}
			l.i += width
			l.strs = append(l.strs, StringLit{Line: start, Body: body.String()})
			return
		}
		if c == '\n' && !triple {
			break
		}
		body.WriteByte(c)
		l.emitString(c)
		l.i++
	}
	l.problem("unterminated string starting at line %d", start)
}

// =============================================================================
// C-LIKE (rust, javascript)
// =============================================================================

func lexRust(s string) Source {
	return lexCLike(s, true)
}

func lexScript(s string) Source {
	return lexCLike(s, false)
}

func lexCLike(s string, rust bool) Source {
	l := newLexer(s)
	for l.i < len(l.s) {
		c := l.s[l.i]
		switch {
		case c == '/' && l.peek(1) == '/':
			for l.i < len(l.s) && l.s[l.i] != '\n' {
				l.i++
			}
		case c == '/' && l.peek(1) == '*':
			l.cBlockComment(rust)
		case rust && (c == 'r' || c == 'b') && l.rawStringStart():
			l.rustRawString()
		case c == '"':
			l.cString('"')
		case c == '\'' && rust:
			l.rustQuote()
		case c == '\'' || (c == '`' && !rust):
			l.cString(c)
		case c == '{' || c == '(' || c == '[':
			l.open(c)
			l.emit(c)
			l.i++
		case c == '}' || c == ')' || c == ']':
			l.close(c)
			l.emit(c)
			l.i++
		default:
			l.emit(c)
			l.i++
		}
	}
	return l.finish()
}

func (l *lexer) cBlockComment(nested bool) {
	start := l.line
	depth := 1
	l.i += 2
	for l.i < len(l.s) {
		if nested && l.s[l.i] == '/' && l.peek(1) == '*' {
			depth++
			l.i += 2
			continue
		}
		if l.s[l.i] == '*' && l.peek(1) == '/' {
			depth--
			l.i += 2
			if depth == 0 {
				return
			}
			continue
		}
		l.skip(l.s[l.i])
		l.i++
	}
	l.problem("unterminated block comment starting at line %d", start)
}

func (l *lexer) cString(q byte) {
	start := l.line
	var body strings.Builder
	l.emit(q)
	l.i++
	for l.i < len(l.s) {
		c := l.s[l.i]
		if c == '\\' && l.i+1 < len(l.s) {
			body.WriteByte(c)
			body.WriteByte(l.s[l.i+1])
			l.emitString(c)
			l.emitString(l.s[l.i+1])
			l.i += 2
			continue
		}
		if c == q {
			l.emit(q)
			l.i++
			l.strs = append(l.strs, StringLit{Line: start, Body: body.String()})
			return
		}
		body.WriteByte(c)
		l.emitString(c)
		l.i++
	}
	l.problem("unterminated string starting at line %d", start)
}

func isIdent(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// rawStringStart reports whether r"..", r#".."#, br".." begins at l.i.
func (l *lexer) rawStringStart() bool {
	if l.i > 0 && isIdent(l.s[l.i-1]) {
		return false
	}
	j := l.i
	if l.s[j] == 'b' {
		j++
		if j >= len(l.s) || l.s[j] != 'r' {
			return false
		}
	}
	j++
	for j < len(l.s) && l.s[j] == '#' {
		j++
	}
	return j < len(l.s) && l.s[j] == '"'
}

func (l *lexer) rustRawString() {
	start := l.line
	for l.s[l.i] != '#' && l.s[l.i] != '"' {
		l.emit(l.s[l.i])
		l.i++
	}
	hashes := 0
	for l.s[l.i] == '#' {
		hashes++
		l.emit('#')
		l.i++
	}
	l.emit('"')
	l.i++
	terminator := "\"" + strings.Repeat("#", hashes)
	end := strings.Index(l.s[l.i:], terminator)
	if end < 0 {
		for ; l.i < len(l.s); l.i++ {
			l.emitString(l.s[l.i])
		}
		l.problem("unterminated raw string starting at line %d", start)
		return
	}
	body := l.s[l.i : l.i+end]
	for j := 0; j < len(body); j++ {
		l.emitString(body[j])
	}
	l.i += end
	for j := 0; j < len(terminator); j++ {
		l.emit(terminator[j])
	}
	l.i += len(terminator)
	l.strs = append(l.strs, StringLit{Line: start, Body: body})
}

// rustQuote handles a char literal; anything else is a lifetime.
func (l *lexer) rustQuote() {
	if l.peek(1) == '\\' {
		end := strings.IndexByte(l.s[l.i+2:], '\'')
		if end >= 0 && end < 12 {
			l.writeChar(l.i + 2 + end + 1)
			return
		}
	} else if l.i+1 < len(l.s) {
		_, size := utf8.DecodeRuneInString(l.s[l.i+1:])
		if l.i+1+size < len(l.s) && l.s[l.i+1+size] == '\'' {
			l.writeChar(l.i + 1 + size + 1)
			return
		}
	}
	l.emit('\'')
	l.i++
}

func (l *lexer) writeChar(end int) {
	l.emit('\'')
	for j := l.i + 1; j < end-1; j++ {
		l.emitString(l.s[j])
	}
	l.emit('\'')
	l.i = end
}
