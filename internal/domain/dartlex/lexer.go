// Package dartlex is a lightweight lexer for Dart source. It recognizes
// identifiers, numbers, string literals (raw, triple-quoted, interpolated)
// and punctuation, and skips comments. It is not a parser.
package dartlex

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Kind classifies a token.
type Kind int

const (
	Ident Kind = iota
	Number
	String
	Punct
)

// Token is one lexical element. Offset is a byte offset into the source;
// Line and Col are 1-based, Col counted in runes.
type Token struct {
	Kind         Kind
	Text         string
	Offset       int
	Line         int
	Col          int
	Raw          bool
	Interpolated bool
}

// End returns the byte offset just past the token.
func (t Token) End() int { return t.Offset + len(t.Text) }

// Is reports whether the token is punctuation or an identifier with the given text.
func (t Token) Is(text string) bool {
	return (t.Kind == Punct || t.Kind == Ident) && t.Text == text
}

// Error is a tokenize failure with its position.
type Error struct {
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// Lines indexes line starts of a source for offset-to-position lookups.
type Lines struct {
	text   string
	starts []int
}

// NewLines builds a line index for text.
func NewLines(text string) *Lines {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Lines{text: text, starts: starts}
}

// Position converts a byte offset into a 1-based line and rune column.
func (l *Lines) Position(offset int) (line, col int) {
	if offset > len(l.text) {
		offset = len(l.text)
	}
	idx := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset }) - 1
	if idx < 0 {
		idx = 0
	}
	return idx + 1, utf8.RuneCountInString(l.text[l.starts[idx]:offset]) + 1
}

// Line returns the text of the 1-based line without its newline.
func (l *Lines) Line(n int) string {
	if n < 1 || n > len(l.starts) {
		return ""
	}
	start := l.starts[n-1]
	end := len(l.text)
	if n < len(l.starts) {
		end = l.starts[n] - 1
	}
	return strings.TrimRight(l.text[start:end], "\r")
}

// Count returns the number of lines.
func (l *Lines) Count() int {
	if len(l.text) == 0 {
		return 0
	}
	if strings.HasSuffix(l.text, "\n") {
		return len(l.starts) - 1
	}
	return len(l.starts)
}

// Tokenize lexes text. On failure it returns the tokens read so far and an *Error.
func Tokenize(text string) ([]Token, error) {
	lx := &lexer{src: text, lines: NewLines(text)}
	err := lx.run()
	return lx.toks, err
}

type lexer struct {
	src   string
	pos   int
	lines *Lines
	toks  []Token
}

func (lx *lexer) errorf(offset int, format string, args ...any) *Error {
	line, col := lx.lines.Position(offset)
	return &Error{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) emit(kind Kind, start int) *Token {
	line, col := lx.lines.Position(start)
	lx.toks = append(lx.toks, Token{Kind: kind, Text: lx.src[start:lx.pos], Offset: start, Line: line, Col: col})
	return &lx.toks[len(lx.toks)-1]
}

func (lx *lexer) peek(n int) byte {
	if lx.pos+n < len(lx.src) {
		return lx.src[lx.pos+n]
	}
	return 0
}

func (lx *lexer) run() error {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			lx.pos++
		case c == '/' && lx.peek(1) == '/':
			lx.skipLineComment()
		case c == '/' && lx.peek(1) == '*':
			if err := lx.skipBlockComment(); err != nil {
				return err
			}
		case c == 'r' && (lx.peek(1) == '\'' || lx.peek(1) == '"'):
			start := lx.pos
			lx.pos++
			interp, err := lx.scanString(true)
			if err != nil {
				return err
			}
			tok := lx.emit(String, start)
			tok.Raw = true
			tok.Interpolated = interp
		case isIdentStart(c):
			start := lx.pos
			for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
				lx.pos++
			}
			lx.emit(Ident, start)
		case c >= '0' && c <= '9':
			start := lx.pos
			lx.scanNumber()
			lx.emit(Number, start)
		case c == '\'' || c == '"':
			start := lx.pos
			interp, err := lx.scanString(false)
			if err != nil {
				return err
			}
			lx.emit(String, start).Interpolated = interp
		case c >= utf8.RuneSelf:
			// Non-ASCII outside strings and comments: treat as identifier text.
			start := lx.pos
			_, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
			lx.pos += size
			lx.emit(Ident, start)
		default:
			start := lx.pos
			lx.pos += punctLen(lx.src[lx.pos:])
			lx.emit(Punct, start)
		}
	}
	return nil
}

func (lx *lexer) skipLineComment() {
	for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
		lx.pos++
	}
}

// skipBlockComment handles nested /* */ comments.
func (lx *lexer) skipBlockComment() error {
	start := lx.pos
	depth := 0
	for lx.pos < len(lx.src) {
		switch {
		case lx.src[lx.pos] == '/' && lx.peek(1) == '*':
			depth++
			lx.pos += 2
		case lx.src[lx.pos] == '*' && lx.peek(1) == '/':
			depth--
			lx.pos += 2
			if depth == 0 {
				return nil
			}
		default:
			lx.pos++
		}
	}
	return lx.errorf(start, "unterminated block comment")
}

// scanString consumes a string literal starting at the opening quote.
// It reports whether the literal contains interpolation.
func (lx *lexer) scanString(raw bool) (bool, error) {
	start := lx.pos
	quote := lx.src[lx.pos]
	triple := lx.peek(1) == quote && lx.peek(2) == quote
	if triple {
		lx.pos += 3
	} else {
		lx.pos++
	}
	interp := false
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case !raw && c == '\\':
			lx.pos += 2
		case c == quote && (!triple || (lx.peek(1) == quote && lx.peek(2) == quote)):
			if triple {
				lx.pos += 3
			} else {
				lx.pos++
			}
			return interp, nil
		case c == '\n' && !triple:
			return interp, lx.errorf(start, "unterminated string literal")
		case !raw && c == '$' && lx.peek(1) == '{':
			interp = true
			lx.pos += 2
			if err := lx.skipInterpolation(); err != nil {
				return interp, err
			}
		case !raw && c == '$' && isIdentStart(lx.peek(1)):
			interp = true
			lx.pos++
		default:
			lx.pos++
		}
	}
	return interp, lx.errorf(start, "unterminated string literal")
}

// skipInterpolation consumes code inside ${...} up to the matching brace.
func (lx *lexer) skipInterpolation() error {
	start := lx.pos
	depth := 1
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '{':
			depth++
			lx.pos++
		case c == '}':
			depth--
			lx.pos++
			if depth == 0 {
				return nil
			}
		case c == '\'' || c == '"':
			if _, err := lx.scanString(false); err != nil {
				return err
			}
		case c == 'r' && (lx.peek(1) == '\'' || lx.peek(1) == '"'):
			lx.pos++
			if _, err := lx.scanString(true); err != nil {
				return err
			}
		case c == '/' && lx.peek(1) == '*':
			if err := lx.skipBlockComment(); err != nil {
				return err
			}
		default:
			lx.pos++
		}
	}
	return lx.errorf(start, "unterminated interpolation")
}

func (lx *lexer) scanNumber() {
	if lx.src[lx.pos] == '0' && (lx.peek(1) == 'x' || lx.peek(1) == 'X') {
		lx.pos += 2
		for lx.pos < len(lx.src) && isHexDigit(lx.src[lx.pos]) {
			lx.pos++
		}
		return
	}
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case isDigit(c) || c == '_':
			lx.pos++
		case c == '.' && isDigit(lx.peek(1)):
			lx.pos++
		case (c == 'e' || c == 'E') && (isDigit(lx.peek(1)) || ((lx.peek(1) == '-' || lx.peek(1) == '+') && isDigit(lx.peek(2)))):
			lx.pos += 2
		default:
			return
		}
	}
}

var multiPunct = []string{"...", "=>", "?.", "??", "..", "==", "!=", "<=", ">=", "&&", "||"}

func punctLen(s string) int {
	for _, p := range multiPunct {
		if strings.HasPrefix(s, p) {
			return len(p)
		}
	}
	return 1
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
