package dartlex

import "strings"

// Mask returns a copy of text with the same length and line structure in
// which comments are blanked. With blankStrings, string literal bodies are
// blanked too, keeping their delimiters, so structural scans never see
// braces or quotes inside literals. Text that fails to tokenize is masked up
// to the failure and copied verbatim after it.
func Mask(text string, blankStrings bool) string {
	toks, err := Tokenize(text)
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, t := range toks {
		writeBlank(&b, text[last:t.Offset])
		if t.Kind == String && blankStrings {
			writeStringShell(&b, t)
		} else {
			b.WriteString(t.Text)
		}
		last = t.End()
	}
	if err != nil {
		b.WriteString(text[last:])
	} else {
		writeBlank(&b, text[last:])
	}
	return b.String()
}

// writeBlank writes s with every byte except newlines replaced by spaces.
func writeBlank(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			b.WriteByte(s[i])
		} else {
			b.WriteByte(' ')
		}
	}
}

// writeStringShell keeps the prefix and quotes of a literal and blanks its body.
func writeStringShell(b *strings.Builder, t Token) {
	open, close := delimiters(t)
	b.WriteString(t.Text[:open])
	writeBlank(b, t.Text[open:len(t.Text)-close])
	b.WriteString(t.Text[len(t.Text)-close:])
}

// delimiters returns the byte lengths of the opening (with raw prefix) and
// closing delimiters of a string token.
func delimiters(t Token) (open, close int) {
	s := t.Text
	prefix := 0
	if t.Raw {
		prefix = 1
	}
	if len(s) >= prefix+6 && s[prefix] == s[prefix+1] && s[prefix] == s[prefix+2] {
		return prefix + 3, 3
	}
	if len(s) < prefix+2 {
		return len(s), 0
	}
	return prefix + 1, 1
}

// StringValue returns the body of a non-interpolated string token with
// escapes resolved. ok is false for interpolated literals.
func StringValue(t Token) (value string, ok bool) {
	if t.Kind != String || t.Interpolated {
		return "", false
	}
	open, close := delimiters(t)
	body := t.Text[open : len(t.Text)-close]
	if t.Raw {
		return body, true
	}
	return Unescape(body), true
}

// Unescape resolves Dart escape sequences in a string body.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
