// Package detect holds the key detectors: independent pure pattern matchers,
// each recognizing one key-construction idiom in a single Dart file.
package detect

import (
	"encoding/binary"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/minio/highwayhash"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/dartlex"
)

// DetectorVersion changes whenever detector behavior changes, invalidating
// cached dependency results.
const DetectorVersion = "3"

const maxContextRunes = 120

// Result is the output of one detector over one file.
type Result struct {
	Hits []domain.KeyHit
	// Candidates counts trigger matches, whether or not they yielded a key.
	Candidates int
}

// Func is a detector implementation.
type Func func(src *Source) Result

// Detector is a named entry in the registry.
type Detector struct {
	Name   string
	Detect Func
}

var registry = []Detector{
	{Name: "key_constructor", Detect: detectKeyConstructors},
	{Name: "semantics_identifier", Detect: detectSemanticsIdentifiers},
	{Name: "key_constants", Detect: detectKeyConstants},
	{Name: "finder_call", Detect: detectFinderCalls},
	{Name: "key_attribute", Detect: detectKeyAttributes},
	{Name: "wrapper_constructor", Detect: detectWrapperConstructors},
}

// All returns every registered detector in table order.
func All() []Detector {
	return append([]Detector(nil), registry...)
}

// Names returns the registered detector names in table order.
func Names() []string {
	names := make([]string, len(registry))
	for i, d := range registry {
		names[i] = d.Name
	}
	return names
}

// Select returns the named detectors in table order. An empty list selects all.
func Select(names []string) []Detector {
	if len(names) == 0 {
		return All()
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Detector
	for _, d := range registry {
		if want[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// hashKey is the fixed HighwayHash key for detector fingerprints.
var hashKey = []byte("keyscope-detector-fingerprint-00")

// Fingerprint hashes the detector version together with the sorted detector
// names. The result is stable across runs and used in cache keys.
func Fingerprint(detectors []Detector) string {
	names := make([]string, len(detectors))
	for i, d := range detectors {
		names[i] = d.Name
	}
	sort.Strings(names)

	h, err := highwayhash.New64(hashKey)
	if err != nil {
		// Only possible with a key that is not 32 bytes.
		panic(err)
	}
	h.Write([]byte(DetectorVersion))
	for _, n := range names {
		h.Write([]byte{0})
		h.Write([]byte(n))
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return hex.EncodeToString(buf[:])
}

// Source is one file prepared for detection. Detectors match against Code,
// which has comments blanked but keeps offsets identical to Text.
type Source struct {
	File  string
	Text  string
	Code  string
	Lines *dartlex.Lines
}

// NewSource prepares text for detection.
func NewSource(file, text string) *Source {
	return &Source{
		File:  file,
		Text:  text,
		Code:  dartlex.Mask(text, false),
		Lines: dartlex.NewLines(text),
	}
}

// Run executes a single detector over text.
func Run(d Detector, file, text string) Result {
	return d.Detect(NewSource(file, text))
}

// location builds a KeyLocation for a byte offset.
func (s *Source) location(offset int, detector string) domain.KeyLocation {
	line, col := s.Lines.Position(offset)
	return domain.KeyLocation{
		File:     s.File,
		Line:     line,
		Column:   col,
		Detector: detector,
		Context:  snippet(s.Lines.Line(line)),
	}
}

func snippet(line string) string {
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= maxContextRunes {
		return line
	}
	r := []rune(line)
	return string(r[:maxContextRunes])
}

// literalRe matches a single-line Dart string literal, optionally raw.
var literalRe = regexp.MustCompile(`^\s*(r?)(?:'((?:[^'\\\n]|\\.)*)'|"((?:[^"\\\n]|\\.)*)")`)

// literal is a quoted string found at a given offset.
type literal struct {
	Offset int // offset of the opening quote or raw prefix
	End    int
	Value  string
	Static bool // false when the literal interpolates
}

// literalAt matches a string literal starting at offset, skipping leading
// whitespace. ok is false when no literal starts there.
func literalAt(code string, offset int) (literal, bool) {
	if offset >= len(code) {
		return literal{}, false
	}
	m := literalRe.FindStringSubmatchIndex(code[offset:])
	if m == nil {
		return literal{}, false
	}
	raw := m[3] > m[2]
	var body string
	switch {
	case m[4] >= 0:
		body = code[offset+m[4] : offset+m[5]]
	case m[6] >= 0:
		body = code[offset+m[6] : offset+m[7]]
	}
	lit := literal{
		Offset: offset + m[2],
		End:    offset + m[1],
		Value:  body,
		Static: raw || !hasInterpolation(body),
	}
	if !raw {
		lit.Value = dartlex.Unescape(body)
	}
	return lit, true
}

// hasInterpolation reports whether a non-raw string body contains an
// unescaped $ followed by an identifier or brace.
func hasInterpolation(body string) bool {
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '$':
			if i+1 < len(body) && (body[i+1] == '{' || isIdentStart(body[i+1])) {
				return true
			}
		}
	}
	return false
}

// closesArgument reports whether the text after a literal ends the argument.
func closesArgument(code string, offset int) bool {
	for i := offset; i < len(code); i++ {
		switch code[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ',', ')':
			return true
		default:
			return false
		}
	}
	return false
}

// startsLiteral reports whether a string literal begins at offset after whitespace.
func startsLiteral(code string, offset int) bool {
	for i := offset; i < len(code); i++ {
		switch c := code[i]; c {
		case ' ', '\t', '\n', '\r':
			continue
		case '\'', '"':
			return true
		case 'r':
			return i+1 < len(code) && (code[i+1] == '\'' || code[i+1] == '"')
		default:
			return false
		}
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// argumentLiteral handles the common "trigger then literal argument" shape:
// every trigger match is a candidate, and it yields a hit when followed by a
// static literal that closes the argument.
func argumentLiteral(src *Source, name string, trigger *regexp.Regexp, onlyQuoted bool, skip func(match []int) bool) Result {
	var res Result
	for _, m := range trigger.FindAllStringSubmatchIndex(src.Code, -1) {
		if skip != nil && skip(m) {
			continue
		}
		end := m[1]
		if onlyQuoted && !startsLiteral(src.Code, end) {
			continue
		}
		res.Candidates++
		lit, ok := literalAt(src.Code, end)
		if !ok || !lit.Static || lit.Value == "" || !closesArgument(src.Code, lit.End) {
			continue
		}
		res.Hits = append(res.Hits, domain.KeyHit{Key: lit.Value, Location: src.location(lit.Offset, name)})
	}
	return res
}
