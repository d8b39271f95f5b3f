package detect

import (
	"regexp"
	"strings"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/dartlex"
)

// ConstantsClass is the well-known holder class for key constants.
const ConstantsClass = "KeyConstants"

var (
	constantsClassRe = regexp.MustCompile(`\bclass\s+` + ConstantsClass + `\b[^{;]*\{`)
	constantFieldRe  = regexp.MustCompile(`\bstatic\s+(?:const|final)\s+(?:String\s+)?([A-Za-z_]\w*)\s*=\s*`)
	constantMethodRe = regexp.MustCompile(`\bstatic\s+(?:const\s+)?(?:Key|ValueKey(?:<String>)?|String)\s+([A-Za-z_]\w*)\s*\(\s*(?:(?:final\s+)?(?:String|int|Object|dynamic)\s+([A-Za-z_]\w*))?\s*\)\s*(?:=>|\{\s*return\b)`)
	constantRefRe    = regexp.MustCompile(`\b` + ConstantsClass + `\s*\.\s*([A-Za-z_]\w*)`)
	templateInnerRe  = regexp.MustCompile(`^\s*(?:const\s+)?(?:(?:Key|ValueKey)\s*(?:<String>)?\s*\(\s*)?`)
)

// constantIndex is pass one of constant-class resolution: the fields and
// key-building methods declared on the holder class in this file.
type constantIndex struct {
	fields    map[string]string
	byValue   map[string]string
	methods   map[string]keyTemplate
	bodyStart int
	bodyEnd   int
}

// keyTemplate is a key-building method body. Param is empty for zero-argument
// methods; otherwise Pattern contains Param interpolated as $param or ${param}.
type keyTemplate struct {
	Pattern string
	Param   string
}

// expand substitutes arg for the template parameter.
func (t keyTemplate) expand(arg string) string {
	if t.Param == "" {
		return t.Pattern
	}
	out := strings.ReplaceAll(t.Pattern, "${"+t.Param+"}", arg)
	return strings.ReplaceAll(out, "$"+t.Param, arg)
}

// placeholder renders the template with a named placeholder for unknown arguments.
func (t keyTemplate) placeholder() string {
	if t.Param == "" {
		return t.Pattern
	}
	return t.expand("{" + t.Param + "}")
}

func indexConstants(src *Source) *constantIndex {
	loc := constantsClassRe.FindStringIndex(src.Code)
	if loc == nil {
		return nil
	}
	structural := dartlex.Mask(src.Text, true)
	end := matchBrace(structural, loc[1]-1)
	idx := &constantIndex{
		fields:    make(map[string]string),
		byValue:   make(map[string]string),
		methods:   make(map[string]keyTemplate),
		bodyStart: loc[0],
		bodyEnd:   end,
	}
	body := src.Code[loc[1]:end]
	base := loc[1]

	for _, m := range constantFieldRe.FindAllStringSubmatchIndex(body, -1) {
		lit, ok := literalAt(src.Code, base+m[1])
		if !ok || !lit.Static || lit.Value == "" {
			continue
		}
		name := body[m[2]:m[3]]
		idx.fields[name] = lit.Value
		if _, dup := idx.byValue[lit.Value]; !dup {
			idx.byValue[lit.Value] = name
		}
	}

	for _, m := range constantMethodRe.FindAllStringSubmatchIndex(body, -1) {
		name := body[m[2]:m[3]]
		param := ""
		if m[4] >= 0 {
			param = body[m[4]:m[5]]
		}
		inner := templateInnerRe.FindStringIndex(body[m[1]:])
		lit, ok := literalAt(src.Code, base+m[1]+inner[1])
		if !ok || lit.Value == "" {
			continue
		}
		if !lit.Static && (param == "" || !onlyInterpolates(lit.Value, param)) {
			continue
		}
		idx.methods[name] = keyTemplate{Pattern: lit.Value, Param: param}
	}
	return idx
}

// onlyInterpolates reports whether the only interpolation in value is param.
func onlyInterpolates(value, param string) bool {
	stripped := strings.ReplaceAll(value, "${"+param+"}", "")
	stripped = strings.ReplaceAll(stripped, "$"+param, "")
	return !hasInterpolation(stripped)
}

// matchBrace returns the offset of the brace closing the one at open, or
// len(code) when unbalanced.
func matchBrace(code string, open int) int {
	depth := 0
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(code)
}

func (idx *constantIndex) inBody(offset int) bool {
	return offset >= idx.bodyStart && offset <= idx.bodyEnd
}

// detectKeyConstants resolves usages against the holder class in two passes:
// index the class, then classify references and literals elsewhere in the file.
func detectKeyConstants(src *Source) Result {
	const name = "key_constants"
	var res Result
	idx := indexConstants(src)
	if idx == nil {
		return res
	}

	for _, m := range constantRefRe.FindAllStringSubmatchIndex(src.Code, -1) {
		if idx.inBody(m[0]) {
			continue
		}
		res.Candidates++
		symbol := src.Code[m[2]:m[3]]
		loc := src.location(m[0], name)
		loc.Resolution = domain.ResolutionResolved
		loc.Symbol = symbol

		if value, ok := idx.fields[symbol]; ok {
			res.Hits = append(res.Hits, domain.KeyHit{Key: value, Location: loc})
			continue
		}
		tmpl, ok := idx.methods[symbol]
		if !ok {
			continue
		}
		key := tmpl.placeholder()
		if arg, ok := callArgument(src.Code, m[1]); ok {
			key = tmpl.expand(arg)
		}
		res.Hits = append(res.Hits, domain.KeyHit{Key: key, Location: loc})
	}

	if len(idx.byValue) == 0 {
		return res
	}
	toks, _ := dartlex.Tokenize(src.Text)
	for _, t := range toks {
		if t.Kind != dartlex.String || idx.inBody(t.Offset) {
			continue
		}
		value, ok := dartlex.StringValue(t)
		if !ok {
			continue
		}
		symbol, ok := idx.byValue[value]
		if !ok {
			continue
		}
		res.Candidates++
		loc := src.location(t.Offset, name)
		loc.Resolution = domain.ResolutionLiteral
		loc.Symbol = symbol
		res.Hits = append(res.Hits, domain.KeyHit{Key: value, Location: loc})
	}
	return res
}

var callArgRe = regexp.MustCompile(`^\s*\(`)

// callArgument returns the static literal argument of a call starting at offset.
func callArgument(code string, offset int) (string, bool) {
	m := callArgRe.FindStringIndex(code[offset:])
	if m == nil {
		return "", false
	}
	lit, ok := literalAt(code, offset+m[1])
	if !ok || !lit.Static || !closesArgument(code, lit.End) {
		return "", false
	}
	return lit.Value, true
}
