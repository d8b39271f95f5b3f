package analysis

import (
	"sort"
	"strings"

	"github.com/fatih/camelcase"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/dartlex"
)

// DefaultWidgetTypes are the interactive widgets a test driver targets.
var DefaultWidgetTypes = []string{
	"ActionChip",
	"BackButton",
	"Checkbox",
	"CheckboxListTile",
	"ChoiceChip",
	"CloseButton",
	"CupertinoButton",
	"CupertinoSwitch",
	"CupertinoTextField",
	"Dismissible",
	"DropdownButton",
	"DropdownButtonFormField",
	"DropdownMenu",
	"ElevatedButton",
	"FilledButton",
	"FilterChip",
	"FloatingActionButton",
	"GestureDetector",
	"IconButton",
	"InkWell",
	"InputChip",
	"ListTile",
	"MaterialButton",
	"MenuItemButton",
	"NavigationDestination",
	"OutlinedButton",
	"PopupMenuButton",
	"PopupMenuItem",
	"Radio",
	"RadioListTile",
	"SearchBar",
	"SegmentedButton",
	"Slider",
	"Switch",
	"SwitchListTile",
	"Tab",
	"TextButton",
	"TextField",
	"TextFormField",
}

// widgetPrefixes may precede a constructor call as an identifier.
var widgetPrefixes = map[string]bool{
	"const": true, "new": true, "return": true, "await": true, "yield": true,
	"else": true, "case": true, "in": true, "throw": true,
}

// controlKeywords look like function definitions but are not.
var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "assert": true, "super": true, "this": true, "on": true,
	"with": true, "await": true, "throw": true, "new": true, "const": true,
}

// widget is one constructed UI element and its argument span.
type widget struct {
	Type  string
	Open  int // token index of '('
	Close int // token index of matching ')', or len(toks)
	Keyed bool
	Args  []namedArg

	// first and last tokens of the argument span
	lparen dartlex.Token
	rparen dartlex.Token
}

// namedArg is a top-level named argument of a widget call.
type namedArg struct {
	Name  string
	Index int // token index of the name
}

// function is a discovered function or method definition.
type function struct {
	Name   string
	Offset int
}

// matchParen returns the index of the token closing the bracket at open, or
// len(toks) when unbalanced.
func matchParen(toks []dartlex.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].Kind != dartlex.Punct {
			continue
		}
		switch toks[i].Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(toks)
}

// findWidgets locates calls Name( and Name.named( for Name in types.
func findWidgets(toks []dartlex.Token, types map[string]bool) []widget {
	var out []widget
	for i, t := range toks {
		if t.Kind != dartlex.Ident || !types[t.Text] {
			continue
		}
		if i > 0 {
			prev := toks[i-1]
			if prev.Kind == dartlex.Ident && !widgetPrefixes[prev.Text] {
				continue
			}
			if prev.Is(".") || prev.Is("?.") {
				continue
			}
		}
		open := skipTypeArgs(toks, i+1)
		if open+2 < len(toks) && toks[open].Is(".") && toks[open+1].Kind == dartlex.Ident {
			open += 2
		}
		if open >= len(toks) || !toks[open].Is("(") {
			continue
		}
		w := widget{Type: t.Text, Open: open, Close: matchParen(toks, open), lparen: toks[open]}
		if w.Close < len(toks) {
			w.rparen = toks[w.Close]
		} else {
			w.rparen = toks[len(toks)-1]
		}
		w.Args = topLevelArgs(toks, w.Open, w.Close)
		for _, a := range w.Args {
			if a.Name == "key" {
				w.Keyed = true
			}
		}
		out = append(out, w)
	}
	return out
}

// skipTypeArgs skips a <...> type argument list starting at i.
func skipTypeArgs(toks []dartlex.Token, i int) int {
	if i >= len(toks) || !toks[i].Is("<") {
		return i
	}
	depth := 0
	for j := i; j < len(toks); j++ {
		switch {
		case toks[j].Is("<"):
			depth++
		case toks[j].Is(">"):
			depth--
			if depth == 0 {
				return j + 1
			}
		case toks[j].Kind == dartlex.Punct && !toks[j].Is(",") && !toks[j].Is("?") && !toks[j].Is("."):
			return i
		}
	}
	return i
}

// topLevelArgs returns the named arguments directly inside the call span.
func topLevelArgs(toks []dartlex.Token, open, close int) []namedArg {
	var args []namedArg
	depth := 0
	for i := open; i < close && i < len(toks); i++ {
		t := toks[i]
		if t.Kind == dartlex.Punct {
			switch t.Text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
			continue
		}
		if depth != 1 || t.Kind != dartlex.Ident || i+1 >= len(toks) || !toks[i+1].Is(":") {
			continue
		}
		if prev := toks[i-1]; prev.Is("(") || prev.Is(",") {
			args = append(args, namedArg{Name: t.Text, Index: i})
		}
	}
	return args
}

// findFunctions discovers definitions shaped name(...) { / => / async.
func findFunctions(toks []dartlex.Token) []function {
	var out []function
	for i := 0; i+1 < len(toks); i++ {
		t := toks[i]
		if t.Kind != dartlex.Ident || controlKeywords[t.Text] || !toks[i+1].Is("(") {
			continue
		}
		if i > 0 && (toks[i-1].Is(".") || toks[i-1].Is("?.")) {
			continue
		}
		close := matchParen(toks, i+1)
		if close+1 >= len(toks) {
			continue
		}
		next := toks[close+1]
		if next.Is("{") || next.Is("=>") || next.Is("async") || next.Is("sync") {
			out = append(out, function{Name: t.Text, Offset: t.Offset})
		}
	}
	return out
}

// enclosingFunction returns the nearest definition preceding offset.
func enclosingFunction(funcs []function, offset int) string {
	name := ""
	for _, f := range funcs {
		if f.Offset > offset {
			break
		}
		name = f.Name
	}
	return name
}

// HandlerKind turns an on* argument name into a snake_case event kind:
// onPressed becomes pressed, onLongPress becomes long_press.
func HandlerKind(arg string) string {
	words := camelcase.Split(arg)
	if len(words) > 1 && words[0] == "on" {
		words = words[1:]
	}
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_")
}

func isHandlerArg(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "on") && name[2] >= 'A' && name[2] <= 'Z'
}

// handlerMethod resolves the callback an on* argument refers to. ok is false
// for null or missing values.
func handlerMethod(toks []dartlex.Token, arg namedArg, end int, funcs []function) (string, bool) {
	i := arg.Index + 2
	if i >= end {
		return "", false
	}
	v := toks[i]
	switch {
	case v.Is("null"):
		return "", false
	case v.Kind == dartlex.Ident:
		chain := []string{v.Text}
		for i+2 < end && (toks[i+1].Is(".") || toks[i+1].Is("?.")) && toks[i+2].Kind == dartlex.Ident {
			chain = append(chain, toks[i+2].Text)
			i += 2
		}
		return strings.Join(chain, "."), true
	case v.Is("("):
		// Closure: the first call in its body, else the enclosing function.
		bodyEnd := argumentEnd(toks, i, end)
		closeParams := matchParen(toks, i)
		for j := closeParams + 1; j+1 < bodyEnd; j++ {
			if toks[j].Kind == dartlex.Ident && !controlKeywords[toks[j].Text] && toks[j+1].Is("(") {
				return receiverChain(toks, j), true
			}
		}
		return enclosingFunction(funcs, v.Offset), true
	default:
		return enclosingFunction(funcs, v.Offset), true
	}
}

// receiverChain renders the dotted call target ending at token j, so
// Navigator.of(context) yields "Navigator.of".
func receiverChain(toks []dartlex.Token, j int) string {
	parts := []string{toks[j].Text}
	for j >= 2 && toks[j-1].Is(".") && toks[j-2].Kind == dartlex.Ident {
		parts = append([]string{toks[j-2].Text}, parts...)
		j -= 2
	}
	return strings.Join(parts, ".")
}

// argumentEnd returns the index of the ',' or ')' ending the argument that
// starts at i.
func argumentEnd(toks []dartlex.Token, i, end int) int {
	depth := 0
	for ; i < end; i++ {
		if toks[i].Kind != dartlex.Punct {
			continue
		}
		switch toks[i].Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case ",":
			if depth == 0 {
				return i
			}
		}
	}
	return end
}

// within reports whether loc falls inside the widget's argument span.
func (w widget) within(loc domain.KeyLocation) bool {
	after := loc.Line > w.lparen.Line || (loc.Line == w.lparen.Line && loc.Column > w.lparen.Col)
	before := loc.Line < w.rparen.Line || (loc.Line == w.rparen.Line && loc.Column < w.rparen.Col)
	return after && before
}

func widgetSet(extra []string) map[string]bool {
	set := make(map[string]bool, len(DefaultWidgetTypes)+len(extra))
	for _, t := range DefaultWidgetTypes {
		set[t] = true
	}
	for _, t := range extra {
		set[t] = true
	}
	return set
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
