package detect

import (
	"regexp"
)

// keyConstructorRe matches Key, ValueKey, ObjectKey and UniqueKey
// constructor calls, with optional const/new and type arguments.
var keyConstructorRe = regexp.MustCompile(`(?:^|[^\w.$])(?:(?:const|new)\s+)?(Key|ValueKey|ObjectKey|UniqueKey)\s*(?:<[^<>()]*>)?\s*\(`)

// wrapperConstructorRe matches platform and test-harness key wrappers.
var wrapperConstructorRe = regexp.MustCompile(`(?:^|[^\w.$])(?:(?:const|new)\s+)?(PageStorageKey|GlobalObjectKey|LabeledGlobalKey|[A-Z]\w*TestKey|[A-Z]\w*AutomationKey)\s*(?:<[^<>()]*>)?\s*\(`)

// isUniqueKey skips UniqueKey(): it never carries an identifier.
func isUniqueKey(code string) func([]int) bool {
	return func(m []int) bool {
		return code[m[2]:m[3]] == "UniqueKey"
	}
}

func detectKeyConstructors(src *Source) Result {
	return argumentLiteral(src, "key_constructor", keyConstructorRe, false, isUniqueKey(src.Code))
}

func detectWrapperConstructors(src *Source) Result {
	return argumentLiteral(src, "wrapper_constructor", wrapperConstructorRe, false, nil)
}
