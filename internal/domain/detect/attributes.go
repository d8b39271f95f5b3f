package detect

import "regexp"

// semanticsIdentifierRe matches accessibility identifier named arguments.
var semanticsIdentifierRe = regexp.MustCompile(`\b(?:identifier|semanticsIdentifier|accessibilityIdentifier)\s*:`)

// keyAttributeRe matches a bare key: named argument.
var keyAttributeRe = regexp.MustCompile(`(?:^|[^\w.$])key\s*:`)

func detectSemanticsIdentifiers(src *Source) Result {
	return argumentLiteral(src, "semantics_identifier", semanticsIdentifierRe, true, nil)
}

// detectKeyAttributes only counts key: arguments whose value is a string
// literal; key: Key('x') belongs to the constructor detectors.
func detectKeyAttributes(src *Source) Result {
	return argumentLiteral(src, "key_attribute", keyAttributeRe, true, nil)
}
