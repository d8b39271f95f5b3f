package detect

import (
	"regexp"

	"github.com/keyscope/keyscope/internal/domain"
)

// finderCallRe matches test-driver finder calls taking a key string.
var finderCallRe = regexp.MustCompile(`\b(?:find\s*\.\s*)?(?:byValueKey|byKey|bySemanticsIdentifier)\s*\(`)

// patrolSymbolRe matches Patrol symbol finders such as $(#loginButton).
var patrolSymbolRe = regexp.MustCompile(`\$\(\s*#([A-Za-z_]\w*)\s*\)`)

func detectFinderCalls(src *Source) Result {
	res := argumentLiteral(src, "finder_call", finderCallRe, true, nil)
	for _, m := range patrolSymbolRe.FindAllStringSubmatchIndex(src.Code, -1) {
		res.Candidates++
		res.Hits = append(res.Hits, domain.KeyHit{
			Key:      src.Code[m[2]:m[3]],
			Location: src.location(m[2]-1, "finder_call"),
		})
	}
	return res
}
