package policy

import (
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/keyscope/keyscope/internal/domain"
)

// SortSources orders source identities: workspace first, then packages by
// name, then by semantic version for repeated names.
func SortSources(sources []string) {
	sort.SliceStable(sources, func(i, j int) bool {
		return sourceLess(sources[i], sources[j])
	})
}

func sourceLess(a, b string) bool {
	ws := string(domain.SourceWorkspace)
	if a == ws || b == ws {
		return a == ws && b != ws
	}
	an, av := splitIdentity(a)
	bn, bv := splitIdentity(b)
	if an != bn {
		return an < bn
	}
	return CompareVersions(av, bv) < 0
}

func splitIdentity(id string) (name, version string) {
	if i := strings.LastIndex(id, "@"); i >= 0 {
		return id[:i], id[i+1:]
	}
	return id, ""
}

// CompareVersions compares pub versions as semver, falling back to string
// order when either is not valid semver.
func CompareVersions(a, b string) int {
	va, vb := canonical(a), canonical(b)
	if semver.IsValid(va) && semver.IsValid(vb) {
		return semver.Compare(va, vb)
	}
	return strings.Compare(a, b)
}

func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
