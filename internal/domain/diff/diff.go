// Package diff compares two snapshots key by key and detects likely renames.
package diff

import (
	"sort"
	"strings"

	"github.com/keyscope/keyscope/internal/domain"
)

// RenameThreshold is the similarity a removed/added pair must exceed to be a rename.
const RenameThreshold = 0.6

// Compare computes the key-level difference between baseline and current.
// Renames are paired greedily: removed keys are visited in sorted order and
// each takes the first sorted added key above the threshold. Either snapshot
// may be nil and is then treated as empty.
func Compare(baseline, current *domain.ScanResult) *domain.DiffResult {
	res := &domain.DiffResult{
		Added:     []string{},
		Removed:   []string{},
		Unchanged: []string{},
		Renamed:   map[string]string{},
		Baseline:  baseline,
		Current:   current,
	}

	var removed, added []string
	for _, k := range baseline.Keys() {
		if current.HasKey(k) {
			res.Unchanged = append(res.Unchanged, k)
		} else {
			removed = append(removed, k)
		}
	}
	for _, k := range current.Keys() {
		if !baseline.HasKey(k) {
			added = append(added, k)
		}
	}

	taken := make(map[string]bool, len(added))
	for _, r := range removed {
		matched := false
		for _, a := range added {
			if taken[a] || Similarity(r, a) <= RenameThreshold {
				continue
			}
			res.Renamed[r] = a
			taken[a] = true
			matched = true
			break
		}
		if !matched {
			res.Removed = append(res.Removed, r)
		}
	}
	for _, a := range added {
		if !taken[a] {
			res.Added = append(res.Added, a)
		}
	}
	return res
}

// Similarity is the Jaccard index of the token sets of a and b. Two keys
// without tokens have similarity 0.
func Similarity(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	common := 0
	for t := range ta {
		if tb[t] {
			common++
		}
	}
	return float64(common) / float64(len(ta)+len(tb)-common)
}

// Tokens splits a key on '.', '_' and '-', dropping empty tokens.
func Tokens(key string) []string {
	return strings.FieldsFunc(key, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
}

func tokenSet(key string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Tokens(key) {
		set[t] = true
	}
	return set
}

// SortedRenames returns the renamed pairs ordered by old key.
func SortedRenames(d *domain.DiffResult) [][2]string {
	olds := make([]string, 0, len(d.Renamed))
	for o := range d.Renamed {
		olds = append(olds, o)
	}
	sort.Strings(olds)
	out := make([][2]string, len(olds))
	for i, o := range olds {
		out[i] = [2]string{o, d.Renamed[o]}
	}
	return out
}
