package analysis

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which files a scan analyzes. Paths are slash-separated and
// relative to the scan root.
type Filter struct {
	Include          []string
	Exclude          []string
	IncludeTests     bool
	IncludeGenerated bool
	IncludeExamples  bool
}

var generatedSuffixes = []string{".g.dart", ".freezed.dart", ".mocks.dart", ".gr.dart", ".config.dart"}

var testDirs = []string{"test", "integration_test", "test_driver"}

var exampleDirs = []string{"example", "examples"}

// Allows reports whether rel should be analyzed. header is the beginning of
// the file and is only consulted for generated-code markers; it may be empty.
func (f Filter) Allows(rel, header string) bool {
	if !f.IncludeTests && IsTestFile(rel) {
		return false
	}
	if !f.IncludeGenerated && IsGenerated(rel, header) {
		return false
	}
	if !f.IncludeExamples && IsExample(rel) {
		return false
	}
	if len(f.Include) > 0 && !matchAny(f.Include, rel) {
		return false
	}
	return !matchAny(f.Exclude, rel)
}

// IsTestFile reports whether rel is test code.
func IsTestFile(rel string) bool {
	return strings.HasSuffix(rel, "_test.dart") || hasDir(rel, testDirs)
}

// IsGenerated reports whether rel is generated code, by name or header marker.
func IsGenerated(rel, header string) bool {
	for _, s := range generatedSuffixes {
		if strings.HasSuffix(rel, s) {
			return true
		}
	}
	return strings.Contains(header, "GENERATED CODE")
}

// IsExample reports whether rel lives under an example directory.
func IsExample(rel string) bool {
	return hasDir(rel, exampleDirs)
}

func hasDir(rel string, dirs []string) bool {
	parts := strings.Split(rel, "/")
	for _, p := range parts[:len(parts)-1] {
		for _, d := range dirs {
			if p == d {
				return true
			}
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if MatchGlob(p, rel) {
			return true
		}
	}
	return false
}

// MatchGlob matches a slash-separated name against a glob in which "**"
// spans any number of path segments. A pattern without a slash also matches
// the base name, so "*.g.dart" excludes generated files at any depth.
// Malformed patterns match nothing.
func MatchGlob(pattern, name string) bool {
	if !strings.Contains(pattern, "/") {
		if ok, _ := doublestar.Match(pattern, path.Base(name)); ok {
			return true
		}
	}
	ok, _ := doublestar.Match(pattern, name)
	return ok
}
