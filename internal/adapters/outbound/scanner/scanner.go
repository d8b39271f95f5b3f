package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var skipDirs = map[string]bool{
	".git":         true,
	".dart_tool":   true,
	".idea":        true,
	".cache":       true,
	".keyscope":    true,
	".fvm":         true,
	".pub-cache":   true,
	"build":        true,
	"node_modules": true,
	"Pods":         true,
	".symlinks":    true,
}

// IsSkippedDir reports whether the walker never descends into a directory
// with this name.
func IsSkippedDir(name string) bool { return skipDirs[name] }

// FileScanner implements domain.ProjectScanner by walking the filesystem.
type FileScanner struct{}

func New() *FileScanner {
	return &FileScanner{}
}

// Walk returns the sorted slash-separated paths of .dart files below root,
// relative to it. Directory names in excludeDirs are skipped along with the
// built-in tool and build directories.
func (s *FileScanner) Walk(root string, excludeDirs ...string) ([]string, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	// Merge extra excludes with built-in skip dirs.
	extraSkip := make(map[string]bool, len(excludeDirs))
	for _, p := range excludeDirs {
		extraSkip[strings.TrimSuffix(p, "/")] = true
	}

	var files []string
	err = filepath.WalkDir(absPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != absPath && (skipDirs[d.Name()] || extraSkip[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), ".dart") {
			return nil
		}
		relPath, err := filepath.Rel(absPath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", absPath, err)
	}

	sort.Strings(files)
	return files, nil
}
