package gitinfo

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitInfoAdapter implements domain.ChangeResolver using go-git.
type GitInfoAdapter struct{}

func New() *GitInfoAdapter {
	return &GitInfoAdapter{}
}

func open(projectPath string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(projectPath, &git.PlainOpenOptions{DetectDotGit: true})
}

func (g *GitInfoAdapter) IsGitRepo(projectPath string) bool {
	_, err := open(projectPath)
	return err == nil
}

func (g *GitInfoAdapter) CommitHash(projectPath string) (string, error) {
	repo, err := open(projectPath)
	if err != nil {
		return "", fmt.Errorf("opening git repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}

	return head.Hash().String(), nil
}

// ChangedFiles lists files that differ between baseRef and HEAD, plus
// uncommitted and untracked worktree changes. Deleted files are omitted.
// Paths are slash-separated and relative to projectPath; files outside it
// are dropped.
func (g *GitInfoAdapter) ChangedFiles(ctx context.Context, projectPath, baseRef string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := open(projectPath)
	if err != nil {
		return nil, fmt.Errorf("opening git repo: %w", err)
	}

	base, err := repo.ResolveRevision(plumbing.Revision(baseRef))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", baseRef, err)
	}
	baseCommit, err := repo.CommitObject(*base)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", baseRef, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("loading HEAD commit: %w", err)
	}

	baseTree, err := baseCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading tree of %s: %w", baseRef, err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading HEAD tree: %w", err)
	}
	changes, err := baseTree.DiffContext(ctx, headTree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..HEAD: %w", baseRef, err)
	}

	changed := make(map[string]bool)
	for _, c := range changes {
		if c.To.Name != "" {
			changed[c.To.Name] = true
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	status, err := worktreeStatus(ctx, wt)
	if err != nil {
		return nil, fmt.Errorf("reading worktree status: %w", err)
	}
	for path, st := range status {
		if st.Worktree == git.Deleted || st.Staging == git.Deleted {
			delete(changed, path)
			continue
		}
		if st.Worktree != git.Unmodified || st.Staging != git.Unmodified {
			changed[path] = true
		}
	}

	return relativeTo(wt.Filesystem.Root(), projectPath, changed)
}

// worktreeStatus bounds the worktree walk by ctx. go-git's Status takes no
// context, so on cancellation the walk is abandoned and finishes on its own.
func worktreeStatus(ctx context.Context, wt *git.Worktree) (git.Status, error) {
	type outcome struct {
		status git.Status
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		st, err := wt.Status()
		done <- outcome{status: st, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.status, o.err
	}
}

// relativeTo rewrites repo-relative paths to be relative to projectPath.
func relativeTo(repoRoot, projectPath string, paths map[string]bool) ([]string, error) {
	root, err := canonicalDir(repoRoot)
	if err != nil {
		return nil, err
	}
	project, err := canonicalDir(projectPath)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(paths))
	for p := range paths {
		rel, err := filepath.Rel(project, filepath.Join(root, filepath.FromSlash(p)))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out, nil
}

func canonicalDir(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
