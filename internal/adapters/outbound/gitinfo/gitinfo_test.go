package gitinfo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyscope/keyscope/internal/adapters/outbound/gitinfo"
)

type repoFixture struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

func newRepo(t *testing.T) *repoFixture {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &repoFixture{t: t, dir: dir, repo: repo, wt: wt}
}

func (r *repoFixture) write(rel, content string) {
	r.t.Helper()
	p := filepath.Join(r.dir, filepath.FromSlash(rel))
	require.NoError(r.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(r.t, os.WriteFile(p, []byte(content), 0o644))
}

func (r *repoFixture) commit(msg string) string {
	r.t.Helper()
	_, err := r.wt.Add(".")
	require.NoError(r.t, err)
	hash, err := r.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()},
	})
	require.NoError(r.t, err)
	return hash.String()
}

func TestGitInfo_IsGitRepo_True(t *testing.T) {
	r := newRepo(t)
	gi := gitinfo.New()
	assert.True(t, gi.IsGitRepo(r.dir))
}

func TestGitInfo_IsGitRepo_False(t *testing.T) {
	dir := t.TempDir()
	gi := gitinfo.New()
	assert.False(t, gi.IsGitRepo(dir))
}

func TestGitInfo_CommitHash_ReturnsHash(t *testing.T) {
	r := newRepo(t)
	r.write("file.txt", "hello")
	want := r.commit("init")

	gi := gitinfo.New()
	hash, err := gi.CommitHash(r.dir)
	require.NoError(t, err)
	assert.Equal(t, want, hash)
	assert.Len(t, hash, 40, "should be a full SHA-1 hash")
}

func TestGitInfo_CommitHash_NotGitRepo(t *testing.T) {
	dir := t.TempDir()
	gi := gitinfo.New()
	_, err := gi.CommitHash(dir)
	assert.Error(t, err)
}

func TestGitInfo_ChangedFiles(t *testing.T) {
	r := newRepo(t)
	r.write("app/lib/a.dart", "a")
	r.write("app/lib/b.dart", "b")
	r.write("app/lib/gone.dart", "g")
	r.write("other/c.dart", "c")
	base := r.commit("base")

	r.write("app/lib/a.dart", "a2")
	r.write("other/c.dart", "c2")
	require.NoError(t, os.Remove(filepath.Join(r.dir, "app", "lib", "gone.dart")))
	r.commit("change")

	r.write("app/lib/b.dart", "b2")      // uncommitted
	r.write("app/lib/new.dart", "fresh") // untracked

	files, err := gitinfo.New().ChangedFiles(context.Background(), filepath.Join(r.dir, "app"), base)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/a.dart", "lib/b.dart", "lib/new.dart"}, files)
}

func TestGitInfo_ChangedFiles_UnknownRef(t *testing.T) {
	r := newRepo(t)
	r.write("a.dart", "a")
	r.commit("init")

	_, err := gitinfo.New().ChangedFiles(context.Background(), r.dir, "no-such-branch")
	assert.Error(t, err)
}

func TestGitInfo_ChangedFiles_NotGitRepo(t *testing.T) {
	_, err := gitinfo.New().ChangedFiles(context.Background(), t.TempDir(), "HEAD")
	assert.Error(t, err)
}

func TestGitInfo_ChangedFiles_ExpiredContext(t *testing.T) {
	r := newRepo(t)
	r.write("lib/a.dart", "a")
	r.commit("init")
	r.write("lib/a.dart", "b")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := gitinfo.New().ChangedFiles(ctx, r.dir, "HEAD")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
