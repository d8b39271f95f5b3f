package diff_test

import (
	"fmt"
	"testing"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/diff"
	"github.com/stretchr/testify/assert"
)

func snapshot(keys ...string) *domain.ScanResult {
	r := domain.NewScanResult()
	for _, k := range keys {
		r.KeyUsages[k] = &domain.KeyUsage{ID: k, Status: domain.StatusActive}
	}
	return r
}

func TestCompare_Identical(t *testing.T) {
	s := snapshot("a", "b_c", "d.e")
	d := diff.Compare(s, s)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
	assert.Empty(t, d.Renamed)
	assert.Equal(t, s.Keys(), d.Unchanged)
	assert.Zero(t, d.DriftPercentage())
	assert.False(t, d.HasChanges())
}

func TestCompare_Rename(t *testing.T) {
	d := diff.Compare(snapshot("app_main"), snapshot("app_main_view"))
	assert.Equal(t, map[string]string{"app_main": "app_main_view"}, d.Renamed)
	assert.Empty(t, d.Removed)
	assert.Empty(t, d.Added)
	assert.Equal(t, 100.0, d.DriftPercentage())
}

func TestCompare_NotARename(t *testing.T) {
	d := diff.Compare(snapshot("submit"), snapshot("submit_button"))
	assert.Empty(t, d.Renamed)
	assert.Equal(t, []string{"submit"}, d.Removed)
	assert.Equal(t, []string{"submit_button"}, d.Added)
}

func TestCompare_GreedyFirstMatch(t *testing.T) {
	// Both added keys clear the threshold for app_home_tab; the first in
	// sorted order wins and the other stays added.
	d := diff.Compare(
		snapshot("app_home_tab", "settings"),
		snapshot("app_home_tab_v1", "app_home_tab_v2", "settings"),
	)
	assert.Equal(t, map[string]string{"app_home_tab": "app_home_tab_v1"}, d.Renamed)
	assert.Equal(t, []string{"app_home_tab_v2"}, d.Added)
	assert.Empty(t, d.Removed)
	assert.Equal(t, []string{"settings"}, d.Unchanged)
	assert.Equal(t, 100.0, d.DriftPercentage())
}

func TestCompare_NilSnapshots(t *testing.T) {
	d := diff.Compare(nil, snapshot("a"))
	assert.Equal(t, []string{"a"}, d.Added)
	assert.Equal(t, 100.0, d.DriftPercentage())

	d = diff.Compare(snapshot("a"), nil)
	assert.Equal(t, []string{"a"}, d.Removed)
}

func TestCompare_Drift(t *testing.T) {
	var base, cur []string
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("key%03d", i)
		base = append(base, k)
		if i >= 10 {
			cur = append(cur, k)
		}
	}
	d := diff.Compare(snapshot(base...), snapshot(cur...))
	assert.Len(t, d.Removed, 10)
	assert.InDelta(t, 10.0, d.DriftPercentage(), 0.0001)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 2.0/3.0, diff.Similarity("app_main", "app_main_view"), 0.0001)
	assert.InDelta(t, 0.5, diff.Similarity("submit", "submit_button"), 0.0001)
	assert.Equal(t, 1.0, diff.Similarity("a.b-c", "c_b_a"))
	assert.Equal(t, 0.0, diff.Similarity("", ""))
	assert.Equal(t, 0.0, diff.Similarity("___", "..."))
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"app_main", "app_main_view"},
		{"login.button", "button-login-primary"},
		{"x", "y"},
		{"a_a_b", "a_b_b_c"},
	}
	for _, p := range pairs {
		assert.Equal(t, diff.Similarity(p[0], p[1]), diff.Similarity(p[1], p[0]), "%v", p)
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"auth", "login", "button"}, diff.Tokens("auth.login_button"))
	assert.Equal(t, []string{"a", "b"}, diff.Tokens("--a__b.."))
}

func TestSortedRenames(t *testing.T) {
	d := &domain.DiffResult{Renamed: map[string]string{"b": "b2", "a": "a2"}}
	assert.Equal(t, [][2]string{{"a", "a2"}, {"b", "b2"}}, diff.SortedRenames(d))
}
