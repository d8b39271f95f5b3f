package analysis_test

import (
	"testing"

	"github.com/keyscope/keyscope/internal/domain/analysis"
	"github.com/stretchr/testify/assert"
)

func TestMatchGlob(t *testing.T) {
	assert.True(t, analysis.MatchGlob("lib/**/*.dart", "lib/a.dart"))
	assert.True(t, analysis.MatchGlob("lib/**/*.dart", "lib/src/ui/a.dart"))
	assert.False(t, analysis.MatchGlob("lib/**/*.dart", "test/a.dart"))
	assert.True(t, analysis.MatchGlob("**/legacy/**", "lib/legacy/old.dart"))
	assert.True(t, analysis.MatchGlob("*.g.dart", "lib/models/user.g.dart"))
	assert.False(t, analysis.MatchGlob("lib/*.dart", "lib/src/a.dart"))
	assert.True(t, analysis.MatchGlob("lib/{screens,widgets}/*.dart", "lib/widgets/avatar.dart"))
	assert.True(t, analysis.MatchGlob("*_button", "login_button"))
}

func TestFilter_DefaultsExcludeTestsGeneratedExamples(t *testing.T) {
	f := analysis.Filter{}
	assert.True(t, f.Allows("lib/main.dart", ""))
	assert.False(t, f.Allows("test/widget_test.dart", ""))
	assert.False(t, f.Allows("lib/login_test.dart", ""))
	assert.False(t, f.Allows("integration_test/app.dart", ""))
	assert.False(t, f.Allows("lib/user.freezed.dart", ""))
	assert.False(t, f.Allows("lib/api.dart", "// GENERATED CODE - DO NOT MODIFY BY HAND"))
	assert.False(t, f.Allows("example/lib/main.dart", ""))
}

func TestFilter_Flags(t *testing.T) {
	f := analysis.Filter{IncludeTests: true, IncludeGenerated: true, IncludeExamples: true}
	assert.True(t, f.Allows("test/widget_test.dart", ""))
	assert.True(t, f.Allows("lib/user.g.dart", ""))
	assert.True(t, f.Allows("examples/demo.dart", ""))
}

func TestFilter_IncludeExclude(t *testing.T) {
	f := analysis.Filter{Include: []string{"lib/**"}, Exclude: []string{"lib/legacy/**"}}
	assert.True(t, f.Allows("lib/ui/home.dart", ""))
	assert.False(t, f.Allows("lib/legacy/old.dart", ""))
	assert.False(t, f.Allows("tool/gen.dart", ""))
}
