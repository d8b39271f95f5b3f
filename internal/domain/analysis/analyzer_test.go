package analysis_test

import (
	"testing"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/analysis"
	"github.com/keyscope/keyscope/internal/domain/dartlex"
	"github.com/keyscope/keyscope/internal/domain/detect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginScreen = `import 'package:flutter/material.dart';

class LoginScreen extends StatelessWidget {
  const LoginScreen({super.key});

  void _submit() {
    print('submit');
  }

  @override
  Widget build(BuildContext context) {
    return Column(children: [
      TextField(key: const Key('email_field'), onChanged: (v) => _validate(v)),
      ElevatedButton(
        key: const ValueKey('login_button'),
        onPressed: _submit,
        onLongPress: () {
          debugPrint('long');
        },
        child: const Text('Login'),
      ),
      TextButton(onPressed: null, child: Text('Forgot')),
      IconButton(onPressed: () {}, icon: Icon(Icons.help)),
      Semantics(identifier: 'help_section', child: Text('Help')),
    ]);
  }

  bool _validate(String v) => v.isNotEmpty;
}
`

func analyze(t *testing.T, text string) *analysis.Output {
	t.Helper()
	out, err := analysis.Analyze(analysis.Input{
		Path:    "/project/lib/login.dart",
		RelPath: "lib/login.dart",
		Text:    text,
	})
	require.NoError(t, err)
	return out
}

func TestAnalyze_KeysAndWidgets(t *testing.T) {
	out := analyze(t, loginScreen)
	fa := out.Analysis

	assert.Equal(t, []string{"email_field", "help_section", "login_button"}, fa.KeysFound)
	assert.Equal(t, domain.SourceWorkspace, fa.Source)
	assert.Equal(t, 4, fa.WidgetsTotal)
	assert.Equal(t, 2, fa.WidgetsWithKeys)
	assert.Equal(t, []string{"ElevatedButton", "IconButton", "TextButton", "TextField"}, fa.WidgetTypes)
	assert.Equal(t, []string{"IconButton", "TextButton"}, fa.UncoveredWidgetTypes)
	assert.Equal(t, 2, fa.DetectorHits["key_constructor"])
	assert.Equal(t, 1, fa.DetectorHits["semantics_identifier"])
	assert.Equal(t, []string{"_submit", "_validate", "build"}, fa.Functions)
	assert.Positive(t, fa.NodesAnalyzed)
	assert.Equal(t, len(loginScreen), fa.SizeBytes)
	assert.Equal(t, 29, fa.Lines)
}

func TestAnalyze_Handlers(t *testing.T) {
	out := analyze(t, loginScreen)
	fa := out.Analysis

	// onPressed: null is not a handler.
	assert.Equal(t, 4, fa.HandlersTotal)
	assert.Equal(t, 3, fa.HandlersWithKeys)

	login := out.Handlers["login_button"]
	require.Len(t, login, 2)
	assert.Equal(t, "pressed", login[0].Kind)
	assert.Equal(t, "_submit", login[0].Method)
	assert.Equal(t, "long_press", login[1].Kind)
	assert.Equal(t, "debugPrint", login[1].Method)
	assert.Equal(t, "lib/login.dart", login[0].File)
	assert.Equal(t, 16, login[0].Line)

	email := out.Handlers["email_field"]
	require.Len(t, email, 1)
	assert.Equal(t, "changed", email[0].Kind)
	assert.Equal(t, "_validate", email[0].Method)

	assert.Empty(t, out.Handlers["help_section"])
}

func TestAnalyze_EmptyClosureUsesEnclosingFunction(t *testing.T) {
	out := analyze(t, `
Widget build(BuildContext context) {
  return IconButton(key: Key('help'), onPressed: () {}, icon: x);
}`)
	h := out.Handlers["help"]
	require.Len(t, h, 1)
	assert.Equal(t, "build", h[0].Method)
}

func TestAnalyze_NamedAndGenericConstructors(t *testing.T) {
	out := analyze(t, `
final a = ElevatedButton.icon(key: Key('a'), onPressed: go, icon: i, label: l);
final b = DropdownButton<String>(items: items, onChanged: pick);
final c = foo.TextButton(onPressed: nope);
`)
	fa := out.Analysis
	assert.Equal(t, 2, fa.WidgetsTotal)
	assert.Equal(t, 1, fa.WidgetsWithKeys)
	assert.Equal(t, []string{"DropdownButton"}, fa.UncoveredWidgetTypes)
}

func TestAnalyze_ExtraWidgetTypes(t *testing.T) {
	out, err := analysis.Analyze(analysis.Input{
		RelPath:     "lib/a.dart",
		Text:        `AppButton(key: Key('x'));`,
		WidgetTypes: []string{"AppButton"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Analysis.WidgetsWithKeys)
}

func TestAnalyze_TokenizeError(t *testing.T) {
	_, err := analysis.Analyze(analysis.Input{RelPath: "lib/bad.dart", Text: "final s = 'open"})
	require.Error(t, err)
	var lexErr *dartlex.Error
	assert.ErrorAs(t, err, &lexErr)
	assert.Contains(t, err.Error(), "lib/bad.dart")
}

func TestAnalyze_PackageSource(t *testing.T) {
	out, err := analysis.Analyze(analysis.Input{
		RelPath: "lib/widgets.dart",
		Text:    `Key('shared')`,
		Source:  domain.SourcePackage,
		Package: "shared_ui@1.2.0",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePackage, out.Analysis.Source)
	assert.Equal(t, "shared_ui@1.2.0", out.Analysis.Package)
}

func TestDedupe_FirstWinsAndFillsResolution(t *testing.T) {
	hits := []domain.KeyHit{
		{Key: "b", Location: domain.KeyLocation{Line: 2, Column: 1, Detector: "key_constructor"}},
		{Key: "a", Location: domain.KeyLocation{Line: 1, Column: 5, Detector: "key_constructor"}},
		{Key: "a", Location: domain.KeyLocation{Line: 1, Column: 5, Detector: "key_constants", Resolution: "literal", Symbol: "aKey"}},
		{Key: "a", Location: domain.KeyLocation{Line: 3, Column: 5, Detector: "finder_call"}},
	}
	out := analysis.Dedupe(hits)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].Key)
	assert.Equal(t, "key_constructor", out[0].Location.Detector)
	assert.Equal(t, "literal", out[0].Location.Resolution)
	assert.Equal(t, "aKey", out[0].Location.Symbol)
	assert.Equal(t, "b", out[1].Key)
	assert.Equal(t, 3, out[2].Location.Line)
}

func TestAnalyze_ConstantsAndConstructorDeduplicate(t *testing.T) {
	out := analyze(t, `
class KeyConstants {
  static const save = 'save_button';
}
final w = ElevatedButton(key: Key('save_button'), onPressed: save);
`)
	require.Len(t, out.Hits, 1)
	loc := out.Hits[0].Location
	assert.Equal(t, "key_constructor", loc.Detector)
	assert.Equal(t, domain.ResolutionLiteral, loc.Resolution)
	assert.Equal(t, "save", loc.Symbol)
	assert.Equal(t, 1, out.Analysis.DetectorStats["key_constants"].KeysFound)
	assert.Equal(t, 0, out.Analysis.DetectorHits["key_constants"])
}

func TestHandlerKind(t *testing.T) {
	assert.Equal(t, "pressed", analysis.HandlerKind("onPressed"))
	assert.Equal(t, "long_press", analysis.HandlerKind("onLongPress"))
	assert.Equal(t, "tap", analysis.HandlerKind("onTap"))
	assert.Equal(t, "field_submitted", analysis.HandlerKind("onFieldSubmitted"))
}

func TestAnalyze_PanickingDetectorIsContained(t *testing.T) {
	broken := detect.Detector{Name: "broken", Detect: func(*detect.Source) detect.Result {
		var m map[string]int
		m["x"]++
		return detect.Result{}
	}}
	detectors := append([]detect.Detector{broken}, detect.All()...)

	out, err := analysis.Analyze(analysis.Input{
		Path:      "/project/lib/login.dart",
		RelPath:   "lib/login.dart",
		Text:      loginScreen,
		Detectors: detectors,
	})
	require.NoError(t, err)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, domain.ScanErrorDetector, out.Errors[0].Type)
	assert.Equal(t, "lib/login.dart", out.Errors[0].File)
	assert.Contains(t, out.Errors[0].Message, "detector broken panicked")
	assert.NotContains(t, out.Analysis.DetectorStats, "broken")
	assert.Contains(t, out.Analysis.KeysFound, "login_button")
}
