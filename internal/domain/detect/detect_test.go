package detect_test

import (
	"testing"

	"github.com/keyscope/keyscope/internal/domain"
	"github.com/keyscope/keyscope/internal/domain/detect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byName(t *testing.T, name string) detect.Detector {
	t.Helper()
	ds := detect.Select([]string{name})
	require.Len(t, ds, 1)
	return ds[0]
}

func keys(res detect.Result) []string {
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.Key)
	}
	return out
}

func TestRegistry_Order(t *testing.T) {
	assert.Equal(t, []string{
		"key_constructor",
		"semantics_identifier",
		"key_constants",
		"finder_call",
		"key_attribute",
		"wrapper_constructor",
	}, detect.Names())
}

func TestSelect_EmptySelectsAll(t *testing.T) {
	assert.Len(t, detect.Select(nil), len(detect.Names()))
}

func TestSelect_KeepsTableOrder(t *testing.T) {
	ds := detect.Select([]string{"finder_call", "key_constructor", "bogus"})
	require.Len(t, ds, 2)
	assert.Equal(t, "key_constructor", ds[0].Name)
	assert.Equal(t, "finder_call", ds[1].Name)
}

func TestFingerprint_StableAndOrderIndependent(t *testing.T) {
	a := detect.Fingerprint(detect.Select([]string{"key_constructor", "finder_call"}))
	b := detect.Fingerprint(detect.Select([]string{"finder_call", "key_constructor"}))
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, detect.Fingerprint(detect.All()))
}

func TestKeyConstructor(t *testing.T) {
	src := `
ElevatedButton(
  key: const Key('submit_button'),
  onPressed: _submit,
);
ListTile(key: ValueKey<String>("user_tile"));
Card(key: ObjectKey('card'), child: x);
Widget w = Container(key: UniqueKey());
Text(key: ValueKey(item.id));
`
	res := detect.Run(byName(t, "key_constructor"), "lib/a.dart", src)
	assert.Equal(t, []string{"submit_button", "user_tile", "card"}, keys(res))
	// UniqueKey is not a candidate; ValueKey(item.id) is.
	assert.Equal(t, 4, res.Candidates)

	loc := res.Hits[0].Location
	assert.Equal(t, "lib/a.dart", loc.File)
	assert.Equal(t, 3, loc.Line)
	assert.Equal(t, 18, loc.Column)
	assert.Equal(t, "key_constructor", loc.Detector)
	assert.Equal(t, "key: const Key('submit_button'),", loc.Context)
}

func TestKeyConstructor_IgnoresCommentsAndInterpolation(t *testing.T) {
	src := `
// Key('commented_out')
/* ValueKey('also_commented') */
final k = Key('item_$index');
final j = MyKey('not_a_key');
`
	res := detect.Run(byName(t, "key_constructor"), "a.dart", src)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 1, res.Candidates)
}

func TestSemanticsIdentifier(t *testing.T) {
	src := `Semantics(identifier: 'login_form', child: Foo(semanticsIdentifier: "pwd"), label: x)
Bar(accessibilityIdentifier: someVar)`
	res := detect.Run(byName(t, "semantics_identifier"), "a.dart", src)
	assert.Equal(t, []string{"login_form", "pwd"}, keys(res))
	assert.Equal(t, 2, res.Candidates)
}

func TestFinderCall(t *testing.T) {
	src := `
await tester.tap(find.byValueKey('login_button'));
driver.tap(find.byKey("menu"));
expect(find.bySemanticsIdentifier('profile'), findsOneWidget);
await $(#settingsTile).tap();
find.byKey(const Key('nested'));
`
	res := detect.Run(byName(t, "finder_call"), "test/a_test.dart", src)
	assert.Equal(t, []string{"login_button", "menu", "profile", "settingsTile"}, keys(res))
	assert.Equal(t, 4, res.Candidates)
	assert.Equal(t, 5, res.Hits[3].Location.Line)
	assert.Equal(t, 9, res.Hits[3].Location.Column)
}

func TestKeyAttribute(t *testing.T) {
	src := `MyButton(key: 'raw_key', onTap: f)
Other(key: Key('ctor'))
Third(monkey: 'nope')`
	res := detect.Run(byName(t, "key_attribute"), "a.dart", src)
	assert.Equal(t, []string{"raw_key"}, keys(res))
	assert.Equal(t, 1, res.Candidates)
}

func TestWrapperConstructor(t *testing.T) {
	src := `
PageStorageKey('feed_list');
GlobalObjectKey("global");
LabeledGlobalKey<FormState>('form');
const CheckoutTestKey('checkout_pay');
AppAutomationKey('automation_id');
PageStorageKey(variable);
`
	res := detect.Run(byName(t, "wrapper_constructor"), "a.dart", src)
	assert.Equal(t, []string{"feed_list", "global", "form", "checkout_pay", "automation_id"}, keys(res))
	assert.Equal(t, 6, res.Candidates)
}

const constantsFile = `
class KeyConstants {
  static const String loginButton = 'login_button';
  static final logoutButton = "logout_button";
  static Key itemKey(String id) => Key('item_$id');
  static String tabKey(int index) {
    return 'tab_${index}';
  }
  static Key home() => const Key('home_screen');
}

Widget build() {
  return Column(children: [
    ElevatedButton(key: Key(KeyConstants.loginButton)),
    Tile(key: KeyConstants.itemKey('42')),
    Tile(key: KeyConstants.itemKey(item.id)),
    Tab(key: ValueKey(KeyConstants.tabKey(3))),
    Text('logout_button'),
    Foo(key: KeyConstants.unknownThing),
  ]);
}
`

func TestKeyConstants_TwoPassResolution(t *testing.T) {
	res := detect.Run(byName(t, "key_constants"), "lib/keys.dart", constantsFile)
	require.Len(t, res.Hits, 5)

	byKey := make(map[string]domain.KeyLocation)
	for _, h := range res.Hits {
		byKey[h.Key] = h.Location
	}

	assert.Equal(t, domain.ResolutionResolved, byKey["login_button"].Resolution)
	assert.Equal(t, "loginButton", byKey["login_button"].Symbol)
	assert.Equal(t, 14, byKey["login_button"].Line)

	assert.Equal(t, domain.ResolutionResolved, byKey["item_42"].Resolution)
	assert.Equal(t, "itemKey", byKey["item_42"].Symbol)

	assert.Equal(t, domain.ResolutionResolved, byKey["item_{id}"].Resolution)
	// A non-literal argument keeps the template placeholder.
	assert.Equal(t, "tab_{index}", keyAt(res, 17))

	assert.Equal(t, domain.ResolutionLiteral, byKey["logout_button"].Resolution)
	assert.Equal(t, "logoutButton", byKey["logout_button"].Symbol)

	// Five references plus one matching literal.
	assert.Equal(t, 6, res.Candidates)
}

func keyAt(res detect.Result, line int) string {
	for _, h := range res.Hits {
		if h.Location.Line == line {
			return h.Key
		}
	}
	return ""
}

func TestKeyConstants_NoHolderClass(t *testing.T) {
	res := detect.Run(byName(t, "key_constants"), "a.dart", `Key(Other.loginButton); Text('x');`)
	assert.Empty(t, res.Hits)
	assert.Zero(t, res.Candidates)
}

func TestDetectors_NeverPanicOnMalformedInput(t *testing.T) {
	inputs := []string{
		"",
		"Key(",
		"Key('unterminated",
		"class KeyConstants {",
		"class KeyConstants { static const a = '",
		"find.byKey(\"",
		"$(#",
		"/* never closed Key('x')",
		"key:",
	}
	for _, in := range inputs {
		for _, d := range detect.All() {
			assert.NotPanics(t, func() { detect.Run(d, "bad.dart", in) }, "%s on %q", d.Name, in)
		}
	}
}
