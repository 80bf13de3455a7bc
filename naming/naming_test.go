package naming

import "testing"

func TestScopedNameGeneratorDeduplicates(t *testing.T) {
	g := NewScopedNameGenerator("cpu-plugin")
	n1 := g.SourceName("probe")
	n2 := g.SourceName("probe")
	n3 := g.SourceName("probe")

	if n1.Element != "source-probe" {
		t.Fatalf("first name should be unsuffixed, got %q", n1.Element)
	}
	if n2.Element != "source-probe-1" {
		t.Fatalf("second name should get suffix -1, got %q", n2.Element)
	}
	if n3.Element != "source-probe-2" {
		t.Fatalf("third name should get suffix -2, got %q", n3.Element)
	}
}

func TestScopedNameGeneratorDistinctKinds(t *testing.T) {
	g := NewScopedNameGenerator("p")
	src := g.SourceName("x")
	out := g.OutputName("x")
	if src.Equal(out) {
		t.Fatal("a source and an output named the same thing should get distinct element names")
	}
}

func TestNameGeneratorPerPluginIsolation(t *testing.T) {
	ng := NewNameGenerator()
	a := ng.ForPlugin("plugin-a").SourceName("probe")
	b := ng.ForPlugin("plugin-b").SourceName("probe")

	if a.Element != "source-probe" || b.Element != "source-probe" {
		t.Fatalf("each plugin should get its own unsuffixed first name: %q / %q", a.Element, b.Element)
	}
	if a.Plugin == b.Plugin {
		t.Fatal("expected distinct plugin names")
	}
}

func TestParseStringPattern(t *testing.T) {
	cases := []struct {
		in      string
		wantErr error
	}{
		{"*", nil},
		{"*abcd", nil},
		{"abcd*", nil},
		{"exact", nil},
		{"a*b", ErrInteriorAsterisk},
		{"a*b*c", ErrInteriorAsterisk},
		{"", ErrEmptyPattern},
	}
	for _, c := range cases {
		_, err := ParseStringPattern(c.in)
		if err != c.wantErr {
			t.Errorf("ParseStringPattern(%q) error = %v, want %v", c.in, err, c.wantErr)
		}
	}
}

func TestStringPatternMatches(t *testing.T) {
	any, _ := ParseStringPattern("*")
	if !any.Matches("anything") {
		t.Error("* should match anything")
	}
	prefix, _ := ParseStringPattern("abcd*")
	if !prefix.Matches("abcdefg") || prefix.Matches("xabcd") {
		t.Error("prefix pattern mismatch")
	}
	suffix, _ := ParseStringPattern("*abcd")
	if !suffix.Matches("xabcd") || suffix.Matches("abcdx") {
		t.Error("suffix pattern mismatch")
	}
	exact, _ := ParseStringPattern("exact")
	if !exact.Matches("exact") || exact.Matches("exactly") {
		t.Error("exact pattern mismatch")
	}
}

func TestMatcherExactAndPattern(t *testing.T) {
	name := ElementName{Plugin: "cpu-plugin", Element: "source-probe"}
	exact := MatchExact(Source, name)
	if !exact.Matches(name) {
		t.Fatal("exact matcher should match its own name")
	}
	other := ElementName{Plugin: "cpu-plugin", Element: "source-other"}
	if exact.Matches(other) {
		t.Fatal("exact matcher should not match a different element")
	}

	all := MatchAll(Source)
	if !all.Matches(name) || !all.Matches(other) {
		t.Fatal("MatchAll should match every name")
	}

	byPlugin := MatchPlugin(Source, "cpu-plugin")
	if !byPlugin.Matches(name) {
		t.Fatal("plugin matcher should match an element from that plugin")
	}
	unrelated := ElementName{Plugin: "mem-plugin", Element: "source-probe"}
	if byPlugin.Matches(unrelated) {
		t.Fatal("plugin matcher should not match a different plugin's element")
	}
}
