package naming

// Matcher selects zero or more elements of one kind, either by their exact
// assigned name or by a name pattern (spec.md §4.C, §4.F: control requests
// target elements through a Matcher). The same shape serves sources,
// transforms and outputs; ElementKind is carried alongside for callers
// that need to know which.
type Matcher struct {
	Kind    ElementKind
	exact   *ElementName
	pattern *ElementNamePattern
}

// MatchExact returns a Matcher that selects exactly the named element.
func MatchExact(kind ElementKind, name ElementName) Matcher {
	n := name
	return Matcher{Kind: kind, exact: &n}
}

// MatchPattern returns a Matcher that selects every element of kind whose
// name satisfies pattern.
func MatchPattern(kind ElementKind, pattern ElementNamePattern) Matcher {
	p := pattern
	return Matcher{Kind: kind, pattern: &p}
}

// MatchAll returns a Matcher that selects every element of kind.
func MatchAll(kind ElementKind) Matcher {
	return MatchPattern(kind, ElementNamePattern{Plugin: AnyStringPattern(), Element: AnyStringPattern()})
}

// MatchPlugin returns a Matcher that selects every element of kind
// belonging to plugin.
func MatchPlugin(kind ElementKind, plugin PluginName) Matcher {
	return MatchPattern(kind, ElementNamePattern{Plugin: ExactStringPattern(string(plugin)), Element: AnyStringPattern()})
}

// Matches reports whether name, of the matcher's kind, is selected.
func (m Matcher) Matches(name ElementName) bool {
	if m.exact != nil {
		return m.exact.Equal(name)
	}
	if m.pattern != nil {
		return m.pattern.Matches(name)
	}
	return false
}

// String renders the matcher for logging and error messages.
func (m Matcher) String() string {
	if m.exact != nil {
		return m.exact.String()
	}
	if m.pattern != nil {
		return m.pattern.Plugin.kindString() + "/" + m.pattern.Element.kindString()
	}
	return "<empty matcher>"
}

// kindString renders enough of a StringPattern to be useful in a Matcher's
// String output, without exposing the pattern's internal representation.
func (p StringPattern) kindString() string {
	switch p.kind {
	case patternAny:
		return "*"
	case patternStartsWith:
		return p.prefix + "*"
	case patternEndsWith:
		return "*" + p.suffix
	default:
		return p.exact
	}
}
