package gitignore

// Matcher applies an ordered set of patterns to a path, following git's
// rule that the last matching pattern wins (so a later "!pattern" can
// re-include something an earlier pattern excluded).
type Matcher interface {
	Match(path []string, isDir bool) bool

	// MatchResult is Match's tri-state form: NoMatch when nothing in this
	// matcher's pattern set says anything about path, Exclude or Include
	// when the last matching pattern decided one way or the other.
	// Callers composing several matchers by precedence need this
	// distinction — a plain bool can't tell "this tier is silent" apart
	// from "this tier explicitly re-included it".
	MatchResult(path []string, isDir bool) MatchResult
}

type matcher struct {
	patterns []Pattern
}

// NewMatcher builds a Matcher from patterns in file order (patterns
// appearing later take precedence over earlier ones, per gitignore rules).
func NewMatcher(patterns []Pattern) Matcher {
	return &matcher{patterns: patterns}
}

func (m *matcher) Match(path []string, isDir bool) bool {
	return m.MatchResult(path, isDir) == Exclude
}

func (m *matcher) MatchResult(path []string, isDir bool) MatchResult {
	result := NoMatch
	for _, p := range m.patterns {
		if r := p.Match(path, isDir); r != NoMatch {
			result = r
		}
	}
	return result
}

// ParsePatterns parses the non-blank, non-comment lines of a gitignore-
// style file body into Patterns scoped to domain.
func ParsePatterns(lines []string, domain []string) []Pattern {
	out := make([]Pattern, 0, len(lines))
	for _, line := range lines {
		if shouldSkipLine(line) {
			continue
		}
		out = append(out, ParsePattern(line, domain))
	}
	return out
}

func shouldSkipLine(line string) bool {
	if line == "" {
		return true
	}
	if line[0] == '#' {
		return true
	}
	return false
}
