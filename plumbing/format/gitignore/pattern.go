// Package gitignore implements gitignore-style pattern matching: a
// glob/double-star matcher, plus a precedence layer above it (matcher.go)
// that lets the last matching pattern win.
package gitignore

import (
	"path"
	"strings"
)

// MatchResult is the outcome of testing a single pattern against a path.
type MatchResult int

const (
	NoMatch MatchResult = iota
	Exclude
	Include
)

// Pattern is a single parsed gitignore-style line.
type Pattern interface {
	Match(path []string, isDir bool) MatchResult
}

type pattern struct {
	domain  []string
	segs    []string
	include bool
	dirOnly bool
	invalid bool
	rooted  bool
}

// ParsePattern parses one line of a gitignore-style file into a Pattern.
// domain scopes the pattern to a path prefix (e.g. the directory the
// pattern file lives in, relative to the repository root); nil means
// unscoped (matches anywhere).
func ParsePattern(line string, domain []string) Pattern {
	p := &pattern{domain: domain}

	if strings.HasPrefix(line, "!") {
		p.include = true
		line = line[1:]
	} else if strings.HasPrefix(line, `\!`) {
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	if strings.HasPrefix(line, "/") {
		p.rooted = true
		line = line[1:]
	}
	p.segs = strings.Split(line, "/")

	for _, seg := range p.segs {
		if strings.Contains(seg, "**") && seg != "**" {
			// A double asterisk that isn't its own path component is
			// invalid per gitignore's rules; such a pattern never matches.
			p.invalid = true
			break
		}
	}

	return p
}

func (p *pattern) Match(target []string, isDir bool) MatchResult {
	if p.invalid {
		return NoMatch
	}

	if len(p.domain) > 0 {
		if len(target) < len(p.domain) {
			return NoMatch
		}
		for i, d := range p.domain {
			if target[i] != d {
				return NoMatch
			}
		}
	}

	rel := target[len(p.domain):]
	if len(rel) == 0 {
		return NoMatch
	}

	if !p.matches(rel, isDir) {
		return NoMatch
	}
	if p.include {
		return Include
	}
	return Exclude
}

// anchored reports whether the pattern is rooted at its domain (it contains
// a "/" other than a trailing one) rather than matching at any depth.
func (p *pattern) anchored() bool {
	return p.rooted || len(p.segs) > 1
}

func (p *pattern) matches(rel []string, isDir bool) bool {
	if p.anchored() {
		return matchGlob(p.segs, rel, p.dirOnly, isDir)
	}
	for start := 0; start < len(rel); start++ {
		if matchGlob(p.segs, rel[start:], p.dirOnly, isDir) {
			return true
		}
	}
	return false
}

// matchGlob walks pattern segments against path segments, treating "**" as
// zero-or-more path components. When the pattern is exhausted before the
// path, the match succeeds (a directory pattern covers its descendants)
// unless the final matched segment was required to be a directory and
// isn't.
func matchGlob(pat, rel []string, dirOnly, isDir bool) bool {
	if len(pat) == 0 {
		return true
	}
	if len(rel) == 0 {
		// Only "**" segments can match zero remaining components.
		for _, s := range pat {
			if s != "**" {
				return false
			}
		}
		return true
	}

	if pat[0] == "**" {
		if matchGlob(pat[1:], rel, dirOnly, isDir) {
			return true
		}
		return matchGlob(pat, rel[1:], dirOnly, isDir)
	}

	ok, err := path.Match(pat[0], rel[0])
	if err != nil || !ok {
		return false
	}

	if len(pat) == 1 {
		if len(rel) == 1 {
			return !dirOnly || isDir
		}
		// More path components remain below the match: the matched
		// component is necessarily a directory.
		return true
	}

	return matchGlob(pat[1:], rel[1:], dirOnly, isDir)
}
