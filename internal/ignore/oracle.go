// Package ignore implements the ignore oracle contract named in Helix's
// external-interfaces section: a pure is_ignored(path) function, composed
// of built-in patterns, repo-level rules and user-level rules, in that
// ascending precedence order (user overrides repo overrides built-in,
// matching git's own .gitignore/.git/info/exclude/core.excludesfile
// layering).
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/helixvcs/helix/plumbing/format/gitignore"
)

// builtinPatterns are always ignored, regardless of repo or user rules;
// the VCS metadata directory can never be tracked.
var builtinPatterns = []string{
	".helix/",
}

// Oracle answers is_ignored queries for a single repository, composed from
// three pattern tiers.
type Oracle struct {
	builtin gitignore.Matcher
	repo    gitignore.Matcher
	user    gitignore.Matcher
}

// New builds an Oracle for a repository rooted at repoRoot. It reads
// <repoRoot>/.helixignore for repo-level rules and <userIgnorePath> (empty
// to skip) for user-level rules. Missing files are treated as empty
// pattern sets, not errors.
func New(repoRoot, userIgnorePath string) (*Oracle, error) {
	repoPatterns, err := loadPatternFile(filepath.Join(repoRoot, ".helixignore"))
	if err != nil {
		return nil, err
	}

	var userPatterns []string
	if userIgnorePath != "" {
		userPatterns, err = loadPatternFile(userIgnorePath)
		if err != nil {
			return nil, err
		}
	}

	return &Oracle{
		builtin: gitignore.NewMatcher(gitignore.ParsePatterns(builtinPatterns, nil)),
		repo:    gitignore.NewMatcher(gitignore.ParsePatterns(repoPatterns, nil)),
		user:    gitignore.NewMatcher(gitignore.ParsePatterns(userPatterns, nil)),
	}, nil
}

// IsIgnored reports whether the forward-slash-separated relative path
// should be excluded from tracking. Precedence ascends: a user rule can
// re-include something a repo rule ignores, and a repo rule can re-include
// something only the built-ins ignore. Each tier's verdict only applies
// when that tier actually matches the path (NoMatch carries the previous
// tier's verdict forward unchanged); this is what lets a later "!pattern"
// perform the re-inclusion instead of being unable to override an earlier
// tier's Exclude.
func (o *Oracle) IsIgnored(relPath string, isDir bool) bool {
	segs := strings.Split(relPath, "/")

	ignored := false
	for _, tier := range []gitignore.Matcher{o.builtin, o.repo, o.user} {
		switch tier.MatchResult(segs, isDir) {
		case gitignore.Exclude:
			ignored = true
		case gitignore.Include:
			ignored = false
		}
	}
	return ignored
}

func loadPatternFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return strings.Split(string(data), "\n"), nil
}
