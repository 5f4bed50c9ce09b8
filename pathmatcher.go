package mockfs

import (
	"path"
	"regexp"
)

// PathMatcher matches a path against a set of rules.
type PathMatcher interface {
	// Matches returns true if the path matches the matcher.
	Matches(path string) bool
}

// ExactMatcher matches a single path exactly.
type ExactMatcher struct {
	path string
}

// NewExactMatcher creates a matcher for a single path.
func NewExactMatcher(path string) *ExactMatcher {
	return &ExactMatcher{path: path}
}

// Matches returns true if the path exactly matches the stored path.
func (m *ExactMatcher) Matches(path string) bool {
	return path == m.path
}

// GlobMatcher matches a path against a glob pattern with [path.Match] semantics.
type GlobMatcher struct {
	pattern string
}

// NewGlobMatcher creates a matcher for a glob pattern.
// It returns path.ErrBadPattern if the pattern is malformed.
func NewGlobMatcher(pattern string) (*GlobMatcher, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	return &GlobMatcher{pattern: pattern}, nil
}

// Matches returns true if the path matches the glob pattern.
func (m *GlobMatcher) Matches(p string) bool {
	ok, _ := path.Match(m.pattern, p)
	return ok
}

// RegexpMatcher matches a path against a regular expression.
type RegexpMatcher struct {
	re *regexp.Regexp
}

// NewRegexpMatcher creates a matcher for a regular expression.
func NewRegexpMatcher(pattern string) (*RegexpMatcher, error) {
	r, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexpMatcher{re: r}, nil
}

// Matches returns true if the path matches the regular expression.
func (m *RegexpMatcher) Matches(path string) bool {
	return m.re.MatchString(path)
}

// WildcardMatcher matches all paths.
// Use this when you want an error rule to apply universally.
type WildcardMatcher struct{}

// NewWildcardMatcher creates a matcher that matches all paths.
func NewWildcardMatcher() *WildcardMatcher {
	return &WildcardMatcher{}
}

// Matches returns true for all paths.
func (m *WildcardMatcher) Matches(path string) bool {
	return true
}
