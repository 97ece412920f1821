package crawler

import (
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Scope decides whether a candidate URL may be visited during a crawl
// rooted at a single host.
type Scope struct {
	host     string
	basePath string
	include  []glob.Glob
	exclude  []glob.Glob
}

// NewScope compiles include/exclude glob patterns (supporting **, *, ?)
// against the start URL's host and path.
func NewScope(start *url.URL, includePatterns, excludePatterns []string) (*Scope, error) {
	s := &Scope{host: start.Host, basePath: start.Path}
	for _, p := range includePatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		s.include = append(s.include, g)
	}
	for _, p := range excludePatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		s.exclude = append(s.exclude, g)
	}
	return s, nil
}

// InScope reports whether u is allowed to be fetched under this scope.
func (s *Scope) InScope(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host != s.host {
		return false
	}
	for _, g := range s.exclude {
		if g.Match(u.Path) {
			return false
		}
	}
	if len(s.include) > 0 {
		for _, g := range s.include {
			if g.Match(u.Path) {
				return true
			}
		}
		return false
	}
	return strings.HasPrefix(u.Path, s.basePath) || strings.HasPrefix(s.basePath, u.Path) || strings.HasPrefix(u.Path, "/")
}
