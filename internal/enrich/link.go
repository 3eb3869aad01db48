package enrich

import (
	"fmt"
	"regexp"
	"strconv"
)

// DefaultLinkPattern matches fiction links on the content site.
const DefaultLinkPattern = `royalroad\.com/fiction/(\d+)`

// LinkMatcher extracts content ids from ad destination links.
type LinkMatcher struct {
	re *regexp.Regexp
}

// NewLinkMatcher compiles pattern. The first capture group must be the id.
func NewLinkMatcher(pattern string) (*LinkMatcher, error) {
	if pattern == "" {
		pattern = DefaultLinkPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile link pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("link pattern %q has no capture group", pattern)
	}
	return &LinkMatcher{re: re}, nil
}

// ContentID returns the id embedded in link.
func (m *LinkMatcher) ContentID(link string) (int64, bool) {
	match := m.re.FindStringSubmatch(link)
	if len(match) < 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

var defaultMatcher = regexp.MustCompile(DefaultLinkPattern)

// ContentIDFromLink applies DefaultLinkPattern.
func ContentIDFromLink(link string) (int64, bool) {
	return (&LinkMatcher{re: defaultMatcher}).ContentID(link)
}
