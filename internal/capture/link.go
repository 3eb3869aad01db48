package capture

import (
	"net/url"
	"strings"
)

// UnwrapLink returns the destination carried in the param query parameter
// of an ad click-through href. It reports false when there is no destination.
func UnwrapLink(href, param string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	dest := strings.TrimSpace(u.Query().Get(param))
	if dest == "" {
		return "", false
	}
	return dest, true
}

func isHouseLink(link string, house []string) bool {
	for _, h := range house {
		if link == h {
			return true
		}
	}
	return false
}
