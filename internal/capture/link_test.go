package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwrapLink(t *testing.T) {
	t.Parallel()

	cases := []struct {
		href  string
		param string
		want  string
		ok    bool
	}{
		{"https://ads.example/c?url=https%3A%2F%2Fwww.royalroad.com%2Ffiction%2F5", "url", "https://www.royalroad.com/fiction/5", true},
		{"https://ads.example/c?a=1&url=/premium", "url", "/premium", true},
		{"https://ads.example/c?a=1", "url", "", false},
		{"https://ads.example/c?url=", "url", "", false},
		{"https://www.royalroad.com/fiction/5", "url", "", false},
		{"", "url", "", false},
		{"http://[::1", "url", "", false},
	}
	for _, tc := range cases {
		got, ok := UnwrapLink(tc.href, tc.param)
		assert.Equal(t, tc.ok, ok, tc.href)
		assert.Equal(t, tc.want, got, tc.href)
	}
}

func TestIsHouseLink(t *testing.T) {
	t.Parallel()

	assert.True(t, isHouseLink("/premium", []string{"/premium"}))
	assert.False(t, isHouseLink("/premium/x", []string{"/premium"}))
	assert.False(t, isHouseLink("/premium", nil))
}

func TestBannerScript(t *testing.T) {
	t.Parallel()

	script := bannerScript(3, `odd"class`)
	assert.Contains(t, script, "const depth = 3;")
	assert.Contains(t, script, `CSS.escape("odd\"class")`)
}
