package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExclusionSetMatch(t *testing.T) {
	set := newExclusionSet([]string{"1Password", "*Keychain*", "Bitwarden?", "  "})

	cases := []struct {
		app  string
		want bool
	}{
		{"1Password", true},
		{"1password", true},
		{" 1PASSWORD ", true},
		{"1Password 8", false},
		{"Keychain Access", true},
		{"Bitwarden1", true},
		{"Bitwarden", false},
		{"Terminal", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, set.Match(tc.app), "app %q", tc.app)
	}
}

func TestExclusionSetNormalisesUnicode(t *testing.T) {
	set := newExclusionSet([]string{"Caf\u00e9"})
	assert.True(t, set.Match("Cafe\u0301"))
	assert.True(t, set.Match("CAF\u00c9"))
}
