package monitor

import (
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// exclusionSet matches source application names against the user's
// exclusion list. Entries are glob patterns ("*Password*", "1Password ?");
// an entry without metacharacters matches the whole name. Matching ignores
// case and Unicode normalisation differences.
type exclusionSet struct {
	exact    map[string]struct{}
	patterns []glob.Glob
}

func newExclusionSet(entries []string) exclusionSet {
	set := exclusionSet{exact: make(map[string]struct{}, len(entries))}
	for _, entry := range entries {
		key := normalizeApp(entry)
		if key == "" {
			continue
		}
		if !strings.ContainsAny(key, "*?[{") {
			set.exact[key] = struct{}{}
			continue
		}
		g, err := glob.Compile(key)
		if err != nil {
			// Not a valid pattern; treat it as a literal name.
			set.exact[key] = struct{}{}
			continue
		}
		set.patterns = append(set.patterns, g)
	}
	return set
}

func (s exclusionSet) Match(app string) bool {
	key := normalizeApp(app)
	if key == "" {
		return false
	}
	if _, ok := s.exact[key]; ok {
		return true
	}
	for _, g := range s.patterns {
		if g.Match(key) {
			return true
		}
	}
	return false
}

func normalizeApp(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return ""
	}
	// cases.Caser keeps state, so one per call.
	return cases.Fold().String(name)
}
