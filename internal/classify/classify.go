// Package classify assigns a category to captured text. Rules are tried in
// order and the first match wins, so the order of the rules table is the
// tie-break order.
package classify

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"clipkeep/internal/clip"
)

type rule struct {
	category clip.Category
	match    func(content, trimmed string) bool
}

var rules = []rule{
	{clip.CategoryError, hasStackTrace},
	{clip.CategoryURL, hasURL},
	{clip.CategoryEmail, hasEmail},
	{clip.CategoryIP, hasIP},
	{clip.CategoryPath, looksLikePath},
	{clip.CategoryCommand, looksLikeCommand},
	{clip.CategoryError, hasErrorKeywords},
	{clip.CategoryCode, looksLikeCode},
}

// Classify returns the category for content. It never fails; content that
// matches no rule is Misc.
func Classify(content string) clip.Category {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return clip.CategoryMisc
	}
	for _, r := range rules {
		if r.match(content, trimmed) {
			return r.category
		}
	}
	return clip.CategoryMisc
}

var (
	urlRe   = regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.\-]*://\S+|\bwww\.\S+`)
	emailRe = regexp.MustCompile(`[\w.+\-]+@[\w\-]+\.[\w.]+`)
	ipv4Re  = regexp.MustCompile(`\b(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})\b`)
	winPath = regexp.MustCompile(`^[A-Za-z]:\\`)

	goroutineRe = regexp.MustCompile(`(?m)^goroutine \d+ \[`)
	javaFrameRe = regexp.MustCompile(`(?m)^\s+at [\w$.<>/]+\(.*\)\s*$`)
)

var stackTraceMarkers = []string{
	"Traceback (most recent call last)",
	"Exception in thread ",
	"Caused by: ",
}

func hasStackTrace(content, _ string) bool {
	for _, m := range stackTraceMarkers {
		if strings.Contains(content, m) {
			return true
		}
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "panic: ") {
			return true
		}
	}
	return goroutineRe.MatchString(content) || javaFrameRe.MatchString(content)
}

func hasURL(content, _ string) bool {
	return urlRe.MatchString(content)
}

func hasEmail(content, _ string) bool {
	return emailRe.MatchString(content)
}

func hasIP(content, trimmed string) bool {
	for _, loc := range ipv4Re.FindAllStringSubmatchIndex(content, -1) {
		parts := make([]string, 0, 4)
		for i := 2; i < len(loc); i += 2 {
			parts = append(parts, content[loc[i]:loc[i+1]])
		}
		if validOctets(parts) && standaloneQuad(content, loc[0], loc[1], parts) {
			return true
		}
	}
	if !strings.Contains(trimmed, ":") {
		return false
	}
	addr, err := netip.ParseAddr(trimmed)
	return err == nil && addr.Is6()
}

var versionCueRe = regexp.MustCompile(`(?i)(?:\bv|\bver|\bversion|\brelease|\bbuild|\brev)[\s:=]*$`)

// standaloneQuad rejects dotted quads that are part of a longer token or
// read as a version number: "v1.2.3.4", "Chrome/120.0.0.0", "1.2.3.4.5",
// "version 10.1.2.3", and reduced user-agent versions such as "120.0.0.0".
func standaloneQuad(content string, start, end int, parts []string) bool {
	if start > 0 && strings.ContainsRune(".-/_", rune(content[start-1])) {
		return false
	}
	if end+1 < len(content) && content[end] == '.' && content[end+1] >= '0' && content[end+1] <= '9' {
		return false
	}
	if versionCueRe.MatchString(content[:start]) {
		return false
	}
	if parts[1] == "0" && parts[2] == "0" && parts[3] == "0" {
		switch parts[0] {
		case "0", "10", "127":
		default:
			return false
		}
	}
	return true
}

func validOctets(parts []string) bool {
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

func looksLikePath(_, trimmed string) bool {
	// Line and block comments start with '/' too.
	if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") {
		return false
	}
	for _, p := range []string{"/", "~/", "./", "../"} {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return winPath.MatchString(trimmed)
}

var knownBinaries = map[string]struct{}{
	"apt": {}, "apt-get": {}, "brew": {}, "cargo": {}, "cd": {}, "chmod": {},
	"chown": {}, "curl": {}, "deno": {}, "dnf": {}, "docker": {}, "git": {},
	"go": {}, "grep": {}, "helm": {}, "journalctl": {}, "kubectl": {}, "ls": {},
	"mkdir": {}, "node": {}, "npm": {}, "npx": {}, "pacman": {}, "pip": {},
	"pip3": {}, "pnpm": {}, "python": {}, "python3": {}, "rm": {}, "rsync": {},
	"rustc": {}, "scp": {}, "ssh": {}, "sudo": {}, "systemctl": {}, "tar": {},
	"terraform": {}, "wget": {}, "yarn": {}, "yum": {},
}

func isKnownBinary(word string) bool {
	_, ok := knownBinaries[word]
	return ok
}

func looksLikeCommand(_, trimmed string) bool {
	firstLine, _, _ := strings.Cut(trimmed, "\n")
	fields := strings.Fields(firstLine)
	if len(fields) == 0 {
		return false
	}
	switch {
	case fields[0] == "$":
		return true
	case fields[0] == "#":
		// "# Heading" is markdown, "# apt install x" is a root prompt.
		return len(fields) > 1 && isKnownBinary(fields[1])
	default:
		return isKnownBinary(fields[0])
	}
}

var errorKeywords = []string{
	"error", "exception", "failed", "fatal", "panic", "traceback",
	"uncaught", "segfault", "abort", "crash",
}

func hasErrorKeywords(content, _ string) bool {
	lines := nonBlankLines(strings.ToLower(content))
	if len(lines) == 0 {
		return false
	}
	hits := 0
	for _, line := range lines {
		for _, kw := range errorKeywords {
			if strings.Contains(line, kw) {
				hits++
				break
			}
		}
	}
	if len(lines) == 1 {
		return hits == 1
	}
	return float64(hits)/float64(len(lines)) > 0.3
}

var codeLinePrefixes = []string{
	"fn ", "func ", "def ", "class ", "import ", "from ", "const ", "let ",
	"var ", "function ", "async ", "return ", "package ", "#include ",
	"public ", "private ", "struct ", "impl ", "type ",
}

var codeFragments = []string{"if (", "for (", "while (", " => ", "();", "};"}

func looksLikeCode(content, _ string) bool {
	if open := strings.IndexByte(content, '{'); open >= 0 && strings.LastIndexByte(content, '}') > open {
		return true
	}
	for _, f := range codeFragments {
		if strings.Contains(content, f) {
			return true
		}
	}
	lines := nonBlankLines(content)
	indented := 0
	for _, line := range lines {
		if line[0] == ' ' || line[0] == '\t' {
			indented++
		}
		stripped := strings.TrimLeft(line, " \t")
		for _, p := range codeLinePrefixes {
			if strings.HasPrefix(stripped, p) {
				return true
			}
		}
	}
	return len(lines) >= 3 && indented*2 >= len(lines)
}

func nonBlankLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
