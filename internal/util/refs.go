package util

import (
	"regexp"
	"strings"
)

var reCitation = regexp.MustCompile(`\[\[([^][]+)\]\]`)

// ExtractCitations returns the distinct citation identifiers marked as
// [[identifier]] inside raw text, in first-seen order. The text itself is
// never rewritten; offsets computed against it stay valid.
func ExtractCitations(s string) []string {
	matches := reCitation.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSpace(m[1])
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
