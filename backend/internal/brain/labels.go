package brain

import (
	"regexp"
	"strings"
)

var (
	labelUnsafe        = regexp.MustCompile(`[^A-Za-z0-9:]`)
	relationshipUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// SanitizeLabels replaces everything outside [A-Za-z0-9:] with '_'
func SanitizeLabels(labels string) string {
	return labelUnsafe.ReplaceAllString(labels, "_")
}

// SanitizeRelationshipType makes name usable as a single relationship type.
// An empty name falls back to DefaultLinkLabel.
func SanitizeRelationshipType(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultLinkLabel
	}
	return relationshipUnsafe.ReplaceAllString(name, "_")
}

// JoinLabels folds names from the outermost ancestor to the type itself
func JoinLabels(names []string) string {
	return SanitizeLabels(strings.Join(names, ":"))
}

// SplitLabels returns the non-empty segments of a composite label string
func SplitLabels(labels string) []string {
	parts := strings.Split(labels, ":")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
