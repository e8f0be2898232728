// Package tags derives searchable tags from free-text descriptions.
//
// A tag is a hashtag: '#' followed by letters, digits or underscores. Tags
// are normalized by case folding, so "#Sunset!" and "#sunset" yield the same
// token.
package tags

import (
	"regexp"

	"golang.org/x/text/cases"
)

var (
	hashtag = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	word    = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// Extract returns the distinct normalized tags found in description, in
// order of first appearance. The result is never nil.
func Extract(description string) []string {
	matches := hashtag.FindAllStringSubmatch(description, -1)

	result := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		tag := fold(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}

// Normalize turns a user-supplied tag into the form stored by Extract: the
// first run of letters, digits and underscores, case folded. Input with no
// such run normalizes to "".
func Normalize(tag string) string {
	return fold(word.FindString(tag))
}

func fold(s string) string {
	// cases.Caser is stateful, so one per call.
	return cases.Fold().String(s)
}
