// Package textnorm canonicalizes track/artist titles for fuzzy comparison.
package textnorm

import (
	"regexp"
	"strings"
)

// featureMarkers are artist-feature markers stripped before comparison.
// They are matched as whole words (see replaceFeatureMarkers), so their
// order here does not matter.
var featureMarkers = []string{
	"featuring", "feat.", "feat", "ft.", "ft", "prod.", "prod", "w/", "with",
}

// bracketGroup matches a single balanced (...)/[...]/{...} group with no
// nested brackets, e.g. "(Remastered)", "[feat. X]".
var bracketGroup = regexp.MustCompile(`[\(\[\{][^()\[\]{}]*[\)\]\}]`)

var punctuation = strings.NewReplacer(
	"'", "", `"`, "", "!", "", "?", "", ";", "", ":", "", ",", "", ".", "",
)

var pathSeparators = strings.NewReplacer(
	"/", " ", `\`, " ", "_", " ", "-", " ",
)

var residualBrackets = strings.NewReplacer(
	"(", "", ")", "", "[", "", "]", "", "{", "", "}", "",
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize produces a canonical form of s for fuzzy comparison, following
// the steps in spec.md §4.1 in order: lowercase+trim, strip bracket groups,
// strip feature markers, fold "&"/"+" to "and", strip punctuation, replace
// path separators with spaces, collapse whitespace. Feature markers that
// only become whole words after punctuation or separator replacement
// (e.g. "input__with/slashes") are dropped by a second marker pass.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	text := strings.ToLower(strings.TrimSpace(s))
	text = bracketGroup.ReplaceAllString(text, " ")
	text = replaceFeatureMarkers(text)
	text = strings.ReplaceAll(text, "&", "and")
	text = strings.ReplaceAll(text, "+", "and")
	text = punctuation.Replace(text)
	text = residualBrackets.Replace(text)
	text = pathSeparators.Replace(text)
	text = replaceFeatureMarkers(text)
	text = whitespaceRun.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// markerSet indexes featureMarkers for O(1) whole-word lookup.
var markerSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(featureMarkers))
	for _, marker := range featureMarkers {
		m[marker] = struct{}{}
	}
	return m
}()

// replaceFeatureMarkers drops whole-word occurrences of each feature
// marker, so "artist ft another" -> "artist another" (words are re-joined
// with single spaces), without corrupting substrings like "draft".
func replaceFeatureMarkers(text string) string {
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if _, isMarker := markerSet[w]; isMarker {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
