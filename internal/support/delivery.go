package support

import "regexp"

var fragmentBoundary = regexp.MustCompile(`\n\n|\n`)

// SplitFragments cuts text at blank-line and newline boundaries for paced
// delivery. Delimiters are kept as their own fragments and empty pieces are
// dropped, so joining the result reproduces text exactly.
func SplitFragments(text string) []string {
	var out []string
	last := 0
	for _, loc := range fragmentBoundary.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			out = append(out, text[last:loc[0]])
		}
		out = append(out, text[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}
