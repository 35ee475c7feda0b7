// Package segment splits input text into ordered sentence-level units.
package segment

import "strings"

// terminators is every character whose maximal run ends a segment. A run
// is kept and appended to the segment it closes rather than discarded,
// so re-joining segments reproduces the source up to whitespace
// normalization.
const terminators = "。．！？.!?"

// Split breaks text into a finite ordered list of non-empty, trimmed
// segments. Internal whitespace is collapsed to single spaces. A
// terminator run (one or more consecutive runes from terminators) closes
// the segment it trails. Text with no terminator at all comes back as one
// segment equal to the trimmed, whitespace-collapsed input. Blank input
// yields an empty slice.
//
// Split is deterministic and stateless: it is the only text-shaping step,
// so the exact bytes it emits are what downstream fingerprinting keys on.
func Split(text string) []string {
	normalized := collapseWhitespace(text)
	if normalized == "" {
		return nil
	}

	var segments []string
	var current strings.Builder

	runes := []rune(normalized)
	i := 0
	for i < len(runes) {
		r := runes[i]
		current.WriteRune(r)

		if strings.ContainsRune(terminators, r) {
			// Absorb the rest of this terminator run into the same segment.
			j := i + 1
			for j < len(runes) && strings.ContainsRune(terminators, runes[j]) {
				current.WriteRune(runes[j])
				j++
			}
			i = j

			seg := strings.TrimSpace(current.String())
			if seg != "" {
				segments = append(segments, seg)
			}
			current.Reset()
			continue
		}
		i++
	}

	if rest := strings.TrimSpace(current.String()); rest != "" {
		segments = append(segments, rest)
	}

	return segments
}

// collapseWhitespace trims the input and reduces every run of whitespace
// (including newlines) to a single ASCII space, so a multi-line script
// segments the same as its single-line equivalent.
func collapseWhitespace(text string) string {
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}
