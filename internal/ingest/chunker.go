package ingest

import (
	"regexp"
	"strings"
)

// sentence-like units: a run of text up to and including a trailing
// terminator. Text without any terminator still yields one unit.
var sentenceUnit = regexp.MustCompile(`[^.!?]+[.!?]?`)

// SplitText splits text into chunks of at most maxChars characters, cut on
// sentence boundaries where possible. Units are accumulated greedily; a
// single unit longer than maxChars is hard-split at the bound. Chunks are
// whitespace-trimmed and never empty; concatenating the returned chunks
// reproduces the input text modulo that trimming.
func SplitText(text string, maxChars int) []string {
	units := sentenceUnit.FindAllString(text, -1)
	if units == nil {
		units = []string{text}
	}

	var chunks []string
	push := func(s string) {
		if t := strings.TrimSpace(s); t != "" {
			chunks = append(chunks, t)
		}
	}

	buffer := ""
	for _, u := range units {
		if runeLen(buffer)+runeLen(u) > maxChars {
			push(buffer)
			if runeLen(u) > maxChars {
				for _, piece := range hardSplit(u, maxChars) {
					push(piece)
				}
				buffer = ""
			} else {
				buffer = u
			}
		} else {
			buffer += u
		}
	}
	push(buffer)

	return chunks
}

// hardSplit slices s into fixed-size rune windows with no boundary
// awareness. Used only for units that cannot fit a chunk on their own.
func hardSplit(s string, maxChars int) []string {
	runes := []rune(s)
	var parts []string
	for i := 0; i < len(runes); i += maxChars {
		end := i + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
