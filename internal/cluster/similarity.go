package cluster

import "unicode"

// Similarity is the Sørensen–Dice coefficient over character bigram multisets,
// ignoring whitespace. It is symmetric, bounded in [0, 1], and 1 for identical strings.
func Similarity(a, b string) float64 {
	ra := stripSpace(a)
	rb := stripSpace(b)
	if string(ra) == string(rb) {
		return 1
	}
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	counts := make(map[[2]rune]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		counts[[2]rune{ra[i], ra[i+1]}]++
	}

	shared := 0
	for i := 0; i < len(rb)-1; i++ {
		key := [2]rune{rb[i], rb[i+1]}
		if counts[key] > 0 {
			counts[key]--
			shared++
		}
	}

	return 2 * float64(shared) / float64(len(ra)+len(rb)-2)
}

func stripSpace(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			out = append(out, r)
		}
	}
	return out
}
