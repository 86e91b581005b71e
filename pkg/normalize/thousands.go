package normalize

import (
	"regexp"
	"strings"
)

var (
	// an unbroken integer, or one that was already rejoined
	integerHead = regexp.MustCompile(`^-?(\d+|\d{1,3}(,\d{3})+)$`)
	// a 2-3 digit group, optionally already joined to later groups or
	// carrying the decimal remainder
	continuation = regexp.MustCompile(`^\d{2,3}(,\d{3})*(\.\d+)?$`)
)

// CanMerge reports whether a and b look like one number that an unquoted
// thousands separator split into two cells.
func CanMerge(a, b string) bool {
	return integerHead.MatchString(strings.TrimSpace(a)) && continuation.MatchString(strings.TrimSpace(b))
}

// MergeSplitThousands rejoins a mis-split number. It returns false when the
// pair does not qualify, e.g. ["15", "6"].
func MergeSplitThousands(a, b string) (float64, bool) {
	if !CanMerge(a, b) {
		return 0, false
	}
	return ParseNumber(join(a, b)), true
}

func join(a, b string) string {
	return strings.TrimSpace(a) + "," + strings.TrimSpace(b)
}

// RepairSplitThousands merges adjacent mis-split numeric cells until the row
// is no longer than width. Only pairs starting at a column for which numeric
// returns true are considered. When several pairs qualify, one whose second
// cell is a full three digit group wins, then the rightmost; so quantity "5"
// followed by amount "12","500" repairs to 5 and 12,500. It returns the
// repaired cells and the number of merges performed. The input slice is not
// modified.
func RepairSplitThousands(cells []string, width int, numeric func(col int) bool) ([]string, int) {
	if len(cells) <= width {
		return cells, 0
	}

	out := make([]string, len(cells))
	copy(out, cells)

	merges := 0
	for len(out) > width {
		i := nextMerge(out, numeric)
		if i < 0 {
			break
		}
		out[i] = join(out[i], out[i+1])
		out = append(out[:i+1], out[i+2:]...)
		merges++
	}
	return out, merges
}

func nextMerge(cells []string, numeric func(col int) bool) int {
	best, bestFull := -1, false
	for i := 0; i+1 < len(cells); i++ {
		if !numeric(i) || !CanMerge(cells[i], cells[i+1]) {
			continue
		}
		full := fullGroup(cells[i+1])
		if bestFull && !full {
			continue
		}
		best, bestFull = i, full
	}
	return best
}

// fullGroup reports whether the leading digit group of s has three digits.
func fullGroup(s string) bool {
	s = strings.TrimSpace(s)
	n := strings.IndexAny(s, ",.")
	if n < 0 {
		n = len(s)
	}
	return n == 3
}
