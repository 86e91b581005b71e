package tokenizer

// delimiterCandidates in tie-break order.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// sniffLines is how many leading lines SniffDelimiter looks at.
const sniffLines = 10

// SniffDelimiter guesses the field delimiter from the leading lines of text.
// The candidate present on the most lines wins, then the one with the most
// occurrences. Characters inside double quotes are ignored, so quoted
// amounts like "1,200" do not vote. Text with no candidate reads as comma.
func SniffDelimiter(text string) rune {
	linesWith := make([]int, len(delimiterCandidates))
	totals := make([]int, len(delimiterCandidates))
	current := make([]int, len(delimiterCandidates))

	flush := func() {
		for i, n := range current {
			if n > 0 {
				linesWith[i]++
				totals[i] += n
			}
			current[i] = 0
		}
	}

	inQuotes := false
	lines := 0
	for _, r := range text {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case r == '\n':
			flush()
			lines++
		default:
			for i, d := range delimiterCandidates {
				if r == d {
					current[i]++
				}
			}
		}
		if lines == sniffLines {
			break
		}
	}
	flush()

	best := 0
	for i := 1; i < len(delimiterCandidates); i++ {
		if linesWith[i] > linesWith[best] || (linesWith[i] == linesWith[best] && totals[i] > totals[best]) {
			best = i
		}
	}
	return delimiterCandidates[best]
}
