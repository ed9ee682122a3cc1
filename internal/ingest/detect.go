package ingest

import "strings"

// delimiter candidates, in preference order on ties
var candidateDelimiters = []rune{',', '\t', ';', '|'}

// detectDelimiter inspects a leading sample of the content and picks the
// candidate whose per-line count is consistent and non-zero across the
// sampled lines. Returns false when no candidate qualifies.
func detectDelimiter(sample string, maxLines int) (rune, bool) {
	var lines []string
	for _, line := range strings.Split(sample, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= maxLines {
			break
		}
	}
	if len(lines) == 0 {
		return 0, false
	}

	best := rune(0)
	bestCount := 0
	for _, cand := range candidateDelimiters {
		count := strings.Count(lines[0], string(cand))
		if count == 0 {
			continue
		}
		consistent := true
		for _, line := range lines[1:] {
			if strings.Count(line, string(cand)) != count {
				consistent = false
				break
			}
		}
		if consistent && count > bestCount {
			best = cand
			bestCount = count
		}
	}
	if bestCount == 0 {
		return 0, false
	}
	return best, true
}
