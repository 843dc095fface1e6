// Package textmatch implements the approximate string matching behind
// fuzzy anchor resolution: a Wu-Manber bitap search that finds
// occurrences of a pattern within a bounded edit distance, and a
// Levenshtein similarity score for verifying the context around a
// candidate. All offsets and distances are counted in runes.
package textmatch

// maxBitapPattern is the longest pattern the shift-and automaton tracks
// in one machine word. Longer patterns are located by their leading
// runes and verified with an alignment pass.
const maxBitapPattern = 63

// Match is one approximate occurrence of a pattern in a text.
type Match struct {
	// Start is the rune offset of the occurrence's first rune.
	Start int

	// End is the rune offset just past the occurrence's last rune.
	End int

	// Errors is the edit distance between the pattern and
	// text[Start:End].
	Errors int
}

// Search scans text for approximate occurrences of pattern, allowing up
// to maxErrors rune edits (insertions, deletions, substitutions).
// Overlapping hit positions of one underlying occurrence are collapsed
// to a single Match at the lowest-error alignment. Matches are returned
// in document order. A maxErrors of len(pattern) or more is clamped so
// a match always shares at least one rune with the pattern.
func Search(text []rune, pattern string, maxErrors int) []Match {
	p := []rune(pattern)
	if len(p) == 0 || len(text) == 0 {
		return nil
	}
	if maxErrors < 0 {
		maxErrors = 0
	}
	if maxErrors >= len(p) {
		maxErrors = len(p) - 1
	}
	if len(p) <= maxBitapPattern {
		return searchDirect(text, p, maxErrors)
	}
	return searchLong(text, p, maxErrors)
}

// searchDirect runs the shift-and automaton with error levels 0..k.
// R[e] bit i is set when pattern[0..i] matches a suffix of the text read
// so far with at most e edits; a hit at level e is an occurrence ending
// at the current rune with edit distance at most e.
func searchDirect(text, pattern []rune, k int) []Match {
	m := len(pattern)
	masks := make(map[rune]uint64, m)
	for i, r := range pattern {
		masks[r] |= 1 << uint(i)
	}
	accept := uint64(1) << uint(m-1)

	R := make([]uint64, k+1)
	prev := make([]uint64, k+1)
	for e := range R {
		// Level e starts with its first e prefix bits set: a prefix of
		// length e matches the empty text by deleting every rune.
		R[e] = (uint64(1) << uint(e)) - 1
	}

	var matches []Match
	clusterOpen := false
	var clusterBestJ, clusterBestE, lastHitJ int
	flush := func() {
		if !clusterOpen {
			return
		}
		matches = append(matches, alignMatch(text, pattern, clusterBestJ+1, clusterBestE))
		clusterOpen = false
	}

	for j, c := range text {
		copy(prev, R)
		cmask := masks[c]
		R[0] = ((prev[0] << 1) | 1) & cmask
		for e := 1; e <= k; e++ {
			R[e] = (((prev[e] << 1) | 1) & cmask) | // advance on match
				prev[e-1] | // insertion into the pattern
				((prev[e-1] << 1) | 1) | // substitution
				((R[e-1] << 1) | 1) // deletion from the pattern
		}

		hitE := -1
		for e := 0; e <= k; e++ {
			if R[e]&accept != 0 {
				hitE = e
				break
			}
		}
		if hitE < 0 {
			continue
		}
		if clusterOpen && j == lastHitJ+1 {
			if hitE < clusterBestE {
				clusterBestE, clusterBestJ = hitE, j
			}
		} else {
			flush()
			clusterOpen = true
			clusterBestJ, clusterBestE = j, hitE
		}
		lastHitJ = j
	}
	flush()
	return matches
}

// searchLong locates occurrences of patterns too long for one machine
// word: the automaton tracks the pattern's first maxBitapPattern runes
// with a proportional share of the error budget, then each located
// start is verified against the full pattern.
func searchLong(text, pattern []rune, k int) []Match {
	prefix := pattern[:maxBitapPattern]
	kPrefix := k * maxBitapPattern / len(pattern)
	if kPrefix < 1 {
		kPrefix = 1
	}
	if kPrefix >= maxBitapPattern {
		kPrefix = maxBitapPattern - 1
	}

	var matches []Match
	lastEnd := -1
	for _, loc := range searchDirect(text, prefix, kPrefix) {
		wend := loc.Start + len(pattern) + k
		if wend > len(text) {
			wend = len(text)
		}
		if loc.Start >= wend {
			continue
		}
		length, dist := alignPrefix(pattern, text[loc.Start:wend])
		if dist > k {
			continue
		}
		if loc.Start < lastEnd {
			continue
		}
		matches = append(matches, Match{Start: loc.Start, End: loc.Start + length, Errors: dist})
		lastEnd = loc.Start + length
	}
	return matches
}

// alignMatch recovers the start of an occurrence known to end at end
// with at most errors edits, by aligning the reversed pattern against
// the reversed text window before end.
func alignMatch(text, pattern []rune, end, errors int) Match {
	wstart := end - (len(pattern) + errors)
	if wstart < 0 {
		wstart = 0
	}
	length, dist := alignPrefix(reverseRunes(pattern), reverseRunes(text[wstart:end]))
	return Match{Start: end - length, End: end, Errors: dist}
}

// alignPrefix returns the length of the window prefix whose edit
// distance to the full pattern is minimal, and that distance. Ties
// prefer the longer prefix, so an occurrence absorbs its edge edits
// instead of shedding runes.
func alignPrefix(pattern, window []rune) (int, int) {
	m := len(pattern)
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for j := range prev {
		prev[j] = j
	}

	bestLen, bestDist := 0, m
	for i := 1; i <= len(window); i++ {
		cur[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if window[i-1] == pattern[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		if cur[m] <= bestDist {
			bestDist, bestLen = cur[m], i
		}
		prev, cur = cur, prev
	}
	return bestLen, bestDist
}

func reverseRunes(r []rune) []rune {
	out := make([]rune, len(r))
	for i, c := range r {
		out[len(r)-1-i] = c
	}
	return out
}
