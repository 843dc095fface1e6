package textmatch

// Distance computes the Levenshtein edit distance between a and b,
// counted in runes.
func Distance(a, b string) int {
	return runeDistance([]rune(a), []rune(b))
}

func runeDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(
				prev[j]+1,      // delete from a
				cur[j-1]+1,     // insert into a
				prev[j-1]+cost, // substitute
			)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Similarity scores how alike two strings are on a 0.0 to 1.0 scale:
// 1 - distance/max(len). Two empty strings score 1.0. The score is
// symmetric in its arguments.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(runeDistance(ra, rb))/float64(longest)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
