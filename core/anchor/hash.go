package anchor

// hashBase is the multiplier for the polynomial rolling hash. 131 is a
// common choice that distributes short English strings well.
const hashBase = 131

// ContentHash computes a 32-bit polynomial rolling hash of the span text.
//
// The hash exists for fast equality and deduplication checks before any
// expensive resolution work; it is not cryptographic and must never be
// used as an integrity or security boundary.
func ContentHash(text string) uint32 {
	var h uint32
	for i := 0; i < len(text); i++ {
		h = h*hashBase + uint32(text[i])
	}
	return h
}
