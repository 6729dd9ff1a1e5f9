package executor

// matcher finds the first occurrence of a fixed pattern with the
// Knuth-Morris-Pratt algorithm. The failure table is built once per
// pattern, so each scan costs O(len(text) + len(pattern)).
type matcher struct {
	pattern []byte
	fail    []int
}

func newMatcher(pattern []byte) *matcher {
	fail := make([]int, len(pattern))
	k := 0
	for i := 1; i < len(pattern); i++ {
		for k > 0 && pattern[i] != pattern[k] {
			k = fail[k-1]
		}
		if pattern[i] == pattern[k] {
			k++
		}
		fail[i] = k
	}
	return &matcher{pattern: pattern, fail: fail}
}

// index returns the offset of the first occurrence of the pattern in text,
// or -1. An empty pattern matches at 0.
func (m *matcher) index(text []byte) int {
	n := len(m.pattern)
	if n == 0 {
		return 0
	}
	k := 0
	for i, b := range text {
		for k > 0 && b != m.pattern[k] {
			k = m.fail[k-1]
		}
		if b == m.pattern[k] {
			k++
		}
		if k == n {
			return i - n + 1
		}
	}
	return -1
}
