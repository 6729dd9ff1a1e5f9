package executor

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_Index(t *testing.T) {
	tests := []struct {
		text    string
		pattern string
	}{
		{"", ""},
		{"abc", ""},
		{"", "a"},
		{"hello world", "world"},
		{"aaaa", "aa"},
		{"aabaaabaaac", "aaac"},
		{"abababca", "ababca"},
		{"abcabcabd", "abcabd"},
		{"ABCDEFGH\nABCDEFGH\n", "ABCDEFGH"},
		{"xyz", "xyzw"},
		{"mississippi", "issip"},
		{"aaaaab", "aab"},
	}
	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.pattern, func(t *testing.T) {
			got := newMatcher([]byte(tt.pattern)).index([]byte(tt.text))
			assert.Equal(t, bytes.Index([]byte(tt.text), []byte(tt.pattern)), got)
		})
	}
}

func TestMatcher_AgreesWithBytesIndex(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	randomString := func(alphabet string, n int) []byte {
		b := make([]byte, n)
		for i := range b {
			b[i] = alphabet[rng.IntN(len(alphabet))]
		}
		return b
	}

	for _, alphabet := range []string{"ab", "abc", "a\n"} {
		for i := 0; i < 2000; i++ {
			text := randomString(alphabet, rng.IntN(40))
			pattern := randomString(alphabet, 1+rng.IntN(6))
			want := bytes.Index(text, pattern)
			got := newMatcher(pattern).index(text)
			if !assert.Equal(t, want, got, "text=%q pattern=%q", text, pattern) {
				return
			}
		}
	}
}

func TestMatcher_Reusable(t *testing.T) {
	m := newMatcher([]byte("MARK"))
	assert.Equal(t, 2, m.index([]byte("a MARK b MARK")))
	assert.Equal(t, -1, m.index([]byte("MAR")))
	assert.Equal(t, 0, m.index([]byte("MARK")))
}
