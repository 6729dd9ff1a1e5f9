package executor

import (
	"crypto/rand"
)

// SentinelLength is the length of generated completion markers.
const SentinelLength = 8

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewSentinel returns a random alphanumeric completion marker.
func NewSentinel() string {
	out := make([]byte, 0, SentinelLength)
	var buf [16]byte
	for len(out) < SentinelLength {
		if _, err := rand.Read(buf[:]); err != nil {
			panic("executor: crypto/rand failed: " + err.Error())
		}
		for _, b := range buf {
			// 248 is the largest multiple of 62 below 256; rejecting the
			// rest keeps the distribution uniform.
			if b >= 248 {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == SentinelLength {
				break
			}
		}
	}
	return string(out)
}

// filterEcho removes the shell's echo of the marker command: everything up
// to and including the first "echo "+marker and the byte after it. It
// reports false, leaving buf untouched, until that byte has arrived.
func filterEcho(buf []byte, marker string) ([]byte, bool) {
	needle := newMatcher([]byte("echo " + marker))
	i := needle.index(buf)
	if i < 0 {
		return buf, false
	}
	end := i + len(needle.pattern) + 1
	if end > len(buf) {
		return buf, false
	}
	return buf[end:], true
}
