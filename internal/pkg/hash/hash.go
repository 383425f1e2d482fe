// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// Key generates a deterministic 16 character id from an ordered list of parts.
// Parts are NUL separated so ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) string {
	return SHA256Short([]byte(strings.Join(parts, "\x00")), 16)
}

// CompatKey identifies a compatibility table computed for a dataset
// fingerprint with the given similarity parameters.
func CompatKey(dataset, method string, threshold, alpha, beta float64) string {
	return Key(
		dataset,
		method,
		strconv.FormatFloat(threshold, 'g', -1, 64),
		strconv.FormatFloat(alpha, 'g', -1, 64),
		strconv.FormatFloat(beta, 'g', -1, 64),
	)
}
