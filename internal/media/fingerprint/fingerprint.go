// Package fingerprint computes the content hash used to deduplicate uploads.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
)

// Size is the length of a fingerprint in hex characters.
const Size = md5.Size * 2

// Sum returns the hex MD5 digest of data. It identifies content only and
// must not be used where collision resistance matters.
func Sum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s looks like a fingerprint produced by Sum.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
