// Package util provides hashing, address encoding, and canonical
// serialization helpers shared across the node.
package util

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"
)

// HashSize is the size, in bytes, of a double-SHA256 hash.
const HashSize = 32

// Hash256 computes sha256(sha256(b)), the hash used for block and
// transaction identifiers throughout the node.
func Hash256(b []byte) [HashSize]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Hash160 computes ripemd160(sha256(b)), used to derive addresses from
// public keys.
func Hash160(b []byte) []byte {
	sha := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sha[:]) //nolint:errcheck // ripemd160.Write never errors
	return r.Sum(nil)
}
