package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// ComputeValueFingerprint produces a deterministic hash over a tag, a shape
// and a flat float payload. Bit patterns are hashed directly so two results
// fingerprint equal iff their values are bit-identical.
func ComputeValueFingerprint(tag string, dims []int, values []float64) Hash {
	buf := make([]byte, 0, len(tag)+8*(len(dims)+len(values)))
	buf = append(buf, tag...)
	var scratch [8]byte
	for _, d := range dims {
		binary.LittleEndian.PutUint64(scratch[:], uint64(d))
		buf = append(buf, scratch[:]...)
	}
	for _, v := range values {
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
		buf = append(buf, scratch[:]...)
	}
	return NewHash(buf)
}
