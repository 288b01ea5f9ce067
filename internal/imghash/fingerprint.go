package imghash

import (
	"fmt"
	"math/bits"
	"strconv"

	"github.com/corona10/goimagehash"
)

// FingerprintBits is the width of a perceptual fingerprint: a 16x16 pHash
// produces 256 bits.
const FingerprintBits = 256

const fingerprintWords = FingerprintBits / 64

// Fingerprint is a fixed-width perceptual hash, stored as 64-bit words.
// Word 0 holds bits 0-63, with bit 0 in the most significant position.
type Fingerprint []uint64

// ParseFingerprint decodes the hex form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	if len(s) != fingerprintWords*16 {
		return nil, fmt.Errorf("fingerprint must be %d hex chars, got %d", fingerprintWords*16, len(s))
	}
	fp := make(Fingerprint, fingerprintWords)
	for i := range fp {
		word, err := strconv.ParseUint(s[i*16:(i+1)*16], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid fingerprint %q: %w", s, err)
		}
		fp[i] = word
	}
	return fp, nil
}

// String encodes the fingerprint as 64 lowercase hex characters.
func (f Fingerprint) String() string {
	s := make([]byte, 0, fingerprintWords*16)
	for _, word := range f {
		s = fmt.Appendf(s, "%016x", word)
	}
	return string(s)
}

// Bit reports whether bit i is set. Positions run 0..FingerprintBits-1.
func (f Fingerprint) Bit(i int) bool {
	return f[i/64]&(1<<(63-uint(i%64))) != 0
}

// HammingDistance counts the differing bits between two fingerprints.
func HammingDistance(a, b Fingerprint) int {
	d := 0
	for i := range a {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	return d
}

// fingerprintFromHash converts a goimagehash extended hash into a
// Fingerprint, padding short word slices to the fixed width.
func fingerprintFromHash(h *goimagehash.ExtImageHash) Fingerprint {
	fp := make(Fingerprint, fingerprintWords)
	copy(fp, h.GetHash())
	return fp
}
