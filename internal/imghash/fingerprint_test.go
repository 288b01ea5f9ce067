package imghash

import (
	"strings"
	"testing"
)

func TestParseFingerprint_RoundTrip(t *testing.T) {
	fp := Fingerprint{0xdeadbeefcafe0123, 0x0, 0xffffffffffffffff, 0x8000000000000001}

	parsed, err := ParseFingerprint(fp.String())
	if err != nil {
		t.Fatalf("ParseFingerprint failed: %v", err)
	}
	for i := range fp {
		if parsed[i] != fp[i] {
			t.Errorf("word %d = %#x, want %#x", i, parsed[i], fp[i])
		}
	}
}

func TestParseFingerprint_Invalid(t *testing.T) {
	cases := []string{
		"",
		"abc",
		strings.Repeat("0", 63),
		strings.Repeat("0", 65),
		strings.Repeat("g", 64),
	}
	for _, s := range cases {
		if _, err := ParseFingerprint(s); err == nil {
			t.Errorf("ParseFingerprint(%q) should fail", s)
		}
	}
}

func TestFingerprint_Bit(t *testing.T) {
	fp := make(Fingerprint, fingerprintWords)
	fp[0] = 1 << 63 // bit 0
	fp[1] = 1       // bit 127

	if !fp.Bit(0) {
		t.Error("bit 0 should be set")
	}
	if fp.Bit(1) {
		t.Error("bit 1 should not be set")
	}
	if !fp.Bit(127) {
		t.Error("bit 127 should be set")
	}
	if fp.Bit(128) {
		t.Error("bit 128 should not be set")
	}
}

func TestHammingDistance(t *testing.T) {
	a := make(Fingerprint, fingerprintWords)
	b := make(Fingerprint, fingerprintWords)

	if d := HammingDistance(a, b); d != 0 {
		t.Errorf("identical fingerprints: distance = %d, want 0", d)
	}

	b[0] = 0b1011
	if d := HammingDistance(a, b); d != 3 {
		t.Errorf("distance = %d, want 3", d)
	}

	for i := range b {
		a[i] = 0
		b[i] = ^uint64(0)
	}
	if d := HammingDistance(a, b); d != FingerprintBits {
		t.Errorf("inverted fingerprints: distance = %d, want %d", d, FingerprintBits)
	}
}
