// Package wire implements the TMQ framing format: frames, addresses, and
// the token hash used to derive pattern tokens from names.
package wire

import "strings"

// Pattern is an ordered tuple of tokens used as a content address. Two
// patterns are equal iff their token sequences are equal, so Pattern is
// comparable only when converted to a string key via Key; the slice
// form is kept for construction and iteration.
type Pattern []uint32

// Key returns a comparable representation of the pattern suitable for use
// as a map key. Patterns longer than 255 tokens cannot appear on the wire
// (tlen is a single byte) and are rejected by Pack.
func (p Pattern) Key() string {
	var b strings.Builder
	b.Grow(len(p) * 4)
	for _, t := range p {
		b.WriteByte(byte(t >> 24))
		b.WriteByte(byte(t >> 16))
		b.WriteByte(byte(t >> 8))
		b.WriteByte(byte(t))
	}
	return b.String()
}

// Equal reports whether p and other have the same tokens in the same order.
func (p Pattern) Equal(other Pattern) bool {
	if len(p) != len(other) {
		return false
	}
	for i, t := range p {
		if other[i] != t {
			return false
		}
	}
	return true
}

// Hash derives a token from a textual name using TMQ's standard string
// hash: h=0; for each byte c, h = 65599*h + c (mod 2^32); return h XOR
// (h>>16). The function is deterministic across platforms and versions —
// callers may persist its output.
func Hash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = 65599*h + uint32(name[i])
	}
	return h ^ (h >> 16)
}

// HashPattern builds a Pattern from textual names, hashing each one.
func HashPattern(names ...string) Pattern {
	p := make(Pattern, len(names))
	for i, n := range names {
		p[i] = Hash(n)
	}
	return p
}
