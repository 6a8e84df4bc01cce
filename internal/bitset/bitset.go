// Package bitset provides a fixed-size bit set used by the liveness
// dataflow solver. Sets are not safe for concurrent mutation.
package bitset

import "math/bits"

const wordBits = 64

// Set is a fixed-size collection of bits indexed from zero.
type Set struct {
	size  int
	words []uint64
}

// New creates a Set holding size bits, all initially clear.
func New(size int) *Set {
	if size < 0 {
		panic("bitset: New: negative size")
	}
	return &Set{
		size:  size,
		words: make([]uint64, (size+wordBits-1)/wordBits),
	}
}

// Len returns the number of bits the set holds.
func (s *Set) Len() int {
	return s.size
}

func (s *Set) check(i int) {
	if i < 0 || i >= s.size {
		panic("bitset: index out of range")
	}
}

// Set turns on bit i.
func (s *Set) Set(i int) {
	s.check(i)
	s.words[i/wordBits] |= 1 << uint(i%wordBits)
}

// Clear turns off bit i.
func (s *Set) Clear(i int) {
	s.check(i)
	s.words[i/wordBits] &^= 1 << uint(i%wordBits)
}

// Has reports whether bit i is on.
func (s *Set) Has(i int) bool {
	s.check(i)
	return s.words[i/wordBits]&(1<<uint(i%wordBits)) != 0
}

// Or merges other into s and reports whether s changed. Both sets must
// have the same length.
func (s *Set) Or(other *Set) bool {
	if s.size != other.size {
		panic("bitset: Or: size mismatch")
	}
	changed := false
	for i, w := range other.words {
		merged := s.words[i] | w
		if merged != s.words[i] {
			s.words[i] = merged
			changed = true
		}
	}
	return changed
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	words := make([]uint64, len(s.words))
	copy(words, s.words)
	return &Set{size: s.size, words: words}
}

// Equal reports whether s and other hold the same bits.
func (s *Set) Equal(other *Set) bool {
	if s.size != other.size {
		return false
	}
	for i, w := range s.words {
		if w != other.words[i] {
			return false
		}
	}
	return true
}

// Count returns the number of bits that are on.
func (s *Set) Count() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Members returns the indices of all set bits in ascending order.
func (s *Set) Members() []int {
	members := make([]int, 0, s.Count())
	for i := 0; i < s.size; i++ {
		if s.words[i/wordBits]&(1<<uint(i%wordBits)) != 0 {
			members = append(members, i)
		}
	}
	return members
}
