package permission

import "math/bits"

const maxBits = 64

// Mask64 is a set of up to 64 action bits. The zero value is empty and
// out-of-range bits are ignored by every method.
type Mask64 uint64

func (m Mask64) Has(bit int) bool {
	return inRange(bit) && m&(1<<uint(bit)) != 0
}

// With returns m with bit added.
func (m Mask64) With(bit int) Mask64 {
	if !inRange(bit) {
		return m
	}
	return m | 1<<uint(bit)
}

// Without returns m with bit removed.
func (m Mask64) Without(bit int) Mask64 {
	if !inRange(bit) {
		return m
	}
	return m &^ (1 << uint(bit))
}

// Len counts the set bits.
func (m Mask64) Len() int {
	return bits.OnesCount64(uint64(m))
}

func inRange(bit int) bool {
	return bit >= 0 && bit < maxBits
}
