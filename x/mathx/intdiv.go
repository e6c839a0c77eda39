package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns ceil(a/b) for positive integers; 0 when b is 0.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// RoundDiv returns a/b rounded to nearest, halves up; 0 when b is 0.
func RoundDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}

// PPM returns |got-want| in parts per million of want, saturating at the
// uint32 range.
func PPM(got, want uint32) uint32 {
	if want == 0 {
		if got == 0 {
			return 0
		}
		return ^uint32(0)
	}
	d := uint64(AbsDiff(got, want)) * 1_000_000 / uint64(want)
	if d > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(d)
}
