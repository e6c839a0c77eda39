// Package regs is the register access surface shared by memory-mapped
// peripherals and their host models.
package regs

// Register is a 32-bit peripheral register. TinyGo's *volatile.Register32
// satisfies it; on the host Sim does.
type Register interface {
	Get() uint32
	Set(value uint32)
	SetBits(value uint32)
	ClearBits(value uint32)
	HasBits(value uint32) bool
	ReplaceBits(value uint32, mask uint32, pos uint8)
}

// Field extracts (r >> pos) & mask.
func Field(r Register, mask uint32, pos uint8) uint32 {
	return (r.Get() >> pos) & mask
}
