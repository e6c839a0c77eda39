package target

import (
	"strconv"

	"f0hal-go/errcode"
	"f0hal-go/i2cslave"
	"f0hal-go/internal/critical"
)

// RegisterFile is a bank of 256 byte-string registers that a Worker serves
// to the bus. Masters read a register's current contents and writes replace
// them.
type RegisterFile struct {
	regs [256]struct {
		n uint8
		b [i2cslave.BufferSize]byte
	}
	readOnly [256 / 8]byte
}

var (
	_ Handler = (*RegisterFile)(nil)
	_ Writer  = (*RegisterFile)(nil)
)

// Store sets register reg from the main program.
func (f *RegisterFile) Store(reg uint8, p []byte) error {
	if len(p) > i2cslave.BufferSize {
		return errcode.New(errcode.BufferFull, "target.Store",
			"register "+strconv.Itoa(int(reg))+": "+strconv.Itoa(len(p))+" bytes")
	}
	critical.Do(func() {
		r := &f.regs[reg]
		r.n = uint8(copy(r.b[:], p))
	})
	return nil
}

// Load copies register reg into dst and returns the byte count.
func (f *RegisterFile) Load(reg uint8, dst []byte) int {
	var n int
	critical.Do(func() { n = f.Read(reg, dst) })
	return n
}

// SetReadOnly makes bus writes to reg have no effect.
func (f *RegisterFile) SetReadOnly(reg uint8, ro bool) {
	critical.Do(func() {
		if ro {
			f.readOnly[reg/8] |= 1 << (reg % 8)
		} else {
			f.readOnly[reg/8] &^= 1 << (reg % 8)
		}
	})
}

// Read implements Handler. It runs in interrupt context and takes no lock.
func (f *RegisterFile) Read(reg uint8, p []byte) int {
	r := &f.regs[reg]
	return copy(p, r.b[:r.n])
}

// Write implements Writer.
func (f *RegisterFile) Write(reg uint8, data []byte) {
	critical.Do(func() {
		if f.readOnly[reg/8]&(1<<(reg%8)) != 0 {
			return
		}
		r := &f.regs[reg]
		r.n = uint8(copy(r.b[:], data))
	})
}
