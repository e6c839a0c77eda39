package regs

// Sim is a host register. Without hooks it behaves like plain memory; the
// hooks let a peripheral model give it hardware semantics (read-to-clear,
// write-1-to-clear, status bits that follow control bits).
//
// Read-modify-write helpers go through Get and Set, so hooks see them.
type Sim struct {
	Value uint32

	// OnRead, if set, supplies the value returned by Get.
	OnRead func(s *Sim) uint32
	// OnWrite, if set, replaces the store performed by Set.
	OnWrite func(s *Sim, v uint32)
}

var _ Register = (*Sim)(nil)

func (s *Sim) Get() uint32 {
	if s.OnRead != nil {
		return s.OnRead(s)
	}
	return s.Value
}

func (s *Sim) Set(v uint32) {
	if s.OnWrite != nil {
		s.OnWrite(s, v)
		return
	}
	s.Value = v
}

func (s *Sim) SetBits(v uint32)      { s.Set(s.Get() | v) }
func (s *Sim) ClearBits(v uint32)    { s.Set(s.Get() &^ v) }
func (s *Sim) HasBits(v uint32) bool { return s.Get()&v > 0 }
func (s *Sim) ReplaceBits(v, mask uint32, pos uint8) {
	s.Set(s.Get()&^(mask<<pos) | v<<pos)
}
