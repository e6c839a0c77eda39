//go:build !stm32f0

package stm32f0

import "f0hal-go/regs"

// Peer is the far end of the bus as seen by an I2CModel acting as master.
type Peer interface {
	// Ack reports whether a device at addr acknowledges a START in the
	// given direction.
	Ack(addr uint8, read bool) bool
	// Write delivers one byte from the master; false is a NACK.
	Write(addr uint8, b byte) bool
	// Read clocks one byte from the device to the master.
	Read(addr uint8) byte
	// Stop ends the transaction.
	Stop(addr uint8)
}

// I2CModel emulates an I²C unit's register semantics. It plays two roles:
//
//   - target: tests inject bus events (Address, Receive, Shift, Stop, Nack,
//     Raise) and the driver under test reacts through the registers. Every
//     TXDR write is logged in Loaded; bytes the master actually clocks out
//     are logged in Sent.
//   - master: writing START to CR2 runs the transfer against Peer, setting
//     TXIS/RXNE/TC/NACKF/STOPF as the driver progresses.
type I2CModel struct {
	Regs *I2CRegs
	Peer Peer

	Loaded []byte
	Sent   []byte

	cr1, cr2, oar1, isr, icr, rxdr, txdr regs.Sim
	other                                [4]regs.Sim

	m struct {
		active bool
		read   bool
		auto   bool
		addr   uint8
		remain int
	}
}

// NewI2CModel returns unit num (1 or 2) in its reset state.
func NewI2CModel(num uint8) *I2CModel {
	d := &I2CModel{}
	d.isr.Value = I2C_ISR_TXE
	d.isr.OnWrite = d.writeISR
	d.icr.OnWrite = d.writeICR
	d.rxdr.OnRead = d.readRXDR
	d.txdr.OnWrite = d.writeTXDR
	d.cr2.OnWrite = d.writeCR2
	o := &d.other
	d.Regs = &I2CRegs{
		CR1: &d.cr1, CR2: &d.cr2, OAR1: &d.oar1, OAR2: &o[0],
		TIMINGR: &o[1], TIMEOUTR: &o[2],
		ISR: &d.isr, ICR: &d.icr, PECR: &o[3], RXDR: &d.rxdr, TXDR: &d.txdr,
		Num: num,
	}
	return d
}

// ISR returns the raw status flags.
func (d *I2CModel) ISR() uint32 { return d.isr.Value }

// CR1 returns the raw control register.
func (d *I2CModel) CR1() uint32 { return d.cr1.Value }

// Pending reports whether any enabled interrupt condition is asserted,
// i.e. whether the NVIC line would be high.
func (d *I2CModel) Pending() bool {
	if d.cr1.Value&I2C_CR1_PE == 0 {
		return false
	}
	isr, cr1 := d.isr.Value, d.cr1.Value
	on := func(flag, enable uint32) bool { return isr&flag != 0 && cr1&enable != 0 }
	return on(I2C_ISR_TXIS, I2C_CR1_TXIE) ||
		on(I2C_ISR_RXNE, I2C_CR1_RXIE) ||
		on(I2C_ISR_ADDR, I2C_CR1_ADDRIE) ||
		on(I2C_ISR_NACKF, I2C_CR1_NACKIE) ||
		on(I2C_ISR_STOPF, I2C_CR1_STOPIE) ||
		on(I2C_ISR_TC|I2C_ISR_TCR, I2C_CR1_TCIE) ||
		on(I2C_ISR_BERR|I2C_ISR_ARLO|I2C_ISR_OVR|I2C_ISR_PECERR|I2C_ISR_TIMEOUT|I2C_ISR_ALERT, I2C_CR1_ERRIE)
}

// ---- register semantics ----

func (d *I2CModel) writeISR(s *regs.Sim, v uint32) {
	// Only TXE is software-settable (flushes TXDR).
	if v&I2C_ISR_TXE != 0 {
		s.Value |= I2C_ISR_TXE
	}
}

func (d *I2CModel) writeICR(_ *regs.Sim, v uint32) {
	isr := d.isr.Value
	d.isr.Value &^= v & I2C_ICR_Msk
	if v&I2C_ICR_ADDRCF != 0 && isr&I2C_ISR_ADDR != 0 {
		d.cr2.Value &^= I2C_CR2_NACK
		// Slave transmitter: an empty TXDR asks for data once ADDR clears.
		if isr&I2C_ISR_DIR != 0 && isr&I2C_ISR_TXE != 0 {
			d.isr.Value |= I2C_ISR_TXIS
		}
	}
}

func (d *I2CModel) readRXDR(s *regs.Sim) uint32 {
	v := s.Value
	d.isr.Value &^= I2C_ISR_RXNE
	if d.m.active && d.m.read {
		if d.m.remain > 0 {
			d.fetch()
		}
	}
	return v
}

func (d *I2CModel) writeTXDR(s *regs.Sim, v uint32) {
	s.Value = v & 0xff
	d.isr.Value &^= I2C_ISR_TXIS | I2C_ISR_TXE
	if !d.m.active {
		d.Loaded = append(d.Loaded, byte(v))
		return
	}
	if d.m.read {
		return
	}
	if !d.Peer.Write(d.m.addr, byte(v)) {
		d.nacked()
		return
	}
	d.m.remain--
	d.isr.Value |= I2C_ISR_TXE
	if d.m.remain > 0 {
		d.isr.Value |= I2C_ISR_TXIS
	} else {
		d.finish()
	}
}

func (d *I2CModel) writeCR2(s *regs.Sim, v uint32) {
	s.Value = v &^ (I2C_CR2_START | I2C_CR2_STOP)
	switch {
	case v&I2C_CR2_START != 0:
		d.start(v)
	case v&I2C_CR2_STOP != 0 && d.m.active:
		d.stop()
	}
}

// ---- master role ----

func (d *I2CModel) start(cr2 uint32) {
	d.isr.Value &^= I2C_ISR_TC
	d.m.active = true
	d.m.addr = uint8((cr2 & I2C_CR2_SADD_Msk) >> 1)
	d.m.read = cr2&I2C_CR2_RD_WRN != 0
	d.m.auto = cr2&I2C_CR2_AUTOEND != 0
	d.m.remain = int((cr2 >> I2C_CR2_NBYTES_Pos) & I2C_CR2_NBYTES_Msk)
	d.isr.Value |= I2C_ISR_BUSY

	if d.Peer == nil || !d.Peer.Ack(d.m.addr, d.m.read) {
		d.nacked()
		return
	}
	switch {
	case d.m.remain == 0:
		d.finish()
	case d.m.read:
		d.fetch()
	default:
		d.isr.Value |= I2C_ISR_TXIS
	}
}

func (d *I2CModel) fetch() {
	d.rxdr.Value = uint32(d.Peer.Read(d.m.addr))
	d.isr.Value |= I2C_ISR_RXNE
	d.m.remain--
	if d.m.remain == 0 {
		d.finish()
	}
}

func (d *I2CModel) finish() {
	if d.m.auto {
		d.stop()
		return
	}
	d.isr.Value |= I2C_ISR_TC
}

func (d *I2CModel) nacked() {
	d.isr.Value |= I2C_ISR_NACKF
	d.stop()
}

func (d *I2CModel) stop() {
	if d.Peer != nil {
		d.Peer.Stop(d.m.addr)
	}
	d.m.active = false
	d.isr.Value |= I2C_ISR_STOPF
	d.isr.Value &^= I2C_ISR_BUSY | I2C_ISR_TC
}

// ---- target role: bus events ----

// Address presents an address phase. It returns false (NACK) unless the
// unit is enabled with OA1 matching addr.
func (d *I2CModel) Address(addr uint8, read bool) bool {
	oar := d.oar1.Value
	if d.cr1.Value&I2C_CR1_PE == 0 || oar&I2C_OAR1_OA1EN == 0 ||
		uint8((oar&I2C_OAR1_OA1_Msk)>>1) != addr {
		return false
	}
	isr := d.isr.Value&^(I2C_ISR_DIR|I2C_ISR_ADDCODE_Msk<<I2C_ISR_ADDCODE_Pos) |
		I2C_ISR_ADDR | I2C_ISR_BUSY | uint32(addr)<<I2C_ISR_ADDCODE_Pos
	if read {
		isr |= I2C_ISR_DIR
	}
	d.isr.Value = isr
	return true
}

// Receive shifts in a byte from the master. A pending CR2.NACK refuses it.
func (d *I2CModel) Receive(b byte) bool {
	if d.cr2.Value&I2C_CR2_NACK != 0 {
		d.cr2.Value &^= I2C_CR2_NACK
		return false
	}
	if d.isr.Value&I2C_ISR_RXNE != 0 {
		d.isr.Value |= I2C_ISR_OVR
	}
	d.rxdr.Value = uint32(b)
	d.isr.Value |= I2C_ISR_RXNE
	return true
}

// Shift has the master clock out the byte waiting in TXDR, after which
// TXIS asks for the next one. ok is false when TXDR was empty, which on a
// real bus means the target is still stretching SCL.
func (d *I2CModel) Shift() (b byte, ok bool) {
	if d.isr.Value&I2C_ISR_TXE != 0 {
		d.isr.Value |= I2C_ISR_TXIS
		return 0, false
	}
	b = byte(d.txdr.Value)
	d.Sent = append(d.Sent, b)
	d.isr.Value |= I2C_ISR_TXE | I2C_ISR_TXIS
	return b, true
}

// Nack records the master refusing the last byte sent.
func (d *I2CModel) Nack() { d.isr.Value |= I2C_ISR_NACKF }

// Stop records a STOP condition.
func (d *I2CModel) Stop() {
	d.isr.Value |= I2C_ISR_STOPF
	d.isr.Value &^= I2C_ISR_BUSY
}

// Raise sets arbitrary ISR flags (bus faults).
func (d *I2CModel) Raise(flags uint32) { d.isr.Value |= flags }

// -----------------------------------------------------------------------------
// TargetPeer
// -----------------------------------------------------------------------------

// TargetPeer connects a master-role model to a target-role model, running
// service (the target's interrupt handler) while its interrupt line is high.
type TargetPeer struct {
	Target  *I2CModel
	Service func()

	addressed bool
	read      bool
}

func (p *TargetPeer) fire() {
	for i := 0; i < 16 && p.Target.Pending(); i++ {
		p.Service()
	}
}

func (p *TargetPeer) Ack(addr uint8, read bool) bool {
	if !p.Target.Address(addr, read) {
		return false
	}
	p.addressed, p.read = true, read
	p.fire()
	return true
}

func (p *TargetPeer) Write(_ uint8, b byte) bool {
	ok := p.Target.Receive(b)
	p.fire()
	return ok
}

// Read returns 0xFF (idle bus) when the target has nothing loaded.
func (p *TargetPeer) Read(uint8) byte {
	b, ok := p.Target.Shift()
	p.fire()
	if !ok {
		return 0xff
	}
	return b
}

func (p *TargetPeer) Stop(uint8) {
	if !p.addressed {
		return
	}
	if p.read {
		p.Target.Nack()
		p.fire()
	}
	p.Target.Stop()
	p.fire()
	p.addressed, p.read = false, false
}
