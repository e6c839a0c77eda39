package i2c

import (
	"f0hal-go/device/stm32f0"
	"f0hal-go/errcode"
	"f0hal-go/rcc"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*Bus)(nil)

// ClockSource selects the I2C1 kernel clock. I2C2 always runs from PCLK.
type ClockSource uint8

const (
	ClockHSI    ClockSource = iota // fixed 8 MHz, independent of SYSCLK
	ClockSysClk                    // SYSCLK as frozen by rcc
)

// Config configures a master bus.
type Config struct {
	Frequency rcc.Hertz // SCL; 0 means Standard
	Clock     ClockSource
	Clocks    rcc.Clocks
}

// spinLimit bounds every wait on a status flag.
const spinLimit = 100_000

// Bus is a blocking I²C master.
type Bus struct {
	regs *stm32f0.I2CRegs
	rcc  *stm32f0.RCCRegs
	pins Pins
}

// NewBus checks the pins and clocks the unit. Call Configure before use.
func NewBus(regs *stm32f0.I2CRegs, r *stm32f0.RCCRegs, pins Pins) (*Bus, error) {
	if err := pins.Validate(regs.Num); err != nil {
		return nil, err
	}
	r.EnableAPB1(regs.APB1Mask())
	return &Bus{regs: regs, rcc: r, pins: pins}, nil
}

// KernelClock returns the I2CCLK frequency cfg selects for unit num.
func KernelClock(num uint8, cfg Config) rcc.Hertz {
	switch {
	case num == 2:
		return cfg.Clocks.PClk()
	case cfg.Clock == ClockSysClk:
		return cfg.Clocks.SysClk()
	default:
		return rcc.HSI
	}
}

// Configure programs the bus speed. The unit is disabled while TIMINGR
// is written.
func (b *Bus) Configure(cfg Config) error {
	if cfg.Frequency == 0 {
		cfg.Frequency = Standard
	}
	t, err := Timing(KernelClock(b.regs.Num, cfg), cfg.Frequency)
	if err != nil {
		return err
	}
	if b.regs.Num == 1 {
		if cfg.Clock == ClockSysClk {
			b.rcc.CFGR3.SetBits(stm32f0.RCC_CFGR3_I2C1SW)
		} else {
			b.rcc.CFGR3.ClearBits(stm32f0.RCC_CFGR3_I2C1SW)
		}
	}
	b.regs.CR1.ClearBits(stm32f0.I2C_CR1_PE)
	b.regs.TIMINGR.Set(t)
	b.regs.CR1.SetBits(stm32f0.I2C_CR1_PE)
	return nil
}

// Release disables the unit and returns its pins.
func (b *Bus) Release() Pins {
	b.regs.CR1.ClearBits(stm32f0.I2C_CR1_PE)
	return b.pins
}

// Tx writes w to the device at addr, then reads len(r) bytes after a
// repeated START. Either slice may be empty; both empty probes the
// address.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f || len(w) > 255 || len(r) > 255 {
		return errcode.New(errcode.InvalidParams, "i2c.Tx", "address or length out of range")
	}
	sadd := uint32(addr) << 1

	if len(w) > 0 || len(r) == 0 {
		cr2 := sadd | uint32(len(w))<<stm32f0.I2C_CR2_NBYTES_Pos | stm32f0.I2C_CR2_START
		if len(r) == 0 {
			cr2 |= stm32f0.I2C_CR2_AUTOEND
		}
		b.regs.CR2.Set(cr2)
		for _, c := range w {
			if err := b.wait(stm32f0.I2C_ISR_TXIS); err != nil {
				return err
			}
			b.regs.TXDR.Set(uint32(c))
		}
		if len(r) == 0 {
			return b.finish()
		}
		if err := b.wait(stm32f0.I2C_ISR_TC); err != nil {
			return err
		}
	}

	b.regs.CR2.Set(sadd | stm32f0.I2C_CR2_RD_WRN | uint32(len(r))<<stm32f0.I2C_CR2_NBYTES_Pos |
		stm32f0.I2C_CR2_AUTOEND | stm32f0.I2C_CR2_START)
	for i := range r {
		if err := b.wait(stm32f0.I2C_ISR_RXNE); err != nil {
			return err
		}
		r[i] = byte(b.regs.RXDR.Get())
	}
	return b.finish()
}

// wait spins until flag is set, failing on NACK or a bus fault.
func (b *Bus) wait(flag uint32) error {
	for i := 0; i < spinLimit; i++ {
		isr := b.regs.ISR.Get()
		if err := b.fault(isr); err != nil {
			return err
		}
		if isr&flag != 0 {
			return nil
		}
	}
	b.abort()
	return errcode.New(errcode.Timeout, "i2c.Tx", "no bus progress")
}

// finish waits for the automatic STOP and clears it.
func (b *Bus) finish() error {
	if err := b.wait(stm32f0.I2C_ISR_STOPF); err != nil {
		return err
	}
	b.regs.ICR.Set(stm32f0.I2C_ICR_STOPCF)
	return nil
}

func (b *Bus) fault(isr uint32) error {
	switch {
	case isr&stm32f0.I2C_ISR_NACKF != 0:
		if isr&stm32f0.I2C_ISR_STOPF == 0 {
			b.regs.CR2.SetBits(stm32f0.I2C_CR2_STOP)
			for i := 0; i < spinLimit && !b.regs.ISR.HasBits(stm32f0.I2C_ISR_STOPF); i++ {
			}
		}
		b.regs.ICR.Set(stm32f0.I2C_ICR_NACKCF | stm32f0.I2C_ICR_STOPCF)
		return errcode.Nack
	case isr&stm32f0.I2C_ISR_ARLO != 0:
		b.regs.ICR.Set(stm32f0.I2C_ICR_ARLOCF)
		return errcode.ArbitrationLost
	case isr&stm32f0.I2C_ISR_BERR != 0:
		b.regs.ICR.Set(stm32f0.I2C_ICR_BERRCF)
		return errcode.BusError
	}
	return nil
}

// abort resets the unit after a stuck transfer. Toggling PE clears the
// state machine without touching the configuration.
func (b *Bus) abort() {
	b.regs.CR1.ClearBits(stm32f0.I2C_CR1_PE)
	b.regs.CR1.SetBits(stm32f0.I2C_CR1_PE)
}
