// Package i2cslave implements a register-oriented I²C target on the STM32F0
// I²C unit. The first byte a master writes after addressing the device
// selects a register; further written bytes are that register's payload,
// and a read returns data the application loads for the selected register.
//
// Interrupt is the only entry point that advances the transfer. Call it
// from the unit's interrupt handler (or a polling loop). The remaining
// methods are for the main program and must run with the unit's interrupt
// masked, e.g. inside critical.Do.
package i2cslave

import (
	"strconv"

	"f0hal-go/device/stm32f0"
	"f0hal-go/errcode"
	"f0hal-go/i2c"
	"f0hal-go/rcc"
)

// BufferSize is the capacity of the receive and transmit buffers.
const BufferSize = 32

// TransferState is where the controller is within a bus transaction.
type TransferState uint8

const (
	Idle         TransferState = iota
	Addressed                  // write address matched, register byte next
	RegisterSet                // register selected
	Receiving                  // payload bytes arriving
	Transmitting               // serving a read
)

func (s TransferState) String() string {
	switch s {
	case Addressed:
		return "addressed"
	case RegisterSet:
		return "register_set"
	case Receiving:
		return "receiving"
	case Transmitting:
		return "transmitting"
	default:
		return "idle"
	}
}

// EventKind tells the application what it has to do.
type EventKind uint8

const (
	// DataRequested: a master is reading Register; load SetTransmitBuffer.
	DataRequested EventKind = iota + 1
	// DataReceived: a write to Register completed; drain ReceivedData.
	DataReceived
)

// Event is a completed (or starting) register transaction.
type Event struct {
	Kind     EventKind
	Register uint8
}

// Config configures the target.
type Config struct {
	Address uint8 // 7-bit own address, 0x08..0x77

	// SCLLowTimeout is the TIMEOUTA count after which a bus held low is
	// abandoned with a timeout error. 0 disables the check.
	SCLLowTimeout uint16

	// DigitalFilter suppresses spikes shorter than n I2CCLK periods (0..15).
	DigitalFilter uint8

	// Timing is written to TIMINGR for the data setup and hold delays.
	// 0 selects fast-mode values for an 8 MHz I2CCLK.
	Timing uint32
}

// Stats counts aborted transactions by cause.
type Stats struct {
	BusErrors       uint32
	Overruns        uint32
	ArbitrationLost uint32
	Nacks           uint32 // a master NACKs the last byte of every read
	Timeouts        uint32
	PECErrors       uint32
	Overflows       uint32 // writes longer than BufferSize

	Last errcode.Code // cause of the most recent abort
}

// Controller is the target state machine. It owns the I²C unit and its pins.
type Controller struct {
	regs *stm32f0.I2CRegs
	pins i2c.Pins
	addr uint8

	state    TransferState
	register uint8

	rx    [BufferSize]byte
	rxLen int

	tx    [BufferSize]byte
	txLen int
	txIdx int

	pending Event
	has     bool

	stats Stats
}

// New takes ownership of the unit and pins, clocks and resets the unit and
// enables it as a target at cfg.Address. The unit's NVIC line is left for
// the caller to enable.
func New(bus *stm32f0.I2CRegs, r *stm32f0.RCCRegs, pins i2c.Pins, cfg Config) (*Controller, error) {
	if cfg.Address < 0x08 || cfg.Address > 0x77 {
		return nil, errcode.New(errcode.InvalidParams, "i2cslave.New",
			"address 0x"+strconv.FormatUint(uint64(cfg.Address), 16)+" is reserved or not 7-bit")
	}
	if cfg.DigitalFilter > stm32f0.I2C_CR1_DNF_Msk || cfg.SCLLowTimeout > stm32f0.I2C_TIMEOUTR_TIMEOUTA_Msk {
		return nil, errcode.New(errcode.InvalidParams, "i2cslave.New", "filter or timeout out of range")
	}
	if err := pins.Validate(bus.Num); err != nil {
		return nil, err
	}
	if cfg.Timing == 0 {
		t, err := i2c.Timing(rcc.HSI, i2c.Fast)
		if err != nil {
			return nil, err
		}
		cfg.Timing = t
	}

	r.EnableAPB1(bus.APB1Mask())

	bus.CR1.ClearBits(stm32f0.I2C_CR1_PE)
	bus.TIMINGR.Set(cfg.Timing)
	bus.OAR1.Set(0)
	bus.OAR1.Set(stm32f0.I2C_OAR1_OA1EN | uint32(cfg.Address)<<1)
	// Clock stretching stays on (NOSTRETCH clear); TXIE follows the state.
	bus.CR1.Set(stm32f0.I2C_CR1_ERRIE | stm32f0.I2C_CR1_STOPIE | stm32f0.I2C_CR1_NACKIE |
		stm32f0.I2C_CR1_ADDRIE | stm32f0.I2C_CR1_RXIE | stm32f0.I2C_CR1_WUPEN |
		uint32(cfg.DigitalFilter)<<stm32f0.I2C_CR1_DNF_Pos)
	if cfg.SCLLowTimeout != 0 {
		bus.TIMEOUTR.Set(uint32(cfg.SCLLowTimeout) | stm32f0.I2C_TIMEOUTR_TIMOUTEN)
	} else {
		bus.TIMEOUTR.Set(0)
	}
	bus.CR1.SetBits(stm32f0.I2C_CR1_PE)

	return &Controller{regs: bus, pins: pins, addr: cfg.Address}, nil
}

// Address returns the own address.
func (c *Controller) Address() uint8 { return c.addr }

// Transfer returns the current transfer state.
func (c *Controller) Transfer() TransferState { return c.state }

// State peeks at the pending event without consuming it.
func (c *Controller) State() (Event, bool) { return c.pending, c.has }

// Stats returns the abort counters.
func (c *Controller) Stats() Stats { return c.stats }

// SetTransmitBuffer loads the bytes served to the next (or current) read.
// It fails with BufferFull when p exceeds BufferSize and with Busy once
// bytes of a transmission have already been handed to the hardware.
func (c *Controller) SetTransmitBuffer(p []byte) error {
	if len(p) > BufferSize {
		return errcode.New(errcode.BufferFull, "i2cslave.SetTransmitBuffer",
			strconv.Itoa(len(p))+" bytes, capacity "+strconv.Itoa(BufferSize))
	}
	if c.state == Transmitting && c.txIdx > 0 {
		return errcode.New(errcode.Busy, "i2cslave.SetTransmitBuffer", "transmission in progress")
	}
	c.txLen = copy(c.tx[:], p)
	c.txIdx = 0
	return nil
}

// ReceivedData returns the payload of the last completed write and empties
// the buffer, consuming a pending DataReceived. The slice aliases the
// controller's buffer and is overwritten by the next write transaction.
func (c *Controller) ReceivedData() []byte {
	data := c.rx[:c.rxLen]
	c.rxLen = 0
	if c.has && c.pending.Kind == DataReceived {
		c.has = false
	}
	return data
}

// Release disables the unit and hands back its registers and pins.
func (c *Controller) Release() (*stm32f0.I2CRegs, i2c.Pins) {
	c.regs.CR1.ClearBits(stm32f0.I2C_CR1_PE | stm32f0.I2C_CR1_TXIE)
	c.state, c.has = Idle, false
	return c.regs, c.pins
}
