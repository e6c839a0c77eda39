package i2cslave

import (
	"f0hal-go/device/stm32f0"
	"f0hal-go/errcode"
)

const errorFlags = stm32f0.I2C_ISR_BERR | stm32f0.I2C_ISR_OVR | stm32f0.I2C_ISR_ARLO |
	stm32f0.I2C_ISR_NACKF | stm32f0.I2C_ISR_TIMEOUT | stm32f0.I2C_ISR_PECERR

// Interrupt services every asserted status flag, in the order errors, RXNE,
// STOPF, ADDR, TXIS. It returns the event raised by this call, if any; the
// same event stays visible through State until consumed or superseded.
//
// Bus faults never escape: the transaction is dropped, the controller goes
// back to Idle and the cause is counted in Stats.
func (c *Controller) Interrupt() (Event, bool) {
	isr := c.regs.ISR.Get()
	cr1 := c.regs.CR1.Get()

	if isr&errorFlags != 0 {
		c.fail(isr)
		return Event{}, false
	}

	var ev Event
	var raised bool

	if isr&stm32f0.I2C_ISR_RXNE != 0 {
		b := byte(c.regs.RXDR.Get())
		switch c.state {
		case Addressed:
			c.register = b
			c.state = RegisterSet
		case RegisterSet:
			c.rx[0] = b
			c.rxLen = 1
			c.state = Receiving
		case Receiving:
			if c.rxLen >= BufferSize {
				c.overflow()
				return Event{}, false
			}
			c.rx[c.rxLen] = b
			c.rxLen++
		}
	}

	if isr&stm32f0.I2C_ISR_STOPF != 0 {
		c.regs.ICR.Set(stm32f0.I2C_ICR_STOPCF)
		switch c.state {
		case Receiving:
			ev, raised = c.raise(DataReceived)
		case Transmitting:
			c.has = false
		}
		c.state = Idle
		c.endTransmit()
	}

	if isr&stm32f0.I2C_ISR_ADDR != 0 {
		if isr&stm32f0.I2C_ISR_DIR == 0 {
			c.regs.ICR.Set(stm32f0.I2C_ICR_ADDRCF)
			c.state = Addressed
			c.has = false
			c.rxLen = 0
		} else {
			// A read without a register write first serves the current
			// register.
			c.regs.ISR.Set(stm32f0.I2C_ISR_TXE)
			c.regs.ICR.Set(stm32f0.I2C_ICR_ADDRCF)
			c.regs.CR1.SetBits(stm32f0.I2C_CR1_TXIE)
			c.state = Transmitting
			c.txIdx = 0
			ev, raised = c.raise(DataRequested)
		}
		// TXIS is left for the next call, after the application has
		// answered DataRequested.
		return ev, raised
	}

	if isr&stm32f0.I2C_ISR_TXIS != 0 && cr1&stm32f0.I2C_CR1_TXIE != 0 && c.state == Transmitting {
		if c.txIdx < c.txLen {
			c.regs.TXDR.Set(uint32(c.tx[c.txIdx]))
			c.txIdx++
		} else {
			// Nothing left: SCL stays stretched until the master gives up.
			c.regs.CR1.ClearBits(stm32f0.I2C_CR1_TXIE)
			c.has = false
		}
	}
	return ev, raised
}

func (c *Controller) raise(k EventKind) (Event, bool) {
	c.pending, c.has = Event{Kind: k, Register: c.register}, true
	return c.pending, true
}

// fail drops the current transaction after a bus fault.
func (c *Controller) fail(isr uint32) {
	c.regs.ICR.Set(isr & errorFlags)
	s := &c.stats
	switch {
	case isr&stm32f0.I2C_ISR_BERR != 0:
		s.BusErrors++
		s.Last = errcode.BusError
	case isr&stm32f0.I2C_ISR_ARLO != 0:
		s.ArbitrationLost++
		s.Last = errcode.ArbitrationLost
	case isr&stm32f0.I2C_ISR_OVR != 0:
		s.Overruns++
		s.Last = errcode.Overrun
	case isr&stm32f0.I2C_ISR_TIMEOUT != 0:
		s.Timeouts++
		s.Last = errcode.Timeout
	case isr&stm32f0.I2C_ISR_PECERR != 0:
		s.PECErrors++
		s.Last = errcode.Error
	default:
		s.Nacks++
		s.Last = errcode.Nack
	}
	c.reset()
}

// overflow refuses a write longer than the receive buffer.
func (c *Controller) overflow() {
	c.regs.CR2.SetBits(stm32f0.I2C_CR2_NACK)
	c.stats.Overflows++
	c.stats.Last = errcode.BufferFull
	c.reset()
}

func (c *Controller) reset() {
	c.state = Idle
	c.rxLen, c.txIdx, c.txLen = 0, 0, 0
	c.has = false
	c.endTransmit()
}

func (c *Controller) endTransmit() {
	c.regs.CR1.ClearBits(stm32f0.I2C_CR1_TXIE)
	c.regs.ISR.Set(stm32f0.I2C_ISR_TXE)
}
