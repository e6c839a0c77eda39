// Package gpio hands out STM32F0 pins and switches them into the modes the
// peripheral drivers need. A pin in alternate-function mode is a distinct
// type, Alternate, so a driver can demand one in its constructor.
package gpio

import (
	"strconv"

	"f0hal-go/device/stm32f0"
	"f0hal-go/internal/critical"
)

// AF is an alternate-function number (AF0..AF7).
type AF uint8

const (
	AF0 AF = iota
	AF1
	AF2
	AF3
	AF4
	AF5
	AF6
	AF7
)

// Pull selects the internal resistor.
type Pull uint8

const (
	PullNone Pull = 0b00
	PullUp   Pull = 0b01
	PullDown Pull = 0b10
)

// Port is a clocked GPIO port.
type Port struct {
	regs *stm32f0.GPIORegs
}

// Split enables the port clock and returns the port.
func Split(regs *stm32f0.GPIORegs, rcc *stm32f0.RCCRegs) Port {
	rcc.EnableAHB(regs.AHBMask())
	return Port{regs: regs}
}

// Pin returns pin n (0..15) of the port.
func (p Port) Pin(n uint8) Pin { return Pin{regs: p.regs, n: n & 0xf} }

// Pin is a pin in an unspecified mode.
type Pin struct {
	regs *stm32f0.GPIORegs
	n    uint8
}

// Port returns the port letter.
func (p Pin) Port() byte { return p.regs.Port }

// Num returns the pin index within its port.
func (p Pin) Num() uint8 { return p.n }

func (p Pin) String() string { return "P" + string(rune(p.regs.Port)) + strconv.Itoa(int(p.n)) }

func (p Pin) mode(m uint32) {
	p.regs.MODER.ReplaceBits(m, 0b11, 2*p.n)
}

func (p Pin) pull(v Pull) {
	p.regs.PUPDR.ReplaceBits(uint32(v), 0b11, 2*p.n)
}

func (p Pin) openDrain(on bool) {
	if on {
		p.regs.OTYPER.SetBits(1 << p.n)
	} else {
		p.regs.OTYPER.ClearBits(1 << p.n)
	}
}

func (p Pin) af(af AF) {
	if p.n < 8 {
		p.regs.AFRL.ReplaceBits(uint32(af), 0xf, 4*p.n)
	} else {
		p.regs.AFRH.ReplaceBits(uint32(af), 0xf, 4*(p.n-8))
	}
}

// Alternate is a pin routed to a peripheral. Only IntoAlternate and
// IntoAlternateOpenDrain produce one.
type Alternate struct {
	pin Pin
	af  AF
}

// IntoAlternate routes p to function af, push-pull, high speed.
func (p Pin) IntoAlternate(af AF) Alternate {
	critical.Do(func() {
		p.af(af)
		p.openDrain(false)
		p.regs.OSPEEDR.ReplaceBits(stm32f0.GPIO_OSPEED_HIGH, 0b11, 2*p.n)
		p.mode(stm32f0.GPIO_MODE_ALTERNATE)
	})
	return Alternate{pin: p, af: af}
}

// IntoAlternateOpenDrain routes p to function af as an open-drain line,
// the mode I²C needs.
func (p Pin) IntoAlternateOpenDrain(af AF) Alternate {
	critical.Do(func() {
		p.af(af)
		p.openDrain(true)
		p.regs.OSPEEDR.ReplaceBits(stm32f0.GPIO_OSPEED_HIGH, 0b11, 2*p.n)
		p.mode(stm32f0.GPIO_MODE_ALTERNATE)
	})
	return Alternate{pin: p, af: af}
}

// Pin returns the underlying pin.
func (a Alternate) Pin() Pin { return a.pin }

// AF returns the routed function.
func (a Alternate) AF() AF { return a.af }

// Valid reports whether a came from IntoAlternate*.
func (a Alternate) Valid() bool { return a.pin.regs != nil }

// WithPull enables the internal resistor on an alternate pin.
func (a Alternate) WithPull(v Pull) Alternate {
	critical.Do(func() { a.pin.pull(v) })
	return a
}

// Output is a pin driven by software.
type Output struct {
	pin Pin
}

// IntoOutput configures p as a push-pull output, initially low.
func (p Pin) IntoOutput() Output {
	critical.Do(func() {
		p.regs.BRR.Set(1 << p.n)
		p.openDrain(false)
		p.pull(PullNone)
		p.mode(stm32f0.GPIO_MODE_OUTPUT)
	})
	return Output{pin: p}
}

// IntoInput configures p as an input with the given resistor.
func (p Pin) IntoInput(v Pull) Input {
	critical.Do(func() {
		p.pull(v)
		p.mode(stm32f0.GPIO_MODE_INPUT)
	})
	return Input{pin: p}
}

// High drives the pin high. BSRR writes are atomic; no critical section.
func (o Output) High() { o.pin.regs.BSRR.Set(1 << o.pin.n) }

// Low drives the pin low.
func (o Output) Low() { o.pin.regs.BRR.Set(1 << o.pin.n) }

// Set drives the pin to v.
func (o Output) Set(v bool) {
	if v {
		o.High()
	} else {
		o.Low()
	}
}

// IsSetHigh reports the driven level.
func (o Output) IsSetHigh() bool { return o.pin.regs.ODR.HasBits(1 << o.pin.n) }

// Toggle inverts the driven level.
func (o Output) Toggle() { o.Set(!o.IsSetHigh()) }

// Input is a pin read by software.
type Input struct {
	pin Pin
}

// Get returns the sampled level.
func (i Input) Get() bool { return i.pin.regs.IDR.HasBits(1 << i.pin.n) }
