// Package rcc configures the STM32F0 clock tree: it solves PLL multiplier and
// bus prescaler fields for a requested frequency, programs them in a safe
// order, and hands back the frequencies actually achieved.
package rcc

// Hertz is a frequency in Hz.
type Hertz uint32

const (
	Hz  Hertz = 1
	KHz Hertz = 1000
	MHz Hertz = 1_000_000
)

// Device limits.
const (
	MaxSysClk = 48 * MHz
	HSEMin    = 4 * MHz
	HSEMax    = 32 * MHz
	HSI       = 8 * MHz
	HSI48     = 48 * MHz
	zeroWSMax = 24 * MHz // highest SYSCLK allowed with 0 flash wait states
)

// Clocks are the frozen bus frequencies, exact results of the programmed
// dividers. Downstream drivers copy this value to derive baud rates, timer
// prescalers and delay scaling.
type Clocks struct {
	hclk   Hertz
	pclk   Hertz
	sysclk Hertz
}

// HClk returns the AHB frequency.
func (c Clocks) HClk() Hertz { return c.hclk }

// PClk returns the APB frequency.
func (c Clocks) PClk() Hertz { return c.pclk }

// SysClk returns the core frequency.
func (c Clocks) SysClk() Hertz { return c.sysclk }

// TimerClk returns the APB timer kernel clock, which runs at twice PCLK
// whenever the APB prescaler divides.
func (c Clocks) TimerClk() Hertz {
	if c.pclk == c.hclk {
		return c.pclk
	}
	return c.pclk * 2
}
