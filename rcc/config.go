package rcc

// Source selects the oscillator feeding SYSCLK (directly or through the PLL).
type Source uint8

const (
	SourceHSI   Source = iota // internal 8 MHz RC
	SourceHSE                 // external crystal
	SourceHSI48               // internal 48 MHz RC (F04x/F07x/F09x)
)

func (s Source) String() string {
	switch s {
	case SourceHSE:
		return "hse"
	case SourceHSI48:
		return "hsi48"
	default:
		return "hsi"
	}
}

// Config is a clock request. Build one with Configure and the chained
// setters, then Freeze it once.
//
//	clocks := rcc.Configure().HSE(8 * rcc.MHz).SysClk(48 * rcc.MHz).PClk(24 * rcc.MHz).
//		Freeze(stm32f0.RCC, stm32f0.FLASH)
type Config struct {
	source Source
	hse    Hertz

	// Zero means "not requested".
	sysclk Hertz
	hclk   Hertz
	pclk   Hertz
}

// Configure starts a request running from HSI with every bus at the
// oscillator frequency.
func Configure() Config { return Config{} }

// HSE selects an external crystal of frequency f.
func (c Config) HSE(f Hertz) Config {
	c.source, c.hse = SourceHSE, f
	return c
}

// HSI48 selects the 48 MHz internal oscillator.
func (c Config) HSI48() Config {
	c.source = SourceHSI48
	return c
}

// SysClk requests a core frequency. Unset, it equals the oscillator.
func (c Config) SysClk(f Hertz) Config {
	c.sysclk = f
	return c
}

// HClk requests an AHB frequency. Unset, it equals SYSCLK.
func (c Config) HClk(f Hertz) Config {
	c.hclk = f
	return c
}

// PClk requests an APB frequency. Unset, it equals HCLK.
func (c Config) PClk(f Hertz) Config {
	c.pclk = f
	return c
}
