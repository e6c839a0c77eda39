package rcc

import (
	"strconv"

	"f0hal-go/device/stm32f0"
	"f0hal-go/errcode"
	"f0hal-go/x/mathx"
)

// Plan is a solved clock tree: the register fields to program and the
// frequencies they produce.
type Plan struct {
	Source     Source
	SourceFreq Hertz

	PLL     bool   // false: SYSCLK runs straight off the oscillator
	PLLMul  uint32 // 2..16; 2 is the bypass sentinel
	HPRE    uint32 // CFGR.HPRE field
	PPRE    uint32 // CFGR.PPRE field
	Latency uint32 // FLASH.ACR.LATENCY

	Clocks Clocks

	requested Clocks // zero fields were not requested
	fallback  bool   // HSE out of range, ran from HSI instead
}

type divider struct {
	div  uint32
	bits uint32
}

// AHB has no /32 step.
var ahbDividers = [...]divider{
	{1, 0b0000}, {2, 0b1000}, {4, 0b1001}, {8, 0b1010}, {16, 0b1011},
	{64, 0b1100}, {128, 0b1101}, {256, 0b1110}, {512, 0b1111},
}

var apbDividers = [...]divider{
	{1, 0b000}, {2, 0b100}, {4, 0b101}, {8, 0b110}, {16, 0b111},
}

// Solve computes the plan for c without touching hardware.
func (c Config) Solve() Plan {
	p := Plan{Source: c.source}
	switch c.source {
	case SourceHSE:
		if c.hse < HSEMin || c.hse > HSEMax {
			p.Source, p.SourceFreq, p.fallback = SourceHSI, HSI, true
		} else {
			p.SourceFreq = c.hse
		}
	case SourceHSI48:
		p.SourceFreq = HSI48
	default:
		p.SourceFreq = HSI
	}
	p.requested = Clocks{sysclk: c.sysclk, hclk: c.hclk, pclk: c.pclk}

	req := c.sysclk
	if req == 0 {
		req = p.SourceFreq
	}
	sys, mul := solvePLL(p.SourceFreq, req)
	p.PLLMul, p.PLL = mul, mul > 2

	reqH := c.hclk
	if reqH == 0 {
		reqH = sys
	}
	h := pick(ahbDividers[:], sys, reqH)
	hclk := sys / Hertz(h.div)

	reqP := c.pclk
	if reqP == 0 {
		reqP = hclk
	}
	a := pick(apbDividers[:], hclk, reqP)

	p.HPRE, p.PPRE = h.bits, a.bits
	p.Clocks = Clocks{sysclk: sys, hclk: hclk, pclk: hclk / Hertz(a.div)}
	p.Latency = 0
	if sys > zeroWSMax {
		p.Latency = 1
	}
	return p
}

// solvePLL picks m in [2,16] nearest 2·req/src (halves up) such that
// src·m/2 stays within MaxSysClk. m == 2 bypasses the PLL.
func solvePLL(src, req Hertz) (Hertz, uint32) {
	if req == src {
		return src, 2
	}
	m := mathx.RoundDiv(2*uint64(req), uint64(src))
	m = mathx.Clamp(m, 2, 16)
	for m > 2 && uint64(src/2)*m > uint64(MaxSysClk) {
		m--
	}
	if m == 2 {
		return src, 2
	}
	return (src / 2) * Hertz(m), uint32(m)
}

// pick returns the smallest divider taking in to at most req; the largest
// divider when none does.
func pick(table []divider, in, req Hertz) divider {
	for _, d := range table {
		if uint64(in) <= uint64(req)*uint64(d.div) {
			return d
		}
	}
	return table[len(table)-1]
}

// Deviation compares a requested bus frequency with the achieved one.
type Deviation struct {
	Bus       string
	Requested Hertz
	Achieved  Hertz
	PPM       uint32
}

// Deviations lists every explicitly requested bus.
func (p Plan) Deviations() []Deviation {
	var out []Deviation
	add := func(bus string, req, got Hertz) {
		if req == 0 {
			return
		}
		out = append(out, Deviation{bus, req, got, mathx.PPM(uint32(got), uint32(req))})
	}
	add("sysclk", p.requested.sysclk, p.Clocks.sysclk)
	add("hclk", p.requested.hclk, p.Clocks.hclk)
	add("pclk", p.requested.pclk, p.Clocks.pclk)
	return out
}

// Check reports an oscillator fallback, or the first requested bus whose
// achieved frequency is more than tolerancePPM away from the request.
func (p Plan) Check(tolerancePPM uint32) error {
	if p.fallback {
		return errcode.New(errcode.InvalidOscillator, "rcc.Check",
			"HSE outside "+strconv.Itoa(int(HSEMin))+".."+strconv.Itoa(int(HSEMax))+" Hz")
	}
	for _, d := range p.Deviations() {
		if d.PPM > tolerancePPM {
			return errcode.New(errcode.ClockClamped, "rcc.Check",
				d.Bus+" "+strconv.Itoa(int(d.Achieved))+" Hz, requested "+strconv.Itoa(int(d.Requested))+" Hz")
		}
	}
	return nil
}

// sw is the CFGR.SW value selecting this plan's SYSCLK.
func (p Plan) sw() uint32 {
	if p.PLL {
		return stm32f0.RCC_CFGR_SW_PLL
	}
	return p.oscSW()
}

func (p Plan) oscSW() uint32 {
	switch p.Source {
	case SourceHSE:
		return stm32f0.RCC_CFGR_SW_HSE
	case SourceHSI48:
		return stm32f0.RCC_CFGR_SW_HSI48
	default:
		return stm32f0.RCC_CFGR_SW_HSI
	}
}

// pllSrc is the CFGR.PLLSRC value; HSE and HSI48 go through PREDIV=/2 so
// that SYSCLK = src·m/2 holds for every source.
func (p Plan) pllSrc() uint32 {
	switch p.Source {
	case SourceHSE:
		return stm32f0.RCC_CFGR_PLLSRC_HSE_PREDIV
	case SourceHSI48:
		return stm32f0.RCC_CFGR_PLLSRC_HSI48_PREDIV
	default:
		return stm32f0.RCC_CFGR_PLLSRC_HSI_DIV2
	}
}
