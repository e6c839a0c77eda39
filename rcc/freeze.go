package rcc

import (
	"f0hal-go/device/stm32f0"
	"f0hal-go/internal/critical"
)

// Freeze solves c, programs the clock tree and returns the frequencies now
// in effect. Requests that cannot be met are clamped; use FreezeChecked to
// refuse them instead.
func (c Config) Freeze(r *stm32f0.RCCRegs, f *stm32f0.FlashRegs) Clocks {
	p := c.Solve()
	p.Apply(r, f)
	return p.Clocks
}

// FreezeChecked is Freeze, but returns the Check error without touching
// the hardware when the plan is further than tolerancePPM from the request.
func (c Config) FreezeChecked(r *stm32f0.RCCRegs, f *stm32f0.FlashRegs, tolerancePPM uint32) (Clocks, error) {
	p := c.Solve()
	if err := p.Check(tolerancePPM); err != nil {
		return Clocks{}, err
	}
	p.Apply(r, f)
	return p.Clocks, nil
}

// Apply programs p. SYSCLK never runs from a source that is not ready, the
// PLL is only reprogrammed while stopped, and flash wait states are
// sufficient for the running frequency at every step.
func (p Plan) Apply(r *stm32f0.RCCRegs, f *stm32f0.FlashRegs) {
	s := critical.Enter()
	defer critical.Exit(s)

	p.enableSource(r)

	cur := f.ACR.Get() & stm32f0.FLASH_ACR_LATENCY_Msk
	if p.Latency > cur {
		setLatency(f, p.Latency)
	}

	// Step off the PLL before touching it.
	if sws(r) == stm32f0.RCC_CFGR_SW_PLL {
		r.CFGR.ReplaceBits(p.oscSW(), stm32f0.RCC_CFGR_SW_Msk, stm32f0.RCC_CFGR_SW_Pos)
		for sws(r) != p.oscSW() {
		}
	}
	if r.CR.HasBits(stm32f0.RCC_CR_PLLON) {
		r.CR.ClearBits(stm32f0.RCC_CR_PLLON)
		for r.CR.HasBits(stm32f0.RCC_CR_PLLRDY) {
		}
	}

	if p.PLL {
		if p.Source != SourceHSI {
			r.CFGR2.ReplaceBits(1, stm32f0.RCC_CFGR2_PREDIV_Msk, 0) // /2
		}
		cfgr := r.CFGR.Get()
		cfgr &^= stm32f0.RCC_CFGR_PLLMUL_Msk<<stm32f0.RCC_CFGR_PLLMUL_Pos |
			stm32f0.RCC_CFGR_PLLSRC_Msk<<stm32f0.RCC_CFGR_PLLSRC_Pos
		cfgr |= (p.PLLMul-2)<<stm32f0.RCC_CFGR_PLLMUL_Pos | p.pllSrc()<<stm32f0.RCC_CFGR_PLLSRC_Pos
		r.CFGR.Set(cfgr)

		r.CR.SetBits(stm32f0.RCC_CR_PLLON)
		for !r.CR.HasBits(stm32f0.RCC_CR_PLLRDY) {
		}
	}

	// Prescalers and the switch land in one write.
	cfgr := r.CFGR.Get()
	cfgr &^= stm32f0.RCC_CFGR_HPRE_Msk<<stm32f0.RCC_CFGR_HPRE_Pos |
		stm32f0.RCC_CFGR_PPRE_Msk<<stm32f0.RCC_CFGR_PPRE_Pos |
		stm32f0.RCC_CFGR_SW_Msk<<stm32f0.RCC_CFGR_SW_Pos
	cfgr |= p.HPRE<<stm32f0.RCC_CFGR_HPRE_Pos | p.PPRE<<stm32f0.RCC_CFGR_PPRE_Pos | p.sw()
	r.CFGR.Set(cfgr)
	for sws(r) != p.sw() {
	}

	if p.Latency < cur {
		setLatency(f, p.Latency)
	}
}

func (p Plan) enableSource(r *stm32f0.RCCRegs) {
	switch p.Source {
	case SourceHSE:
		r.CR.SetBits(stm32f0.RCC_CR_HSEON)
		for !r.CR.HasBits(stm32f0.RCC_CR_HSERDY) {
		}
	case SourceHSI48:
		r.CR2.SetBits(stm32f0.RCC_CR2_HSI48ON)
		for !r.CR2.HasBits(stm32f0.RCC_CR2_HSI48RDY) {
		}
	default:
		r.CR.SetBits(stm32f0.RCC_CR_HSION)
		for !r.CR.HasBits(stm32f0.RCC_CR_HSIRDY) {
		}
	}
}

func sws(r *stm32f0.RCCRegs) uint32 {
	return (r.CFGR.Get() >> stm32f0.RCC_CFGR_SWS_Pos) & stm32f0.RCC_CFGR_SWS_Msk
}

func setLatency(f *stm32f0.FlashRegs, ws uint32) {
	f.ACR.ReplaceBits(ws, stm32f0.FLASH_ACR_LATENCY_Msk, 0)
}
