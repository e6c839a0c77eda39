//go:build !stm32f0

package stm32f0

import (
	"strconv"

	"f0hal-go/regs"
)

// -----------------------------------------------------------------------------
// Clock tree model (RCC + FLASH)
// -----------------------------------------------------------------------------

// ClockModel emulates the parts of RCC and FLASH the clock configurator
// touches: ready flags follow their enables, SWS follows SW once the source
// is ready, and every write is checked against the hardware rules. Rule
// breaks are collected in Violations rather than failing, so tests can
// assert on them.
type ClockModel struct {
	RCC   *RCCRegs
	FLASH *FlashRegs

	// HSE is the fitted crystal frequency; 0 means none fitted.
	HSE uint32

	Trace      []string
	Violations []string

	cr, cfgr, cr2, cfgr2, acr regs.Sim
	other                     [9]regs.Sim
}

// NewClockModel returns a model in its reset state: running from HSI with
// zero flash wait states.
func NewClockModel(hse uint32) *ClockModel {
	m := &ClockModel{HSE: hse}
	m.cr.Value = RCC_CR_HSION | RCC_CR_HSIRDY
	m.acr.Value = FLASH_ACR_PRFTBE

	m.cr.OnWrite = m.writeCR
	m.cfgr.OnWrite = m.writeCFGR
	m.cr2.OnWrite = m.writeCR2
	m.cfgr2.OnWrite = m.writeCFGR2
	m.acr.OnWrite = m.writeACR

	o := &m.other
	m.RCC = &RCCRegs{
		CR: &m.cr, CFGR: &m.cfgr, CIR: &o[0],
		APB2RSTR: &o[1], APB1RSTR: &o[2],
		AHBENR: &o[3], APB2ENR: &o[4], APB1ENR: &o[5],
		BDCR: &o[6], CSR: &o[7], AHBRSTR: &o[8],
		CFGR2: &m.cfgr2, CFGR3: &regs.Sim{}, CR2: &m.cr2,
	}
	m.FLASH = &FlashRegs{ACR: &m.acr}
	return m
}

func (m *ClockModel) violate(s string) { m.Violations = append(m.Violations, s) }
func (m *ClockModel) trace(s string)   { m.Trace = append(m.Trace, s) }

func (m *ClockModel) writeCR(s *regs.Sim, v uint32) {
	old := s.Value
	v &^= RCC_CR_HSIRDY | RCC_CR_HSERDY | RCC_CR_PLLRDY
	if v&RCC_CR_HSION != 0 {
		v |= RCC_CR_HSIRDY
	}
	if v&RCC_CR_HSEON != 0 {
		if m.HSE == 0 {
			m.violate("HSE enabled with no crystal fitted")
		}
		v |= RCC_CR_HSERDY
	}
	if v&RCC_CR_PLLON != 0 {
		if !m.pllSourceReady(v) {
			m.violate("PLL enabled before its source is ready")
		}
		v |= RCC_CR_PLLRDY
	}
	if old&RCC_CR_PLLON != 0 && v&RCC_CR_PLLON == 0 && m.sws() == RCC_CFGR_SW_PLL {
		m.violate("PLL disabled while selected as SYSCLK")
	}
	s.Value = v

	m.traceEdge(old, v, RCC_CR_HSION, "hsi")
	m.traceEdge(old, v, RCC_CR_HSEON, "hse")
	m.traceEdge(old, v, RCC_CR_PLLON, "pll")
	m.check()
}

func (m *ClockModel) traceEdge(old, v, bit uint32, name string) {
	switch {
	case old&bit == 0 && v&bit != 0:
		m.trace(name + " on")
	case old&bit != 0 && v&bit == 0:
		m.trace(name + " off")
	}
}

func (m *ClockModel) pllSourceReady(cr uint32) bool {
	switch (m.cfgr.Value >> RCC_CFGR_PLLSRC_Pos) & RCC_CFGR_PLLSRC_Msk {
	case RCC_CFGR_PLLSRC_HSE_PREDIV:
		return cr&RCC_CR_HSERDY != 0
	case RCC_CFGR_PLLSRC_HSI48_PREDIV:
		return m.cr2.Value&RCC_CR2_HSI48RDY != 0
	default:
		return cr&RCC_CR_HSIRDY != 0
	}
}

func (m *ClockModel) writeCFGR(s *regs.Sim, v uint32) {
	old := s.Value
	pllBits := uint32(RCC_CFGR_PLLMUL_Msk<<RCC_CFGR_PLLMUL_Pos | RCC_CFGR_PLLSRC_Msk<<RCC_CFGR_PLLSRC_Pos)
	if (old^v)&pllBits != 0 && m.cr.Value&RCC_CR_PLLON != 0 {
		m.violate("PLL reconfigured while running")
	}

	sws := m.sws()
	sw := v & RCC_CFGR_SW_Msk
	if m.sourceReady(sw) {
		sws = sw
	} else {
		m.violate("SYSCLK switched to " + swName(sw) + " before it is ready")
	}
	v = v&^(RCC_CFGR_SWS_Msk<<RCC_CFGR_SWS_Pos) | sws<<RCC_CFGR_SWS_Pos
	s.Value = v

	if v != old {
		m.trace("cfgr sw=" + swName(sw) +
			" hpre=/" + strconv.Itoa(int(hpreDiv(v))) +
			" ppre=/" + strconv.Itoa(int(ppreDiv(v))) +
			" pllmul=" + strconv.Itoa(int(pllMul(v))))
	}
	m.check()
}

func (m *ClockModel) writeCR2(s *regs.Sim, v uint32) {
	v &^= RCC_CR2_HSI48RDY
	if v&RCC_CR2_HSI48ON != 0 {
		v |= RCC_CR2_HSI48RDY
	}
	s.Value = v
}

func (m *ClockModel) writeCFGR2(s *regs.Sim, v uint32) {
	if (s.Value^v)&RCC_CFGR2_PREDIV_Msk != 0 && m.cr.Value&RCC_CR_PLLON != 0 {
		m.violate("PREDIV changed while PLL running")
	}
	s.Value = v
}

func (m *ClockModel) writeACR(s *regs.Sim, v uint32) {
	old := s.Value
	s.Value = v
	if (old^v)&FLASH_ACR_LATENCY_Msk != 0 {
		m.trace("latency=" + strconv.Itoa(int(v&FLASH_ACR_LATENCY_Msk)))
	}
	m.check()
}

func (m *ClockModel) sws() uint32 {
	return (m.cfgr.Value >> RCC_CFGR_SWS_Pos) & RCC_CFGR_SWS_Msk
}

func (m *ClockModel) sourceReady(sw uint32) bool {
	switch sw {
	case RCC_CFGR_SW_HSE:
		return m.cr.Value&RCC_CR_HSERDY != 0
	case RCC_CFGR_SW_PLL:
		return m.cr.Value&RCC_CR_PLLRDY != 0
	case RCC_CFGR_SW_HSI48:
		return m.cr2.Value&RCC_CR2_HSI48RDY != 0
	default:
		return m.cr.Value&RCC_CR_HSIRDY != 0
	}
}

// check enforces the flash wait-state requirement for the clock currently
// driving the core.
func (m *ClockModel) check() {
	sys := m.SysClk()
	lat := m.acr.Value & FLASH_ACR_LATENCY_Msk
	if sys > 48_000_000 {
		m.violate("SYSCLK " + strconv.Itoa(int(sys)) + " Hz above 48 MHz")
	}
	if sys > 24_000_000 && lat == 0 {
		m.violate("SYSCLK " + strconv.Itoa(int(sys)) + " Hz with 0 wait states")
	}
}

// SysClk is the frequency the model is currently running at (per SWS).
func (m *ClockModel) SysClk() uint32 {
	switch m.sws() {
	case RCC_CFGR_SW_HSE:
		return m.HSE
	case RCC_CFGR_SW_HSI48:
		return HSI48Frequency
	case RCC_CFGR_SW_PLL:
		return m.pllOut()
	default:
		return HSIFrequency
	}
}

func (m *ClockModel) HClk() uint32 { return m.SysClk() / hpreDiv(m.cfgr.Value) }
func (m *ClockModel) PClk() uint32 { return m.HClk() / ppreDiv(m.cfgr.Value) }

// Latency is the programmed flash wait-state count.
func (m *ClockModel) Latency() uint32 { return m.acr.Value & FLASH_ACR_LATENCY_Msk }

func (m *ClockModel) pllOut() uint32 {
	prediv := (m.cfgr2.Value & RCC_CFGR2_PREDIV_Msk) + 1
	var in uint32
	switch (m.cfgr.Value >> RCC_CFGR_PLLSRC_Pos) & RCC_CFGR_PLLSRC_Msk {
	case RCC_CFGR_PLLSRC_HSI_DIV2:
		in = HSIFrequency / 2
	case RCC_CFGR_PLLSRC_HSI_PREDIV:
		in = HSIFrequency / prediv
	case RCC_CFGR_PLLSRC_HSE_PREDIV:
		in = m.HSE / prediv
	default:
		in = HSI48Frequency / prediv
	}
	return in * pllMul(m.cfgr.Value)
}

func pllMul(cfgr uint32) uint32 {
	mul := (cfgr>>RCC_CFGR_PLLMUL_Pos)&RCC_CFGR_PLLMUL_Msk + 2
	if mul > 16 {
		mul = 16
	}
	return mul
}

func hpreDiv(cfgr uint32) uint32 {
	f := (cfgr >> RCC_CFGR_HPRE_Pos) & RCC_CFGR_HPRE_Msk
	if f < 0b1000 {
		return 1
	}
	// 1000../2 1001../4 1010../8 1011../16, then /64.. skipping /32.
	sh := f - 0b0111
	if f >= 0b1100 {
		sh++
	}
	return 1 << sh
}

func ppreDiv(cfgr uint32) uint32 {
	f := (cfgr >> RCC_CFGR_PPRE_Pos) & RCC_CFGR_PPRE_Msk
	if f < 0b100 {
		return 1
	}
	return 1 << (f - 0b011)
}

func swName(sw uint32) string {
	switch sw {
	case RCC_CFGR_SW_HSE:
		return "hse"
	case RCC_CFGR_SW_PLL:
		return "pll"
	case RCC_CFGR_SW_HSI48:
		return "hsi48"
	default:
		return "hsi"
	}
}

// -----------------------------------------------------------------------------
// GPIO
// -----------------------------------------------------------------------------

// NewGPIOModel returns a port backed by host registers. BSRR and BRR act
// on ODR as on hardware, and IDR reads back ODR for output pins.
func NewGPIOModel(port byte) *GPIORegs {
	var r [11]regs.Sim
	odr := &r[5]
	r[4].OnRead = func(s *regs.Sim) uint32 {
		out := uint32(0)
		for n := uint8(0); n < 16; n++ {
			if (r[0].Value>>(2*n))&0b11 == GPIO_MODE_OUTPUT {
				out |= 1 << n
			}
		}
		return s.Value&^out | odr.Value&out
	}
	r[6].OnWrite = func(_ *regs.Sim, v uint32) {
		odr.Value = (odr.Value | v&0xffff) &^ (v >> 16)
	}
	r[10].OnWrite = func(_ *regs.Sim, v uint32) {
		odr.Value &^= v & 0xffff
	}
	return &GPIORegs{
		MODER: &r[0], OTYPER: &r[1], OSPEEDR: &r[2], PUPDR: &r[3],
		IDR: &r[4], ODR: odr, BSRR: &r[6], LCKR: &r[7],
		AFRL: &r[8], AFRH: &r[9], BRR: &r[10],
		Port: port,
	}
}
