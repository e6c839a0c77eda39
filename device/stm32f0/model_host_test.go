//go:build !stm32f0

package stm32f0

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"f0hal-go/regs"
)

const pllMul12 = 10 << RCC_CFGR_PLLMUL_Pos

func TestClockModelReset(t *testing.T) {
	m := NewClockModel(8_000_000)
	if m.SysClk() != HSIFrequency || m.Latency() != 0 || len(m.Violations) != 0 {
		t.Fatalf("sysclk=%d latency=%d violations=%v", m.SysClk(), m.Latency(), m.Violations)
	}
}

func TestClockModelViolations(t *testing.T) {
	cases := []struct {
		name string
		hse  uint32
		run  func(m *ClockModel)
		want []string
	}{
		{"hse without crystal", 0, func(m *ClockModel) {
			m.RCC.CR.SetBits(RCC_CR_HSEON)
		}, []string{"HSE enabled with no crystal fitted"}},
		{"pll before source", 8_000_000, func(m *ClockModel) {
			m.RCC.CFGR.Set(RCC_CFGR_PLLSRC_HSE_PREDIV<<RCC_CFGR_PLLSRC_Pos | 4<<RCC_CFGR_PLLMUL_Pos)
			m.RCC.CR.SetBits(RCC_CR_PLLON)
		}, []string{"PLL enabled before its source is ready"}},
		{"switch before ready", 8_000_000, func(m *ClockModel) {
			m.RCC.CFGR.Set(RCC_CFGR_SW_HSE)
		}, []string{"SYSCLK switched to hse before it is ready"}},
		{"zero wait states", 0, func(m *ClockModel) {
			m.RCC.CFGR.Set(pllMul12)
			m.RCC.CR.SetBits(RCC_CR_PLLON)
			m.RCC.CFGR.Set(pllMul12 | RCC_CFGR_SW_PLL)
		}, []string{"SYSCLK 48000000 Hz with 0 wait states"}},
		{"reconfigure running", 0, func(m *ClockModel) {
			m.RCC.CFGR.Set(pllMul12)
			m.RCC.CR.SetBits(RCC_CR_PLLON)
			m.RCC.CFGR.Set(4 << RCC_CFGR_PLLMUL_Pos)
		}, []string{"PLL reconfigured while running"}},
		{"pll stopped while selected", 0, func(m *ClockModel) {
			m.FLASH.ACR.Set(FLASH_ACR_PRFTBE | 1)
			m.RCC.CFGR.Set(pllMul12)
			m.RCC.CR.SetBits(RCC_CR_PLLON)
			m.RCC.CFGR.Set(pllMul12 | RCC_CFGR_SW_PLL)
			m.RCC.CR.ClearBits(RCC_CR_PLLON)
		}, []string{"PLL disabled while selected as SYSCLK"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := NewClockModel(c.hse)
			c.run(m)
			if diff := cmp.Diff(c.want, m.Violations); diff != "" {
				t.Fatalf("violations (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClockModelDividers(t *testing.T) {
	m := NewClockModel(0)
	m.FLASH.ACR.Set(FLASH_ACR_PRFTBE | 1)
	m.RCC.CFGR.Set(pllMul12)
	m.RCC.CR.SetBits(RCC_CR_PLLON)
	// HPRE /64 (0b1100), PPRE /2 (0b100).
	m.RCC.CFGR.Set(pllMul12 | 0b1100<<RCC_CFGR_HPRE_Pos | 0b100<<RCC_CFGR_PPRE_Pos | RCC_CFGR_SW_PLL)
	got := [3]uint32{m.SysClk(), m.HClk(), m.PClk()}
	if diff := cmp.Diff([3]uint32{48_000_000, 750_000, 375_000}, got); diff != "" {
		t.Fatalf("clocks (-want +got):\n%s", diff)
	}
	if len(m.Violations) != 0 {
		t.Fatalf("violations: %v", m.Violations)
	}
}

func TestGPIOModel(t *testing.T) {
	g := NewGPIOModel('A')
	g.MODER.Set(GPIO_MODE_OUTPUT << 10) // PA5 output
	g.BSRR.Set(1<<5 | 1<<6)
	if g.ODR.Get() != 1<<5|1<<6 {
		t.Fatalf("ODR=%#x", g.ODR.Get())
	}
	g.IDR.(*regs.Sim).Value = 1 << 7 // externally driven input
	if got := g.IDR.Get(); got != 1<<5|1<<7 {
		t.Fatalf("IDR=%#x", got)
	}
	g.BSRR.Set(1 << (16 + 5))
	g.BRR.Set(1 << 6)
	if g.ODR.Get() != 0 {
		t.Fatalf("ODR=%#x after reset", g.ODR.Get())
	}
}

func TestI2CModelTargetWrite(t *testing.T) {
	d := NewI2CModel(1)
	d.Regs.OAR1.Set(I2C_OAR1_OA1EN | 0x52<<1)
	if d.Address(0x52, false) {
		t.Fatal("disabled unit acknowledged")
	}
	d.Regs.CR1.Set(I2C_CR1_PE | I2C_CR1_ADDRIE | I2C_CR1_RXIE)
	if d.Address(0x51, false) {
		t.Fatal("foreign address acknowledged")
	}
	if !d.Address(0x52, false) || !d.Pending() {
		t.Fatalf("ISR=%#x", d.ISR())
	}
	if code := (d.ISR() >> I2C_ISR_ADDCODE_Pos) & I2C_ISR_ADDCODE_Msk; code != 0x52 {
		t.Fatalf("ADDCODE=%#x", code)
	}
	d.Regs.ICR.Set(I2C_ICR_ADDRCF)
	if d.Pending() {
		t.Fatalf("still pending, ISR=%#x", d.ISR())
	}

	d.Receive(0xaa)
	d.Receive(0xbb)
	if d.ISR()&I2C_ISR_OVR == 0 {
		t.Fatal("unread RXDR not flagged as overrun")
	}
	if b := d.Regs.RXDR.Get(); b != 0xbb || d.ISR()&I2C_ISR_RXNE != 0 {
		t.Fatalf("RXDR=%#x ISR=%#x", b, d.ISR())
	}

	d.Regs.CR2.SetBits(I2C_CR2_NACK)
	if d.Receive(0xcc) {
		t.Fatal("CR2.NACK ignored")
	}
}

func TestI2CModelTargetRead(t *testing.T) {
	d := NewI2CModel(1)
	d.Regs.OAR1.Set(I2C_OAR1_OA1EN | 0x52<<1)
	d.Regs.CR1.Set(I2C_CR1_PE)
	d.Address(0x52, true)
	d.Regs.ICR.Set(I2C_ICR_ADDRCF)
	if d.ISR()&I2C_ISR_TXIS == 0 {
		t.Fatalf("no TXIS after read address, ISR=%#x", d.ISR())
	}
	d.Regs.TXDR.Set(0x11)
	if b, ok := d.Shift(); !ok || b != 0x11 {
		t.Fatalf("Shift=%#x,%v", b, ok)
	}
	if _, ok := d.Shift(); ok {
		t.Fatal("Shift from empty TXDR")
	}
	if diff := cmp.Diff([][]byte{{0x11}, {0x11}}, [][]byte{d.Loaded, d.Sent}); diff != "" {
		t.Fatalf("loaded/sent (-want +got):\n%s", diff)
	}
}

func TestI2CModelMasterNoPeer(t *testing.T) {
	d := NewI2CModel(1)
	d.Regs.CR1.Set(I2C_CR1_PE)
	d.Regs.CR2.Set(0x52<<1 | 1<<I2C_CR2_NBYTES_Pos | I2C_CR2_AUTOEND | I2C_CR2_START)
	if isr := d.ISR(); isr&(I2C_ISR_NACKF|I2C_ISR_STOPF) != I2C_ISR_NACKF|I2C_ISR_STOPF || isr&I2C_ISR_BUSY != 0 {
		t.Fatalf("ISR=%#x", isr)
	}
}
