// Package stm32f0 describes the STM32F0 register blocks used by this module:
// reset and clock control, flash interface, GPIO ports and the I²C units.
//
// Blocks are structs of regs.Register so the same driver code runs against
// memory-mapped hardware (stm32f0 build tag) and the host models in
// model_host.go.
package stm32f0

import "f0hal-go/regs"

// -----------------------------------------------------------------------------
// RCC
// -----------------------------------------------------------------------------

type RCCRegs struct {
	CR, CFGR, CIR            regs.Register
	APB2RSTR, APB1RSTR       regs.Register
	AHBENR, APB2ENR, APB1ENR regs.Register
	BDCR, CSR, AHBRSTR       regs.Register
	CFGR2, CFGR3, CR2        regs.Register
}

// EnableAPB1 turns on the APB1 peripheral clocks in mask and pulses their reset.
func (r *RCCRegs) EnableAPB1(mask uint32) {
	r.APB1ENR.SetBits(mask)
	r.APB1RSTR.SetBits(mask)
	r.APB1RSTR.ClearBits(mask)
}

// EnableAHB turns on the AHB peripheral clocks in mask (GPIO ports).
func (r *RCCRegs) EnableAHB(mask uint32) { r.AHBENR.SetBits(mask) }

const (
	RCC_CR_HSION     = 1 << 0
	RCC_CR_HSIRDY    = 1 << 1
	RCC_CR_HSEON     = 1 << 16
	RCC_CR_HSERDY    = 1 << 17
	RCC_CR_HSEBYP    = 1 << 18
	RCC_CR_CSSON     = 1 << 19
	RCC_CR_PLLON     = 1 << 24
	RCC_CR_PLLRDY    = 1 << 25
	RCC_CR2_HSI48ON  = 1 << 16
	RCC_CR2_HSI48RDY = 1 << 17

	RCC_CFGR_SW_Pos      = 0
	RCC_CFGR_SW_Msk      = 0x3
	RCC_CFGR_SWS_Pos     = 2
	RCC_CFGR_SWS_Msk     = 0x3
	RCC_CFGR_HPRE_Pos    = 4
	RCC_CFGR_HPRE_Msk    = 0xf
	RCC_CFGR_PPRE_Pos    = 8
	RCC_CFGR_PPRE_Msk    = 0x7
	RCC_CFGR_PLLSRC_Pos  = 15
	RCC_CFGR_PLLSRC_Msk  = 0x3
	RCC_CFGR_PLLMUL_Pos  = 18
	RCC_CFGR_PLLMUL_Msk  = 0xf
	RCC_CFGR2_PREDIV_Msk = 0xf

	// SW / SWS encodings.
	RCC_CFGR_SW_HSI   = 0
	RCC_CFGR_SW_HSE   = 1
	RCC_CFGR_SW_PLL   = 2
	RCC_CFGR_SW_HSI48 = 3

	// PLLSRC encodings.
	RCC_CFGR_PLLSRC_HSI_DIV2     = 0
	RCC_CFGR_PLLSRC_HSI_PREDIV   = 1
	RCC_CFGR_PLLSRC_HSE_PREDIV   = 2
	RCC_CFGR_PLLSRC_HSI48_PREDIV = 3

	RCC_CFGR3_I2C1SW = 1 << 4

	RCC_AHBENR_IOPAEN = 1 << 17
	RCC_AHBENR_IOPBEN = 1 << 18
	RCC_AHBENR_IOPCEN = 1 << 19
	RCC_AHBENR_IOPFEN = 1 << 22

	RCC_APB1ENR_I2C1EN = 1 << 21
	RCC_APB1ENR_I2C2EN = 1 << 22
)

// Fixed oscillator frequencies (Hz).
const (
	HSIFrequency   = 8_000_000
	HSI48Frequency = 48_000_000
)

// -----------------------------------------------------------------------------
// FLASH
// -----------------------------------------------------------------------------

type FlashRegs struct {
	ACR regs.Register
}

const (
	FLASH_ACR_LATENCY_Msk = 0x7
	FLASH_ACR_PRFTBE      = 1 << 4
)

// -----------------------------------------------------------------------------
// GPIO
// -----------------------------------------------------------------------------

type GPIORegs struct {
	MODER, OTYPER, OSPEEDR, PUPDR regs.Register
	IDR, ODR, BSRR, LCKR          regs.Register
	AFRL, AFRH, BRR               regs.Register

	Port byte // 'A', 'B', ...
}

// AHBMask returns the RCC AHBENR bit clocking this port.
func (g *GPIORegs) AHBMask() uint32 {
	switch g.Port {
	case 'A':
		return RCC_AHBENR_IOPAEN
	case 'B':
		return RCC_AHBENR_IOPBEN
	case 'C':
		return RCC_AHBENR_IOPCEN
	case 'F':
		return RCC_AHBENR_IOPFEN
	}
	return 0
}

const (
	GPIO_MODE_INPUT     = 0b00
	GPIO_MODE_OUTPUT    = 0b01
	GPIO_MODE_ALTERNATE = 0b10
	GPIO_MODE_ANALOG    = 0b11
	GPIO_OSPEED_HIGH    = 0b11
)

// -----------------------------------------------------------------------------
// I2C
// -----------------------------------------------------------------------------

type I2CRegs struct {
	CR1, CR2, OAR1, OAR2       regs.Register
	TIMINGR, TIMEOUTR          regs.Register
	ISR, ICR, PECR, RXDR, TXDR regs.Register

	Num uint8 // 1 for I2C1, 2 for I2C2
}

// APB1Mask returns the RCC APB1ENR/APB1RSTR bit for this unit.
func (b *I2CRegs) APB1Mask() uint32 {
	if b.Num == 2 {
		return RCC_APB1ENR_I2C2EN
	}
	return RCC_APB1ENR_I2C1EN
}

const (
	I2C_CR1_PE        = 1 << 0
	I2C_CR1_TXIE      = 1 << 1
	I2C_CR1_RXIE      = 1 << 2
	I2C_CR1_ADDRIE    = 1 << 3
	I2C_CR1_NACKIE    = 1 << 4
	I2C_CR1_STOPIE    = 1 << 5
	I2C_CR1_TCIE      = 1 << 6
	I2C_CR1_ERRIE     = 1 << 7
	I2C_CR1_DNF_Pos   = 8
	I2C_CR1_DNF_Msk   = 0xf
	I2C_CR1_ANFOFF    = 1 << 12
	I2C_CR1_SBC       = 1 << 16
	I2C_CR1_NOSTRETCH = 1 << 17
	I2C_CR1_WUPEN     = 1 << 18

	I2C_CR2_SADD_Msk   = 0x3ff
	I2C_CR2_RD_WRN     = 1 << 10
	I2C_CR2_START      = 1 << 13
	I2C_CR2_STOP       = 1 << 14
	I2C_CR2_NACK       = 1 << 15
	I2C_CR2_NBYTES_Pos = 16
	I2C_CR2_NBYTES_Msk = 0xff
	I2C_CR2_AUTOEND    = 1 << 25

	I2C_OAR1_OA1_Msk = 0x3ff
	I2C_OAR1_OA1MODE = 1 << 10
	I2C_OAR1_OA1EN   = 1 << 15

	I2C_TIMINGR_SCLL_Pos   = 0
	I2C_TIMINGR_SCLH_Pos   = 8
	I2C_TIMINGR_SDADEL_Pos = 16
	I2C_TIMINGR_SCLDEL_Pos = 20
	I2C_TIMINGR_PRESC_Pos  = 28

	I2C_TIMEOUTR_TIMEOUTA_Msk = 0xfff
	I2C_TIMEOUTR_TIMOUTEN     = 1 << 15

	I2C_ISR_TXE         = 1 << 0
	I2C_ISR_TXIS        = 1 << 1
	I2C_ISR_RXNE        = 1 << 2
	I2C_ISR_ADDR        = 1 << 3
	I2C_ISR_NACKF       = 1 << 4
	I2C_ISR_STOPF       = 1 << 5
	I2C_ISR_TC          = 1 << 6
	I2C_ISR_TCR         = 1 << 7
	I2C_ISR_BERR        = 1 << 8
	I2C_ISR_ARLO        = 1 << 9
	I2C_ISR_OVR         = 1 << 10
	I2C_ISR_PECERR      = 1 << 11
	I2C_ISR_TIMEOUT     = 1 << 12
	I2C_ISR_ALERT       = 1 << 13
	I2C_ISR_BUSY        = 1 << 15
	I2C_ISR_DIR         = 1 << 16
	I2C_ISR_ADDCODE_Pos = 17
	I2C_ISR_ADDCODE_Msk = 0x7f

	// ICR clear bits share their ISR counterparts' positions.
	I2C_ICR_ADDRCF   = I2C_ISR_ADDR
	I2C_ICR_NACKCF   = I2C_ISR_NACKF
	I2C_ICR_STOPCF   = I2C_ISR_STOPF
	I2C_ICR_BERRCF   = I2C_ISR_BERR
	I2C_ICR_ARLOCF   = I2C_ISR_ARLO
	I2C_ICR_OVRCF    = I2C_ISR_OVR
	I2C_ICR_PECCF    = I2C_ISR_PECERR
	I2C_ICR_TIMOUTCF = I2C_ISR_TIMEOUT
	I2C_ICR_ALERTCF  = I2C_ISR_ALERT
	I2C_ICR_Msk      = I2C_ICR_ADDRCF | I2C_ICR_NACKCF | I2C_ICR_STOPCF |
		I2C_ICR_BERRCF | I2C_ICR_ARLOCF | I2C_ICR_OVRCF | I2C_ICR_PECCF |
		I2C_ICR_TIMOUTCF | I2C_ICR_ALERTCF
)

// NVIC lines.
const (
	IRQ_I2C1 = 23
	IRQ_I2C2 = 24
)
