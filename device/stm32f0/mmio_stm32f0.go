//go:build stm32f0

package stm32f0

import (
	"runtime/volatile"
	"unsafe"
)

// Raw memory layouts (RM0091). Field order is the register offset order.

type rccBlock struct {
	CR, CFGR, CIR            volatile.Register32
	APB2RSTR, APB1RSTR       volatile.Register32
	AHBENR, APB2ENR, APB1ENR volatile.Register32
	BDCR, CSR, AHBRSTR       volatile.Register32
	CFGR2, CFGR3, CR2        volatile.Register32
}

type flashBlock struct {
	ACR volatile.Register32
}

type gpioBlock struct {
	MODER, OTYPER, OSPEEDR, PUPDR volatile.Register32
	IDR, ODR, BSRR, LCKR          volatile.Register32
	AFRL, AFRH, BRR               volatile.Register32
}

type i2cBlock struct {
	CR1, CR2, OAR1, OAR2       volatile.Register32
	TIMINGR, TIMEOUTR          volatile.Register32
	ISR, ICR, PECR, RXDR, TXDR volatile.Register32
}

const (
	rccBase   = 0x40021000
	flashBase = 0x40022000
	gpioABase = 0x48000000
	gpioBBase = 0x48000400
	gpioCBase = 0x48000800
	gpioFBase = 0x48001400
	i2c1Base  = 0x40005400
	i2c2Base  = 0x40005800
)

// Peripheral singletons.
var (
	RCC   = bindRCC((*rccBlock)(unsafe.Pointer(uintptr(rccBase))))
	FLASH = bindFlash((*flashBlock)(unsafe.Pointer(uintptr(flashBase))))
	GPIOA = bindGPIO((*gpioBlock)(unsafe.Pointer(uintptr(gpioABase))), 'A')
	GPIOB = bindGPIO((*gpioBlock)(unsafe.Pointer(uintptr(gpioBBase))), 'B')
	GPIOC = bindGPIO((*gpioBlock)(unsafe.Pointer(uintptr(gpioCBase))), 'C')
	GPIOF = bindGPIO((*gpioBlock)(unsafe.Pointer(uintptr(gpioFBase))), 'F')
	I2C1  = bindI2C((*i2cBlock)(unsafe.Pointer(uintptr(i2c1Base))), 1)
	I2C2  = bindI2C((*i2cBlock)(unsafe.Pointer(uintptr(i2c2Base))), 2)
)

func bindRCC(b *rccBlock) *RCCRegs {
	return &RCCRegs{
		CR: &b.CR, CFGR: &b.CFGR, CIR: &b.CIR,
		APB2RSTR: &b.APB2RSTR, APB1RSTR: &b.APB1RSTR,
		AHBENR: &b.AHBENR, APB2ENR: &b.APB2ENR, APB1ENR: &b.APB1ENR,
		BDCR: &b.BDCR, CSR: &b.CSR, AHBRSTR: &b.AHBRSTR,
		CFGR2: &b.CFGR2, CFGR3: &b.CFGR3, CR2: &b.CR2,
	}
}

func bindFlash(b *flashBlock) *FlashRegs { return &FlashRegs{ACR: &b.ACR} }

func bindGPIO(b *gpioBlock, port byte) *GPIORegs {
	return &GPIORegs{
		MODER: &b.MODER, OTYPER: &b.OTYPER, OSPEEDR: &b.OSPEEDR, PUPDR: &b.PUPDR,
		IDR: &b.IDR, ODR: &b.ODR, BSRR: &b.BSRR, LCKR: &b.LCKR,
		AFRL: &b.AFRL, AFRH: &b.AFRH, BRR: &b.BRR,
		Port: port,
	}
}

func bindI2C(b *i2cBlock, num uint8) *I2CRegs {
	return &I2CRegs{
		CR1: &b.CR1, CR2: &b.CR2, OAR1: &b.OAR1, OAR2: &b.OAR2,
		TIMINGR: &b.TIMINGR, TIMEOUTR: &b.TIMEOUTR,
		ISR: &b.ISR, ICR: &b.ICR, PECR: &b.PECR, RXDR: &b.RXDR, TXDR: &b.TXDR,
		Num: num,
	}
}
