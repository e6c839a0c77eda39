package i2c

import (
	"strconv"

	"f0hal-go/device/stm32f0"
	"f0hal-go/errcode"
	"f0hal-go/rcc"
	"f0hal-go/x/mathx"
)

// Bus speeds.
const (
	Standard rcc.Hertz = 100 * rcc.KHz
	Fast     rcc.Hertz = 400 * rcc.KHz
)

// Timing returns the TIMINGR value giving SCL at freq from an I2CCLK of
// i2cclk. Standard mode scales the kernel clock to about 4 MHz, fast mode
// to about 8 MHz.
func Timing(i2cclk, freq rcc.Hertz) (uint32, error) {
	if freq == 0 || freq > Fast {
		return 0, errcode.New(errcode.InvalidParams, "i2c.Timing", "bus speed "+strconv.Itoa(int(freq))+" Hz")
	}
	var (
		tick           rcc.Hertz
		sdadel, scldel uint32
		highTrim       uint32
	)
	if freq <= Standard {
		tick, sdadel, scldel, highTrim = 4*rcc.MHz, 2, 4, 4
	} else {
		tick, sdadel, scldel, highTrim = 8*rcc.MHz, 1, 3, 6
	}
	presc := mathx.CeilDiv(uint32(i2cclk), uint32(tick))
	if presc == 0 || presc > 16 {
		return 0, errcode.New(errcode.InvalidParams, "i2c.Timing", "I2CCLK "+strconv.Itoa(int(i2cclk))+" Hz")
	}
	scaled := uint32(i2cclk) / presc
	scll := scaled/uint32(freq)/2 - 1
	if scaled/uint32(freq)/2 == 0 || scll > 255 || scll < highTrim {
		return 0, errcode.New(errcode.InvalidParams, "i2c.Timing",
			"bus speed "+strconv.Itoa(int(freq))+" Hz unreachable from "+strconv.Itoa(int(i2cclk))+" Hz")
	}
	sclh := scll - highTrim
	return (presc-1)<<stm32f0.I2C_TIMINGR_PRESC_Pos |
		scldel<<stm32f0.I2C_TIMINGR_SCLDEL_Pos |
		sdadel<<stm32f0.I2C_TIMINGR_SDADEL_Pos |
		sclh<<stm32f0.I2C_TIMINGR_SCLH_Pos |
		scll<<stm32f0.I2C_TIMINGR_SCLL_Pos, nil
}
