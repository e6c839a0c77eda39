// Package i2c holds what the STM32F0 I²C master and target drivers share:
// pin routing checks and the TIMINGR solver. It also provides a blocking
// master, Bus, that satisfies tinygo.org/x/drivers.I2C.
package i2c

import (
	"f0hal-go/errcode"
	"f0hal-go/gpio"
)

// Pins is an SCL/SDA pair in alternate-function mode.
type Pins struct {
	SCL gpio.Alternate
	SDA gpio.Alternate
}

type route struct {
	port byte
	pin  uint8
	af   gpio.AF
}

// Routings across the F0 line. Parts without a given pin simply never
// produce it.
var (
	scl = map[uint8][]route{
		1: {{'A', 9, gpio.AF4}, {'A', 11, gpio.AF5}, {'B', 6, gpio.AF1}, {'B', 8, gpio.AF1}, {'B', 10, gpio.AF1}, {'B', 13, gpio.AF5}},
		2: {{'B', 10, gpio.AF1}, {'B', 13, gpio.AF5}},
	}
	sda = map[uint8][]route{
		1: {{'A', 10, gpio.AF4}, {'A', 12, gpio.AF5}, {'B', 7, gpio.AF1}, {'B', 9, gpio.AF1}, {'B', 11, gpio.AF1}, {'B', 14, gpio.AF5}},
		2: {{'B', 11, gpio.AF1}, {'B', 14, gpio.AF5}},
	}
)

func routed(table []route, a gpio.Alternate) bool {
	if !a.Valid() {
		return false
	}
	p := a.Pin()
	for _, r := range table {
		if r.port == p.Port() && r.pin == p.Num() && r.af == a.AF() {
			return true
		}
	}
	return false
}

// Validate checks that both pins carry the right function for I2C unit num.
func (p Pins) Validate(num uint8) error {
	if _, ok := scl[num]; !ok {
		return errcode.New(errcode.InvalidParams, "i2c.Pins", "no such unit")
	}
	if !routed(scl[num], p.SCL) {
		return errcode.New(errcode.InvalidPins, "i2c.Pins", "SCL not routed to this unit")
	}
	if !routed(sda[num], p.SDA) {
		return errcode.New(errcode.InvalidPins, "i2c.Pins", "SDA not routed to this unit")
	}
	return nil
}
