//go:build stm32f0

// Command i2c-target runs the reference board as an I²C register device:
// 48 MHz from HSI, target 0x52 on PA9/PA10. Register 0x20 drives the LED
// on PA5; the rest is a plain register file.
package main

import (
	"context"
	"runtime/interrupt"
	"time"

	"f0hal-go/config"
	"f0hal-go/device/stm32f0"
	"f0hal-go/gpio"
	"f0hal-go/i2cslave"
	"f0hal-go/internal/critical"
	"f0hal-go/services/target"
	"f0hal-go/x/conv"
)

const (
	regWhoAmI  = 0x00
	regVersion = 0x01
	regLED     = 0x20
)

var board = func() config.Board {
	b := config.Default()
	b.Registers = []config.Register{
		{Reg: regWhoAmI, Data: "52", ReadOnly: true},
		{Reg: regVersion, Data: "01 00", ReadOnly: true},
		{Reg: regLED, Data: "00"},
	}
	return b
}()

// ledWriter applies writes to the register file and mirrors regLED bit 0
// onto the LED.
type ledWriter struct {
	file *target.RegisterFile
	led  gpio.Output
}

func (w ledWriter) Write(reg uint8, data []byte) {
	w.file.Write(reg, data)
	if reg == regLED && len(data) > 0 {
		w.led.Set(data[0]&1 != 0)
	}
}

var worker *target.Worker

func main() {
	c, err := board.RCC()
	if err != nil {
		println("[main] clock config:", err.Error())
		return
	}
	clocks, err := c.FreezeChecked(stm32f0.RCC, stm32f0.FLASH, board.Clock.TolerancePPM)
	if err != nil {
		println("[main] clock:", err.Error(), "- running clamped")
		clocks = c.Freeze(stm32f0.RCC, stm32f0.FLASH)
	}
	println("[main] sysclk", uint32(clocks.SysClk()), "pclk", uint32(clocks.PClk()))

	ports := map[byte]*stm32f0.GPIORegs{'A': stm32f0.GPIOA, 'B': stm32f0.GPIOB}
	port := func(letter byte) (gpio.Port, bool) {
		r, ok := ports[letter]
		if !ok {
			return gpio.Port{}, false
		}
		return gpio.Split(r, stm32f0.RCC), true
	}
	pins, err := board.Target.Pins(port)
	if err != nil {
		println("[main] pins:", err.Error())
		return
	}
	portA, _ := port('A')

	file := &target.RegisterFile{}
	if err := board.Load(file); err != nil {
		println("[main] registers:", err.Error())
		return
	}

	unit := stm32f0.I2C1
	if board.Target.Unit == 2 {
		unit = stm32f0.I2C2
	}
	ctl, err := i2cslave.New(unit, stm32f0.RCC, pins, board.I2C())
	if err != nil {
		println("[main] i2c target:", err.Error())
		return
	}

	worker = target.New(ctl, file, ledWriter{file: file, led: portA.Pin(5).IntoOutput()}, 8, 8)
	worker.Verbose = true
	worker.Start(context.Background())

	// interrupt.New needs constant arguments.
	if board.Target.Unit == 2 {
		irq := interrupt.New(stm32f0.IRQ_I2C2, func(interrupt.Interrupt) { worker.HandleInterrupt() })
		irq.Enable()
	} else {
		irq := interrupt.New(stm32f0.IRQ_I2C1, func(interrupt.Interrupt) { worker.HandleInterrupt() })
		irq.Enable()
	}
	var line [8]byte
	println("[main] target ready at", string(conv.AppendHex8(append(line[:0], "0x"...), ctl.Address())))

	tick := time.NewTicker(10 * time.Second)
	defer tick.Stop()
	for {
		select {
		case ev := <-worker.Events():
			if ev.Register == regLED {
				println("[main] led", ev.Data[0]&1)
			}
		case <-tick.C:
			var st i2cslave.Stats
			critical.Do(func() { st = ctl.Stats() })
			println("[main] reads", worker.Reads(), "drops", worker.ISRDrops(), "nacks", st.Nacks,
				"errors", st.BusErrors+st.Overruns+st.ArbitrationLost+st.Timeouts+st.Overflows)
		}
	}
}
