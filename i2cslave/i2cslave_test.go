package i2cslave

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"f0hal-go/device/stm32f0"
	"f0hal-go/errcode"
	"f0hal-go/gpio"
	"f0hal-go/i2c"
)

const addr = 0x52

// ---- fixtures ----

func pins(t *testing.T) i2c.Pins {
	t.Helper()
	port := gpio.Split(stm32f0.NewGPIOModel('A'), stm32f0.NewClockModel(0).RCC)
	return i2c.Pins{
		SCL: port.Pin(9).IntoAlternateOpenDrain(gpio.AF4),
		SDA: port.Pin(10).IntoAlternateOpenDrain(gpio.AF4),
	}
}

func newTarget(t *testing.T) (*Controller, *stm32f0.I2CModel) {
	t.Helper()
	m := stm32f0.NewI2CModel(1)
	c, err := New(m.Regs, stm32f0.NewClockModel(0).RCC, pins(t), Config{Address: addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, m
}

// irq runs the handler once and returns what it raised.
func irq(t *testing.T, c *Controller) (Event, bool) {
	t.Helper()
	return c.Interrupt()
}

func mustState(t *testing.T, c *Controller, want TransferState) {
	t.Helper()
	if got := c.Transfer(); got != want {
		t.Fatalf("state=%v want %v", got, want)
	}
}

// selectRegister plays a write address phase and the register byte.
func selectRegister(t *testing.T, c *Controller, m *stm32f0.I2CModel, reg byte) {
	t.Helper()
	if !m.Address(addr, false) {
		t.Fatal("address not acknowledged")
	}
	irq(t, c)
	mustState(t, c, Addressed)
	m.Receive(reg)
	irq(t, c)
	mustState(t, c, RegisterSet)
}

// ---- construction ----

func TestNewProgramsUnit(t *testing.T) {
	m := stm32f0.NewI2CModel(1)
	cm := stm32f0.NewClockModel(0)
	_, err := New(m.Regs, cm.RCC, pins(t), Config{Address: addr, SCLLowTimeout: 0x100, DigitalFilter: 3})
	if err != nil {
		t.Fatal(err)
	}
	if !cm.RCC.APB1ENR.HasBits(stm32f0.RCC_APB1ENR_I2C1EN) {
		t.Fatal("unit clock not enabled")
	}
	if got := m.Regs.OAR1.Get(); got != stm32f0.I2C_OAR1_OA1EN|addr<<1 {
		t.Fatalf("OAR1=%#x", got)
	}
	want := uint32(stm32f0.I2C_CR1_PE | stm32f0.I2C_CR1_ERRIE | stm32f0.I2C_CR1_STOPIE | stm32f0.I2C_CR1_NACKIE |
		stm32f0.I2C_CR1_ADDRIE | stm32f0.I2C_CR1_RXIE | stm32f0.I2C_CR1_WUPEN | 3<<stm32f0.I2C_CR1_DNF_Pos)
	if got := m.CR1(); got != want {
		t.Fatalf("CR1=%#x want %#x", got, want)
	}
	if got := m.Regs.TIMEOUTR.Get(); got != 0x100|stm32f0.I2C_TIMEOUTR_TIMOUTEN {
		t.Fatalf("TIMEOUTR=%#x", got)
	}
	timing, _ := i2c.Timing(8_000_000, i2c.Fast)
	if m.Regs.TIMINGR.Get() != timing {
		t.Fatalf("TIMINGR=%#x", m.Regs.TIMINGR.Get())
	}
}

func TestNewRejects(t *testing.T) {
	for _, a := range []uint8{0x00, 0x07, 0x78, 0x80} {
		m := stm32f0.NewI2CModel(1)
		_, err := New(m.Regs, stm32f0.NewClockModel(0).RCC, pins(t), Config{Address: a})
		if errcode.Of(err) != errcode.InvalidParams {
			t.Fatalf("address %#x: err=%v", a, err)
		}
	}
	m := stm32f0.NewI2CModel(2)
	_, err := New(m.Regs, stm32f0.NewClockModel(0).RCC, pins(t), Config{Address: addr})
	if errcode.Of(err) != errcode.InvalidPins {
		t.Fatalf("PA9/PA10 on I2C2: err=%v", err)
	}
	if m.CR1()&stm32f0.I2C_CR1_PE != 0 {
		t.Fatal("unit enabled despite failure")
	}
	m = stm32f0.NewI2CModel(1)
	_, err = New(m.Regs, stm32f0.NewClockModel(0).RCC, pins(t), Config{Address: addr, DigitalFilter: 16})
	if errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("filter 16: err=%v", err)
	}
}

func TestAddressMismatchIgnored(t *testing.T) {
	_, m := newTarget(t)
	if m.Address(0x53, false) {
		t.Fatal("foreign address acknowledged")
	}
}

// ---- write transactions ----

func TestWriteScenario(t *testing.T) {
	c, m := newTarget(t)
	selectRegister(t, c, m, 0x01)
	m.Receive(0xAA)
	irq(t, c)
	mustState(t, c, Receiving)
	m.Receive(0xBB)
	irq(t, c)
	m.Stop()
	ev, ok := irq(t, c)
	if !ok || ev != (Event{DataReceived, 0x01}) {
		t.Fatalf("Interrupt raised %v %v", ev, ok)
	}
	mustState(t, c, Idle)

	if ev, ok := c.State(); !ok || ev != (Event{DataReceived, 0x01}) {
		t.Fatalf("State()=%v %v", ev, ok)
	}
	if diff := cmp.Diff([]byte{0xAA, 0xBB}, c.ReceivedData()); diff != "" {
		t.Fatalf("ReceivedData (-want +got):\n%s", diff)
	}
	if _, ok := c.State(); ok {
		t.Fatal("DataReceived not consumed")
	}
	if got := c.ReceivedData(); len(got) != 0 {
		t.Fatalf("second drain returned %x", got)
	}
}

func TestWritePayloadLengths(t *testing.T) {
	for n := 1; n <= BufferSize; n++ {
		c, m := newTarget(t)
		reg := byte(n * 7)
		selectRegister(t, c, m, reg)
		want := make([]byte, n)
		for i := range want {
			want[i] = byte(0xC0 + i)
			m.Receive(want[i])
			irq(t, c)
		}
		m.Stop()
		ev, ok := irq(t, c)
		if !ok || ev != (Event{DataReceived, reg}) {
			t.Fatalf("n=%d: event %v %v", n, ev, ok)
		}
		if diff := cmp.Diff(want, c.ReceivedData()); diff != "" {
			t.Fatalf("n=%d (-want +got):\n%s", n, diff)
		}
	}
}

func TestLastByteAndStopInOneCall(t *testing.T) {
	c, m := newTarget(t)
	selectRegister(t, c, m, 0x09)
	m.Receive(0x11)
	m.Stop()
	ev, ok := irq(t, c)
	if !ok || ev != (Event{DataReceived, 0x09}) {
		t.Fatalf("event %v %v", ev, ok)
	}
	if diff := cmp.Diff([]byte{0x11}, c.ReceivedData()); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestRegisterOnlyWriteRaisesNothing(t *testing.T) {
	c, m := newTarget(t)
	selectRegister(t, c, m, 0x04)
	m.Stop()
	if ev, ok := irq(t, c); ok {
		t.Fatalf("raised %v", ev)
	}
	mustState(t, c, Idle)
}

func TestOverflowAborts(t *testing.T) {
	c, m := newTarget(t)
	selectRegister(t, c, m, 0x02)
	for i := 0; i < BufferSize; i++ {
		m.Receive(byte(i))
		irq(t, c)
	}
	mustState(t, c, Receiving)

	m.Receive(0xEE)
	if _, ok := irq(t, c); ok {
		t.Fatal("overflow raised an event")
	}
	mustState(t, c, Idle)
	if !m.Regs.CR2.HasBits(stm32f0.I2C_CR2_NACK) {
		t.Fatal("overflowing byte not NACKed")
	}
	if m.Receive(0xEF) {
		t.Fatal("byte after overflow acknowledged")
	}
	m.Stop()
	if ev, ok := irq(t, c); ok {
		t.Fatalf("stop after overflow raised %v", ev)
	}
	if s := c.Stats(); s.Overflows != 1 || s.Last != errcode.BufferFull {
		t.Fatalf("stats=%+v", s)
	}
	if len(c.ReceivedData()) != 0 {
		t.Fatal("overflowed payload delivered")
	}
}

func TestNewWriteDiscardsUndrained(t *testing.T) {
	c, m := newTarget(t)
	selectRegister(t, c, m, 0x01)
	m.Receive(0xAA)
	irq(t, c)
	m.Stop()
	irq(t, c)

	m.Address(addr, false)
	irq(t, c)
	if _, ok := c.State(); ok {
		t.Fatal("new transaction kept the stale event")
	}
	if len(c.ReceivedData()) != 0 {
		t.Fatal("new transaction kept the stale payload")
	}
}

// ---- read transactions ----

func TestReadScenario(t *testing.T) {
	c, m := newTarget(t)
	if err := c.SetTransmitBuffer([]byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatal(err)
	}
	selectRegister(t, c, m, 0x05)

	m.Address(addr, true) // repeated START
	ev, ok := irq(t, c)
	if !ok || ev != (Event{DataRequested, 0x05}) {
		t.Fatalf("event %v %v", ev, ok)
	}
	mustState(t, c, Transmitting)
	if m.CR1()&stm32f0.I2C_CR1_TXIE == 0 {
		t.Fatal("TXIE not enabled")
	}

	// First TXIS follows ADDR; each Shift raises the next.
	for i := 0; i < 3; i++ {
		irq(t, c)
		m.Shift()
	}
	if diff := cmp.Diff([]byte{0x01, 0x02, 0x03}, m.Loaded); diff != "" {
		t.Fatalf("TXDR writes (-want +got):\n%s", diff)
	}

	irq(t, c) // fourth TXIS
	if len(m.Loaded) != 3 {
		t.Fatalf("wrote past the buffer: %x", m.Loaded)
	}
	if m.CR1()&stm32f0.I2C_CR1_TXIE != 0 {
		t.Fatal("TXIE left enabled")
	}
	if _, ok := c.State(); ok {
		t.Fatal("DataRequested still pending")
	}

	m.Stop()
	irq(t, c)
	mustState(t, c, Idle)
	if diff := cmp.Diff([]byte{0x01, 0x02, 0x03}, m.Sent); diff != "" {
		t.Fatalf("clocked out (-want +got):\n%s", diff)
	}
}

func TestReadShorterThanBuffer(t *testing.T) {
	for n := 0; n <= 4; n++ {
		c, m := newTarget(t)
		buf := []byte{0x10, 0x20, 0x30, 0x40}
		c.SetTransmitBuffer(buf[:2])
		selectRegister(t, c, m, 0x01)
		m.Address(addr, true)
		irq(t, c)
		for i := 0; i < n; i++ {
			irq(t, c)
			m.Shift()
		}
		irq(t, c)
		want := buf[:min(n+1, 2)]
		if diff := cmp.Diff(want, m.Loaded); diff != "" {
			t.Fatalf("n=%d TXDR writes (-want +got):\n%s", n, diff)
		}
	}
}

func TestReadWithoutRegisterServesCurrent(t *testing.T) {
	c, m := newTarget(t)
	selectRegister(t, c, m, 0x33)
	m.Stop()
	irq(t, c)

	m.Address(addr, true)
	ev, ok := irq(t, c)
	if !ok || ev != (Event{DataRequested, 0x33}) {
		t.Fatalf("event %v %v", ev, ok)
	}
	mustState(t, c, Transmitting)
}

func TestRegisterByteAndReadAddressInOneCall(t *testing.T) {
	c, m := newTarget(t)
	m.Address(addr, false)
	irq(t, c)
	m.Receive(0x07)
	m.Address(addr, true)
	ev, ok := irq(t, c)
	if !ok || ev != (Event{DataRequested, 0x07}) {
		t.Fatalf("event %v %v", ev, ok)
	}
}

func TestStopDuringReadClearsRequest(t *testing.T) {
	c, m := newTarget(t)
	selectRegister(t, c, m, 0x05)
	m.Address(addr, true)
	irq(t, c)
	m.Stop()
	irq(t, c)
	mustState(t, c, Idle)
	if _, ok := c.State(); ok {
		t.Fatal("DataRequested survived STOP")
	}
	if m.CR1()&stm32f0.I2C_CR1_TXIE != 0 {
		t.Fatal("TXIE left on after STOP")
	}
}

func TestSetTransmitBuffer(t *testing.T) {
	c, m := newTarget(t)
	err := c.SetTransmitBuffer(make([]byte, BufferSize+1))
	if errcode.Of(err) != errcode.BufferFull {
		t.Fatalf("oversized: %v", err)
	}
	if err := c.SetTransmitBuffer(make([]byte, BufferSize)); err != nil {
		t.Fatalf("full-size: %v", err)
	}

	selectRegister(t, c, m, 0x01)
	m.Address(addr, true)
	irq(t, c)
	// Answering DataRequested before the first byte is allowed.
	if err := c.SetTransmitBuffer([]byte{0xAB}); err != nil {
		t.Fatalf("reload on request: %v", err)
	}
	irq(t, c)
	if err := c.SetTransmitBuffer([]byte{0xCD}); errcode.Of(err) != errcode.Busy {
		t.Fatalf("mid-transmission: %v", err)
	}
	if diff := cmp.Diff([]byte{0xAB}, m.Loaded); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

// ---- faults ----

func TestErrorFlagsResetToIdle(t *testing.T) {
	flags := []struct {
		flag uint32
		code errcode.Code
		get  func(Stats) uint32
	}{
		{stm32f0.I2C_ISR_BERR, errcode.BusError, func(s Stats) uint32 { return s.BusErrors }},
		{stm32f0.I2C_ISR_OVR, errcode.Overrun, func(s Stats) uint32 { return s.Overruns }},
		{stm32f0.I2C_ISR_ARLO, errcode.ArbitrationLost, func(s Stats) uint32 { return s.ArbitrationLost }},
		{stm32f0.I2C_ISR_NACKF, errcode.Nack, func(s Stats) uint32 { return s.Nacks }},
		{stm32f0.I2C_ISR_TIMEOUT, errcode.Timeout, func(s Stats) uint32 { return s.Timeouts }},
	}
	into := map[TransferState]func(*testing.T, *Controller, *stm32f0.I2CModel){
		Addressed: func(t *testing.T, c *Controller, m *stm32f0.I2CModel) {
			m.Address(addr, false)
			irq(t, c)
		},
		RegisterSet: func(t *testing.T, c *Controller, m *stm32f0.I2CModel) {
			selectRegister(t, c, m, 0x01)
		},
		Receiving: func(t *testing.T, c *Controller, m *stm32f0.I2CModel) {
			selectRegister(t, c, m, 0x01)
			m.Receive(0xAA)
			irq(t, c)
			m.Receive(0xBB)
			irq(t, c)
		},
		Transmitting: func(t *testing.T, c *Controller, m *stm32f0.I2CModel) {
			c.SetTransmitBuffer([]byte{1, 2, 3})
			selectRegister(t, c, m, 0x01)
			m.Address(addr, true)
			irq(t, c)
			irq(t, c)
		},
	}
	for state, drive := range into {
		for _, f := range flags {
			c, m := newTarget(t)
			drive(t, c, m)
			mustState(t, c, state)

			m.Raise(f.flag)
			if ev, ok := irq(t, c); ok {
				t.Fatalf("%v/%s: raised %v", state, f.code, ev)
			}
			mustState(t, c, Idle)
			if c.rxLen != 0 || c.txIdx != 0 {
				t.Fatalf("%v/%s: rx=%d tx=%d", state, f.code, c.rxLen, c.txIdx)
			}
			if _, ok := c.State(); ok {
				t.Fatalf("%v/%s: event pending", state, f.code)
			}
			if m.ISR()&f.flag != 0 {
				t.Fatalf("%v/%s: flag not cleared", state, f.code)
			}
			if m.CR1()&stm32f0.I2C_CR1_TXIE != 0 {
				t.Fatalf("%v/%s: TXIE on", state, f.code)
			}
			s := c.Stats()
			if f.get(s) != 1 || s.Last != f.code {
				t.Fatalf("%v/%s: stats %+v", state, f.code, s)
			}
		}
	}
}

func TestRecoversAfterError(t *testing.T) {
	c, m := newTarget(t)
	selectRegister(t, c, m, 0x01)
	m.Raise(stm32f0.I2C_ISR_BERR)
	irq(t, c)

	selectRegister(t, c, m, 0x02)
	m.Receive(0x5A)
	irq(t, c)
	m.Stop()
	if ev, ok := irq(t, c); !ok || ev != (Event{DataReceived, 0x02}) {
		t.Fatalf("event %v %v", ev, ok)
	}
}

func TestRelease(t *testing.T) {
	c, m := newTarget(t)
	regs, p := c.Release()
	if regs != m.Regs || !p.SCL.Valid() {
		t.Fatal("Release returned the wrong resources")
	}
	if m.CR1()&stm32f0.I2C_CR1_PE != 0 {
		t.Fatal("unit still enabled")
	}
}
