// Package config describes a board: the clock request, the I²C target and
// the registers it starts with. Boards are JSON documents; Default is the
// reference board (HSI, 48 MHz, target 0x52 on PA9/PA10).
package config

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"f0hal-go/errcode"
	"f0hal-go/gpio"
	"f0hal-go/i2c"
	"f0hal-go/i2cslave"
	"f0hal-go/rcc"
	"f0hal-go/services/target"
)

type Board struct {
	Clock     Clock      `json:"clock"`
	Target    Target     `json:"target"`
	Registers []Register `json:"registers,omitempty"`
}

// Clock is a clock request. Zero frequencies are left to rcc defaults.
type Clock struct {
	Source       string `json:"source"` // "hsi", "hse", "hsi48"
	HSE          uint32 `json:"hse_hz,omitempty"`
	SysClk       uint32 `json:"sysclk_hz,omitempty"`
	HClk         uint32 `json:"hclk_hz,omitempty"`
	PClk         uint32 `json:"pclk_hz,omitempty"`
	TolerancePPM uint32 `json:"tolerance_ppm"` // how far the solved tree may miss the request
}

type Target struct {
	Unit          uint8  `json:"unit"` // 1 or 2
	Address       uint8  `json:"address"`
	SCL           string `json:"scl"` // e.g. "PA9"
	SDA           string `json:"sda"`
	AF            uint8  `json:"af"`
	SCLLowTimeout uint16 `json:"scl_low_timeout,omitempty"`
	DigitalFilter uint8  `json:"digital_filter,omitempty"`
}

// Register is an initial register value, hex encoded ("01 02 ff").
type Register struct {
	Reg      uint8  `json:"reg"`
	Data     string `json:"data"`
	ReadOnly bool   `json:"read_only,omitempty"`
}

// Default returns the reference board.
func Default() Board {
	return Board{
		Clock: Clock{Source: "hsi", SysClk: 48_000_000, PClk: 24_000_000},
		Target: Target{
			Unit: 1, Address: 0x52,
			SCL: "PA9", SDA: "PA10", AF: 4,
		},
	}
}

// Parse decodes a board over the defaults and validates it.
func Parse(b []byte) (Board, error) {
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Board{}, &errcode.E{C: errcode.InvalidParams, Op: "config.Parse", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return Board{}, err
	}
	return cfg, nil
}

// Validate checks what can be checked without hardware.
func (b Board) Validate() error {
	if _, err := b.RCC(); err != nil {
		return err
	}
	t := b.Target
	if t.Unit != 1 && t.Unit != 2 {
		return bad("target.unit " + strconv.Itoa(int(t.Unit)))
	}
	if t.Address < 0x08 || t.Address > 0x77 {
		return bad("target.address 0x" + strconv.FormatUint(uint64(t.Address), 16))
	}
	if t.AF > 7 {
		return bad("target.af " + strconv.Itoa(int(t.AF)))
	}
	for _, s := range []string{t.SCL, t.SDA} {
		if _, _, err := ParsePin(s); err != nil {
			return err
		}
	}
	for _, r := range b.Registers {
		if _, err := r.Bytes(); err != nil {
			return err
		}
	}
	return nil
}

// RCC converts the clock request.
func (b Board) RCC() (rcc.Config, error) {
	c := rcc.Configure()
	switch strings.ToLower(b.Clock.Source) {
	case "", "hsi":
	case "hse":
		if b.Clock.HSE == 0 {
			return c, bad("clock.hse_hz required for source hse")
		}
		c = c.HSE(rcc.Hertz(b.Clock.HSE))
	case "hsi48":
		c = c.HSI48()
	default:
		return c, bad("clock.source " + strconv.Quote(b.Clock.Source))
	}
	if b.Clock.SysClk != 0 {
		c = c.SysClk(rcc.Hertz(b.Clock.SysClk))
	}
	if b.Clock.HClk != 0 {
		c = c.HClk(rcc.Hertz(b.Clock.HClk))
	}
	if b.Clock.PClk != 0 {
		c = c.PClk(rcc.Hertz(b.Clock.PClk))
	}
	return c, nil
}

// I2C converts the target settings.
func (b Board) I2C() i2cslave.Config {
	return i2cslave.Config{
		Address:       b.Target.Address,
		SCLLowTimeout: b.Target.SCLLowTimeout,
		DigitalFilter: b.Target.DigitalFilter,
	}
}

// Pins routes SCL and SDA open-drain with pull-ups and checks them against
// the unit's routing table. port returns the clocked port for a letter.
func (t Target) Pins(port func(letter byte) (gpio.Port, bool)) (i2c.Pins, error) {
	var out [2]gpio.Alternate
	for i, s := range []string{t.SCL, t.SDA} {
		letter, n, err := ParsePin(s)
		if err != nil {
			return i2c.Pins{}, err
		}
		p, ok := port(letter)
		if !ok {
			return i2c.Pins{}, errcode.New(errcode.InvalidPins, "config", "no port "+string(rune(letter)))
		}
		out[i] = p.Pin(n).IntoAlternateOpenDrain(gpio.AF(t.AF)).WithPull(gpio.PullUp)
	}
	pins := i2c.Pins{SCL: out[0], SDA: out[1]}
	if err := pins.Validate(t.Unit); err != nil {
		return i2c.Pins{}, err
	}
	return pins, nil
}

// Load stores the initial registers into f.
func (b Board) Load(f *target.RegisterFile) error {
	for _, r := range b.Registers {
		p, err := r.Bytes()
		if err != nil {
			return err
		}
		if err := f.Store(r.Reg, p); err != nil {
			return err
		}
		f.SetReadOnly(r.Reg, r.ReadOnly)
	}
	return nil
}

// Bytes decodes the register data.
func (r Register) Bytes() ([]byte, error) {
	p, err := hex.DecodeString(strings.ReplaceAll(r.Data, " ", ""))
	if err != nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "register " + strconv.Itoa(int(r.Reg)), Err: err}
	}
	if len(p) > i2cslave.BufferSize {
		return nil, errcode.New(errcode.BufferFull, "config", "register "+strconv.Itoa(int(r.Reg)))
	}
	return p, nil
}

// ParsePin splits "PA9" into port 'A' and pin 9.
func ParsePin(s string) (port byte, n uint8, err error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 3 || s[0] != 'P' || s[1] < 'A' || s[1] > 'F' {
		return 0, 0, bad("pin " + strconv.Quote(s))
	}
	v, perr := strconv.ParseUint(s[2:], 10, 8)
	if perr != nil || v > 15 {
		return 0, 0, bad("pin " + strconv.Quote(s))
	}
	return s[1], uint8(v), nil
}

func bad(msg string) error { return errcode.New(errcode.InvalidParams, "config", msg) }
