package errcode

// Code is a stable, driver-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	InvalidParams Code = "invalid_params"
	InvalidPins   Code = "invalid_pins"
	BufferFull    Code = "buffer_full"
	Timeout       Code = "timeout"

	// I²C bus conditions reported by the peripheral.
	Nack            Code = "nack"
	BusError        Code = "bus_error"
	ArbitrationLost Code = "arbitration_lost"
	Overrun         Code = "overrun"

	// Clock tree.
	ClockClamped      Code = "clock_clamped"
	InvalidOscillator Code = "invalid_oscillator"

	Error Code = "error" // generic fallback
)

// E keeps an operation and message alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.X) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E for op with a short message.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
