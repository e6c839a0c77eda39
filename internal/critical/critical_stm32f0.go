//go:build stm32f0

package critical

import "runtime/interrupt"

// State is the interrupt mask saved on entry.
type State = interrupt.State

// Enter masks interrupts and returns the previous mask.
func Enter() State { return interrupt.Disable() }

// Exit restores the mask saved by Enter.
func Exit(s State) { interrupt.Restore(s) }
