// Package critical provides the critical sections that serialise main-loop
// access to state shared with interrupt handlers. Sections do not nest on
// the host; code already inside one must not enter again.
package critical

// Do runs fn inside a critical section.
func Do(fn func()) {
	s := Enter()
	fn()
	Exit(s)
}
