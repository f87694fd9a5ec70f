package callbacks

// MultiUse is a saved multi-use callback: a closure that may be invoked
// any number of times before being torn down. The owning wrapper (an
// event source, an operation) holds the MultiUse for the lifetime of the
// registration and drops it only once the loop core can no longer
// invoke it.
//
// C is the closure type. P is the trampoline type the registration call
// expects; it is carried as a type parameter purely so that CapiParams
// can only ever pair a handle with a trampoline of the right shape.
//
// The zero MultiUse represents "no callback registered".
type MultiUse[C, P any] struct {
	handle Handle
}

// NewMultiUse boxes a closure into a fresh registration. For the
// "unregistered" state use the zero value instead.
func NewMultiUse[C, P any](cb C) MultiUse[C, P] {
	return MultiUse[C, P]{handle: Box(cb)}
}

// IsSet reports whether a closure is registered.
func (m *MultiUse[C, P]) IsSet() bool {
	return m.handle != 0
}

// CapiParams returns the trampoline/userdata pair to hand to the loop
// core registration call. If a closure is registered the result is
// (proxy, handle); otherwise it is (nil, 0). The two are always
// consistent: a trampoline is never paired with empty userdata, nor
// userdata with a missing trampoline.
func (m *MultiUse[C, P]) CapiParams(proxy P) (P, uintptr) {
	if m.handle == 0 {
		var none P
		return none, 0
	}
	return proxy, uintptr(m.handle)
}

// Drop frees the boxed closure, if any. Idempotent. Must only be called
// once the loop core can no longer invoke the registration.
func (m *MultiUse[C, P]) Drop() {
	if m.handle != 0 {
		m.handle.Destroy()
		m.handle = 0
	}
}

// Replace atomically exchanges the registration: the old closure is
// dropped first, then next is installed. Always replace through this
// method; assigning over a set MultiUse would leak the old closure.
func (m *MultiUse[C, P]) Replace(next MultiUse[C, P]) {
	m.Drop()
	*m = next
}
