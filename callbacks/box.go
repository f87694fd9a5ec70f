package callbacks

import (
	"fmt"
	"sync"
)

// Handle is an opaque, pointer-sized reference to a boxed closure. It is
// the only form in which a closure may travel through the loop core's
// userdata slots. The zero Handle refers to nothing.
type Handle uintptr

var (
	boxMu  sync.Mutex
	boxes  = make(map[Handle]any)
	nextID Handle = 1
)

// Box takes ownership of a closure and returns an opaque handle suitable
// for passing as loop core userdata. The closure stays reachable until
// Destroy is called on the returned handle.
func Box[C any](cb C) Handle {
	boxMu.Lock()
	defer boxMu.Unlock()
	h := nextID
	nextID++
	boxes[h] = cb
	return h
}

// Get resolves userdata back to the boxed closure without taking
// ownership. It is intended solely for trampolines. Panics if the handle
// is zero, unknown, or boxed with a different type: every such case
// means a closure was resolved after being freed, or a trampoline was
// paired with the wrong registration.
func Get[C any](userdata uintptr) C {
	boxMu.Lock()
	v, ok := boxes[Handle(userdata)]
	boxMu.Unlock()
	if !ok {
		panic(fmt.Sprintf("callbacks: no closure boxed for handle %#x", userdata))
	}
	cb, ok := v.(C)
	if !ok {
		panic(fmt.Sprintf("callbacks: closure for handle %#x has type %T, not the requested type", userdata, v))
	}
	return cb
}

// Destroy frees the boxed closure. Each handle must be destroyed exactly
// once; a second Destroy panics rather than silently masking a
// double-free.
func (h Handle) Destroy() {
	boxMu.Lock()
	defer boxMu.Unlock()
	if _, ok := boxes[h]; !ok {
		panic(fmt.Sprintf("callbacks: destroy of unknown handle %#x", uintptr(h)))
	}
	delete(boxes, h)
}

// Live returns the number of currently boxed closures. Leak tests use it
// to confirm every wrapper lifecycle returns the registry to its
// baseline.
func Live() int {
	boxMu.Lock()
	defer boxMu.Unlock()
	return len(boxes)
}
