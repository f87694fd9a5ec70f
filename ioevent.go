package pulseloop

import "github.com/opd-ai/pulseloop/loopcore"

// IOEventRef is a borrowed view of an IO event source, handed to its
// own callback so the watched condition set can be changed from within
// the callback's execution.
type IOEventRef struct {
	core  *loopcore.IOSource
	owner *inner
}

// Enable replaces the set of watched IO conditions. IONull parks the
// source without destroying it.
func (e *IOEventRef) Enable(events IOFlags) {
	e.owner.api.IOEnable(e.core, events)
}

// Disable parks the source; equivalent to Enable(IONull).
func (e *IOEventRef) Disable() {
	e.owner.api.IOEnable(e.core, IONull)
}

// IOEvent is an owning wrapper over an IO event source watching one
// file descriptor. Keep the wrapper alive for as long as the source
// should exist, and call Free when done: freeing the wrapper destroys
// the source and releases the saved callback closure.
type IOEvent struct {
	IOEventRef
	savedCB ioEventCb
	freed   bool
}

// SetDestroyCallback registers a one-shot notification the loop core
// fires immediately before the source is released, while the source's
// raw userdata is still valid.
func (e *IOEvent) SetDestroyCallback(cb loopcore.IOEventDestroyCB) {
	e.owner.api.IOSetDestroy(e.core, cb)
}

// Free destroys the source, then releases the saved closure.
func (e *IOEvent) Free() {
	if e.freed {
		return
	}
	e.freed = true
	e.owner.api.IOFree(e.core)
	e.savedCB.Drop()
}
