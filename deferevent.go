package pulseloop

import "github.com/opd-ai/pulseloop/loopcore"

// DeferEventRef is a borrowed view of a deferred event source, handed
// to its own callback so the source can be managed from within the
// callback's execution.
type DeferEventRef struct {
	core  *loopcore.DeferSource
	owner *inner
}

// Enable lets the source fire on each loop iteration.
func (e *DeferEventRef) Enable() {
	e.owner.api.DeferEnable(e.core, true)
}

// Disable stops the source from firing until re-enabled. No fire can
// occur after Disable returns.
func (e *DeferEventRef) Disable() {
	e.owner.api.DeferEnable(e.core, false)
}

// DeferEvent is an owning wrapper over a deferred event source. The
// source fires on every loop iteration while enabled; it starts
// enabled. Keep the wrapper alive for as long as the source should
// exist, and call Free when done: freeing the wrapper destroys the
// source and releases the saved callback closure.
type DeferEvent struct {
	DeferEventRef
	savedCB deferEventCb
	freed   bool
}

// SetDestroyCallback registers a one-shot notification the loop core
// fires immediately before the source is released, while the source's
// raw userdata is still valid. The wrapper's own closure cleanup does
// not depend on this hook.
func (e *DeferEvent) SetDestroyCallback(cb loopcore.DeferEventDestroyCB) {
	e.owner.api.DeferSetDestroy(e.core, cb)
}

// Free destroys the source, then releases the saved closure. The order
// is deliberate: the core's destroy notification (if any) fires during
// the free call, while the closure is still boxed.
func (e *DeferEvent) Free() {
	if e.freed {
		return
	}
	e.freed = true
	e.owner.api.DeferFree(e.core)
	e.savedCB.Drop()
}
