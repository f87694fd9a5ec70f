package pulseloop

import (
	"github.com/opd-ai/pulseloop/loopcore"
	"github.com/opd-ai/pulseloop/ptime"
)

// TimeEventRef is a borrowed view of a timer event source, handed to
// its own callback so the timer can be re-armed from within the
// callback's execution.
type TimeEventRef struct {
	core  *loopcore.TimeSource
	owner *inner
}

// Restart re-arms the timer with a new wall-clock time, whether it is
// still counting down or has already expired.
func (e *TimeEventRef) Restart(t ptime.UnixTS) {
	e.owner.api.TimeRestart(e.core, ptime.TimevalFromUnix(t))
}

// RestartRT re-arms the timer with a new monotonic time. If the owning
// loop does not support monotonic timer values the time is translated
// to wall-clock form first. Panics on the invalid sentinel.
func (e *TimeEventRef) RestartRT(t ptime.MonotonicTS) {
	if !ptime.MicroSeconds(t).IsValid() {
		panic("pulseloop: timer restart with invalid monotonic time")
	}
	var tv ptime.Timeval
	tv.SetRT(t, e.owner.supportsRtclock())
	e.owner.api.TimeRestart(e.core, tv)
}

// TimeEvent is an owning wrapper over a timer event source. A timer
// fires at most once per arming; Restart re-arms it. Keep the wrapper
// alive for as long as the timer should exist, and call Free when
// done: freeing the wrapper destroys the source and releases the saved
// callback closure.
type TimeEvent struct {
	TimeEventRef
	savedCB timeEventCb
	freed   bool
}

// SetDestroyCallback registers a one-shot notification the loop core
// fires immediately before the source is released, while the source's
// raw userdata is still valid. The wrapper's own closure cleanup does
// not depend on this hook.
func (e *TimeEvent) SetDestroyCallback(cb loopcore.TimeEventDestroyCB) {
	e.owner.api.TimeSetDestroy(e.core, cb)
}

// Free destroys the source, then releases the saved closure. The
// core's destroy notification (if any) fires during the free call,
// while the closure is still boxed.
func (e *TimeEvent) Free() {
	if e.freed {
		return
	}
	e.freed = true
	e.owner.api.TimeFree(e.core)
	e.savedCB.Drop()
}
