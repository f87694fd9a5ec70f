package pulseloop

import (
	"github.com/opd-ai/pulseloop/callbacks"
	"github.com/opd-ai/pulseloop/loopcore"
	"github.com/opd-ai/pulseloop/ptime"
)

// IOFlags re-exports the loop core's IO condition flags.
type IOFlags = loopcore.IOFlags

// IO condition flags.
const (
	IONull   = loopcore.IONull
	IOInput  = loopcore.IOInput
	IOOutput = loopcore.IOOutput
	IOHangup = loopcore.IOHangup
	IOError  = loopcore.IOError
)

// inner ties a loop engine to the state event sources need: the API
// vtable and the clock capability flag. Both loop flavours and every
// event source created from them share one inner, so the vtable stays
// reachable until the last event source is gone.
type inner struct {
	core *loopcore.Mainloop
	api  *loopcore.API
}

func newInner() (*inner, error) {
	core, err := loopcore.New()
	if err != nil {
		return nil, err
	}
	return &inner{core: core, api: core.API()}, nil
}

func (in *inner) supportsRtclock() bool {
	return in.core.SupportsRtclock()
}

// Callback prototypes for the wrapper layer. Each callback receives a
// reference view of its own event source, so it can enable, disable or
// restart the source from within its own execution.

// DeferEventCallback is the user callback of a deferred event source.
type DeferEventCallback func(e *DeferEventRef)

// TimeEventCallback is the user callback of a timer event source.
type TimeEventCallback func(e *TimeEventRef)

// IOEventCallback is the user callback of an IO event source.
type IOEventCallback func(e *IOEventRef, fd int, events IOFlags)

// SignalEventCallback is the user callback of a signal event source; it
// receives the delivered signal number.
type SignalEventCallback func(sig int)

// Saved multi-use callback instantiations, one per event kind. The
// second type parameter pins each saved closure to the one trampoline
// type its registration call accepts.
type (
	deferEventCb  = callbacks.MultiUse[func(*loopcore.DeferSource), loopcore.DeferEventCB]
	timeEventCb   = callbacks.MultiUse[func(*loopcore.TimeSource), loopcore.TimeEventCB]
	ioEventCb     = callbacks.MultiUse[func(*loopcore.IOSource, int, IOFlags), loopcore.IOEventCB]
	signalCb      = callbacks.MultiUse[func(int), loopcore.SignalCB]
	stateNotifyCb = callbacks.MultiUse[func(), loopcore.OperationNotifyCB]
)

// newDeferEvent boxes the user callback, registers it with the loop
// core and returns the owning wrapper. On core refusal the boxed
// closure is destroyed before the error returns.
func newDeferEvent(in *inner, callback DeferEventCallback) (*DeferEvent, error) {
	wrapper := func(ptr *loopcore.DeferSource) {
		callback(&DeferEventRef{core: ptr, owner: in})
	}
	saved := callbacks.NewMultiUse[func(*loopcore.DeferSource), loopcore.DeferEventCB](wrapper)
	cbFn, cbData := saved.CapiParams(deferEventTrampoline)

	ptr := in.api.DeferNew(in.api, cbFn, cbData)
	if ptr == nil {
		saved.Drop()
		return nil, ErrCreateFailed
	}
	return &DeferEvent{DeferEventRef: DeferEventRef{core: ptr, owner: in}, savedCB: saved}, nil
}

func newTimerEvent(in *inner, tv ptime.Timeval, callback TimeEventCallback) (*TimeEvent, error) {
	wrapper := func(ptr *loopcore.TimeSource) {
		callback(&TimeEventRef{core: ptr, owner: in})
	}
	saved := callbacks.NewMultiUse[func(*loopcore.TimeSource), loopcore.TimeEventCB](wrapper)
	cbFn, cbData := saved.CapiParams(timeEventTrampoline)

	ptr := in.api.TimeNew(in.api, tv, cbFn, cbData)
	if ptr == nil {
		saved.Drop()
		return nil, ErrCreateFailed
	}
	return &TimeEvent{TimeEventRef: TimeEventRef{core: ptr, owner: in}, savedCB: saved}, nil
}

func newIOEvent(in *inner, fd int, events IOFlags, callback IOEventCallback) (*IOEvent, error) {
	wrapper := func(ptr *loopcore.IOSource, fd int, flags IOFlags) {
		callback(&IOEventRef{core: ptr, owner: in}, fd, flags)
	}
	saved := callbacks.NewMultiUse[func(*loopcore.IOSource, int, IOFlags), loopcore.IOEventCB](wrapper)
	cbFn, cbData := saved.CapiParams(ioEventTrampoline)

	ptr := in.api.IONew(in.api, fd, events, cbFn, cbData)
	if ptr == nil {
		saved.Drop()
		return nil, ErrCreateFailed
	}
	return &IOEvent{IOEventRef: IOEventRef{core: ptr, owner: in}, savedCB: saved}, nil
}

// once schedules cb to run exactly once from the loop via an anonymous
// deferred source. The closure travels as a single-use box reclaimed by
// the source's destroy notification, which covers both the dispatched
// case and a loop freed before the source ever fires. A nil cb
// normalizes to the empty registration and is ignored.
func once(in *inner, cb func()) {
	var p *callbacks.Params[loopcore.OnceCB]
	if cb != nil {
		p = &callbacks.Params[loopcore.OnceCB]{
			Proxy:    onceTrampoline,
			Userdata: uintptr(callbacks.Box(cb)),
		}
	}
	fn, userdata := callbacks.Unwrap(p)
	if fn == nil {
		return
	}
	in.api.Once(fn, onceDestroyTrampoline, userdata)
}
