package loopcore

import "github.com/opd-ai/pulseloop/ptime"

// Callback prototypes. Every slot is a plain function value paired with
// opaque userdata; none of them may capture wrapper-layer state.

// DeferEventCB is invoked each iteration while a deferred source is enabled.
type DeferEventCB func(a *API, e *DeferSource, userdata uintptr)

// DeferEventDestroyCB is invoked just before a deferred source is freed.
type DeferEventDestroyCB func(a *API, e *DeferSource, userdata uintptr)

// TimeEventCB is invoked when a timer source expires.
type TimeEventCB func(a *API, e *TimeSource, tv ptime.Timeval, userdata uintptr)

// TimeEventDestroyCB is invoked just before a timer source is freed.
type TimeEventDestroyCB func(a *API, e *TimeSource, userdata uintptr)

// IOEventCB is invoked when polled IO conditions occur on a source's fd.
type IOEventCB func(a *API, e *IOSource, fd int, events IOFlags, userdata uintptr)

// IOEventDestroyCB is invoked just before an IO source is freed.
type IOEventDestroyCB func(a *API, e *IOSource, userdata uintptr)

// OnceCB is the callback of an anonymous one-shot event.
type OnceCB func(a *API, userdata uintptr)

// API is the abstract main loop vtable. Event sources and higher layers
// call through it rather than into a concrete loop type, so any loop
// implementation exposing this table can host them. The table is owned
// by its loop and is valid exactly as long as the loop is.
type API struct {
	// Userdata is private to the loop implementation.
	Userdata uintptr

	IONew        func(a *API, fd int, events IOFlags, cb IOEventCB, userdata uintptr) *IOSource
	IOEnable     func(e *IOSource, events IOFlags)
	IOFree       func(e *IOSource)
	IOSetDestroy func(e *IOSource, cb IOEventDestroyCB)

	TimeNew        func(a *API, tv ptime.Timeval, cb TimeEventCB, userdata uintptr) *TimeSource
	TimeRestart    func(e *TimeSource, tv ptime.Timeval)
	TimeFree       func(e *TimeSource)
	TimeSetDestroy func(e *TimeSource, cb TimeEventDestroyCB)

	DeferNew        func(a *API, cb DeferEventCB, userdata uintptr) *DeferSource
	DeferEnable     func(e *DeferSource, enable bool)
	DeferFree       func(e *DeferSource)
	DeferSetDestroy func(e *DeferSource, cb DeferEventDestroyCB)

	Quit func(a *API, retval int)

	ml *Mainloop
}

// Once schedules cb to run exactly once from the loop, using an
// anonymous deferred source that frees itself after firing. destroy, if
// non-nil, fires when the source is released, whether cb ran or the
// source was torn down undispatched with the loop; it is the one place
// to reclaim whatever userdata refers to.
func (a *API) Once(cb OnceCB, destroy DeferEventDestroyCB, userdata uintptr) {
	e := a.DeferNew(a, func(a *API, e *DeferSource, ud uintptr) {
		cb(a, ud)
		a.DeferFree(e)
	}, userdata)
	if destroy != nil {
		a.DeferSetDestroy(e, destroy)
	}
}

func (m *Mainloop) buildAPI() *API {
	return &API{
		IONew:        apiIONew,
		IOEnable:     apiIOEnable,
		IOFree:       apiIOFree,
		IOSetDestroy: apiIOSetDestroy,

		TimeNew:        apiTimeNew,
		TimeRestart:    apiTimeRestart,
		TimeFree:       apiTimeFree,
		TimeSetDestroy: apiTimeSetDestroy,

		DeferNew:        apiDeferNew,
		DeferEnable:     apiDeferEnable,
		DeferFree:       apiDeferFree,
		DeferSetDestroy: apiDeferSetDestroy,

		Quit: apiQuit,

		ml: m,
	}
}

// API returns the loop's vtable. The table is owned by the loop; do not
// use it after the loop has been freed.
func (m *Mainloop) API() *API {
	return m.api
}

func apiQuit(a *API, retval int) {
	a.ml.Quit(retval)
}
