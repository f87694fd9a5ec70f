package loopcore

// DeferSource is a deferred event source: while enabled, its callback
// fires once per dispatch phase, ahead of timer and IO dispatch.
type DeferSource struct {
	ml       *Mainloop
	enabled  bool
	dead     bool
	cb       DeferEventCB
	userdata uintptr
	destroy  DeferEventDestroyCB
}

func apiDeferNew(a *API, cb DeferEventCB, userdata uintptr) *DeferSource {
	m := a.ml
	m.checkAlive()
	e := &DeferSource{
		ml:       m,
		enabled:  true, // deferred sources start enabled
		cb:       cb,
		userdata: userdata,
	}
	m.defers = append(m.defers, e)
	m.Wakeup()
	return e
}

func apiDeferEnable(e *DeferSource, enable bool) {
	if e.dead {
		panic("loopcore: enable of freed deferred source")
	}
	e.enabled = enable
	if enable {
		e.ml.Wakeup()
	}
}

func apiDeferFree(e *DeferSource) {
	if e.dead {
		panic("loopcore: double free of deferred source")
	}
	e.dead = true
	e.enabled = false
	// The destroy notification fires during the free call itself, while
	// whatever the userdata refers to is still alive.
	if e.destroy != nil {
		e.destroy(e.ml.api, e, e.userdata)
	}
}

func apiDeferSetDestroy(e *DeferSource, cb DeferEventDestroyCB) {
	if e.dead {
		panic("loopcore: set destroy on freed deferred source")
	}
	e.destroy = cb
}

func (m *Mainloop) anyDeferEnabled() bool {
	for _, e := range m.defers {
		if e.enabled && !e.dead {
			return true
		}
	}
	return false
}

func (m *Mainloop) dispatchDefers() int {
	for _, e := range m.defers {
		if e.enabled && !e.dead {
			m.dispatchQ.Add(e)
		}
	}

	n := 0
	for m.dispatchQ.Length() > 0 {
		e := m.dispatchQ.Remove().(*DeferSource)
		// An earlier callback in this round may have disabled or freed
		// this source; honour that.
		if e.dead || !e.enabled || m.quit {
			continue
		}
		if e.cb != nil {
			e.cb(m.api, e, e.userdata)
		}
		n++
	}
	return n
}
