package loopcore

import (
	"time"

	"github.com/opd-ai/pulseloop/ptime"
)

// TimeSource is a timer event source. A timer fires at most once per
// arming: expiry disables it until it is restarted with a new time.
type TimeSource struct {
	ml       *Mainloop
	deadline time.Time
	tv       ptime.Timeval
	enabled  bool
	dead     bool
	cb       TimeEventCB
	userdata uintptr
	destroy  TimeEventDestroyCB
}

func apiTimeNew(a *API, tv ptime.Timeval, cb TimeEventCB, userdata uintptr) *TimeSource {
	m := a.ml
	m.checkAlive()
	e := &TimeSource{
		ml:       m,
		cb:       cb,
		userdata: userdata,
	}
	e.arm(tv)
	m.timers = append(m.timers, e)
	m.Wakeup()
	return e
}

func apiTimeRestart(e *TimeSource, tv ptime.Timeval) {
	if e.dead {
		panic("loopcore: restart of freed timer source")
	}
	e.arm(tv)
	e.ml.Wakeup()
}

func apiTimeFree(e *TimeSource) {
	if e.dead {
		panic("loopcore: double free of timer source")
	}
	e.dead = true
	e.enabled = false
	if e.destroy != nil {
		e.destroy(e.ml.api, e, e.userdata)
	}
}

func apiTimeSetDestroy(e *TimeSource, cb TimeEventDestroyCB) {
	if e.dead {
		panic("loopcore: set destroy on freed timer source")
	}
	e.destroy = cb
}

func (e *TimeSource) arm(tv ptime.Timeval) {
	e.tv = tv
	if tv.USec.IsValid() {
		e.deadline = tv.Deadline()
		e.enabled = true
	} else {
		e.enabled = false
	}
}

func (m *Mainloop) nextDeadline() (time.Time, bool) {
	var next time.Time
	found := false
	for _, e := range m.timers {
		if !e.enabled || e.dead {
			continue
		}
		if !found || e.deadline.Before(next) {
			next = e.deadline
			found = true
		}
	}
	return next, found
}

func (m *Mainloop) dispatchTimers() int {
	now := time.Now()
	for _, e := range m.timers {
		if e.enabled && !e.dead && !e.deadline.After(now) {
			m.dispatchQ.Add(e)
		}
	}

	n := 0
	for m.dispatchQ.Length() > 0 {
		e := m.dispatchQ.Remove().(*TimeSource)
		if e.dead || !e.enabled || m.quit {
			continue
		}
		// Disable before invoking: a timer only fires again if the
		// callback (or anyone else) restarts it.
		e.enabled = false
		if e.cb != nil {
			e.cb(m.api, e, e.tv, e.userdata)
		}
		n++
	}
	return n
}
