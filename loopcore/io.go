package loopcore

import "golang.org/x/sys/unix"

// IOFlags describe the IO conditions an IO source watches or reports.
type IOFlags uint8

const (
	// IONull watches nothing; an IO source with IONull is parked.
	IONull IOFlags = 0
	// IOInput reports readability.
	IOInput IOFlags = 1 << (iota - 1)
	// IOOutput reports writability.
	IOOutput
	// IOHangup reports peer hangup. Always reported, never requested.
	IOHangup
	// IOError reports an error condition. Always reported, never requested.
	IOError
)

func (f IOFlags) pollEvents() int16 {
	var ev int16
	if f&IOInput != 0 {
		ev |= unix.POLLIN
	}
	if f&IOOutput != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func flagsFromRevents(re int16) IOFlags {
	var f IOFlags
	if re&unix.POLLIN != 0 {
		f |= IOInput
	}
	if re&unix.POLLOUT != 0 {
		f |= IOOutput
	}
	if re&unix.POLLHUP != 0 {
		f |= IOHangup
	}
	if re&(unix.POLLERR|unix.POLLNVAL) != 0 {
		f |= IOError
	}
	return f
}

// IOSource is an IO event source bound to one file descriptor.
type IOSource struct {
	ml        *Mainloop
	fd        int
	events    IOFlags
	pollIndex int
	dead      bool
	cb        IOEventCB
	userdata  uintptr
	destroy   IOEventDestroyCB
}

func apiIONew(a *API, fd int, events IOFlags, cb IOEventCB, userdata uintptr) *IOSource {
	m := a.ml
	m.checkAlive()
	e := &IOSource{
		ml:        m,
		fd:        fd,
		events:    events,
		pollIndex: -1,
		cb:        cb,
		userdata:  userdata,
	}
	m.ios = append(m.ios, e)
	m.Wakeup()
	return e
}

func apiIOEnable(e *IOSource, events IOFlags) {
	if e.dead {
		panic("loopcore: enable of freed IO source")
	}
	e.events = events
	e.ml.Wakeup()
}

func apiIOFree(e *IOSource) {
	if e.dead {
		panic("loopcore: double free of IO source")
	}
	e.dead = true
	e.events = IONull
	if e.destroy != nil {
		e.destroy(e.ml.api, e, e.userdata)
	}
}

func apiIOSetDestroy(e *IOSource, cb IOEventDestroyCB) {
	if e.dead {
		panic("loopcore: set destroy on freed IO source")
	}
	e.destroy = cb
}

func (m *Mainloop) dispatchIO() int {
	for _, e := range m.ios {
		if e.dead || e.pollIndex < 0 || e.pollIndex >= len(m.pollFds) {
			continue
		}
		if m.pollFds[e.pollIndex].Revents != 0 {
			m.dispatchQ.Add(e)
		}
	}

	n := 0
	for m.dispatchQ.Length() > 0 {
		e := m.dispatchQ.Remove().(*IOSource)
		// An earlier callback in this round may have disabled or freed
		// this source; honour that.
		if e.dead || e.events == IONull || m.quit {
			continue
		}
		flags := flagsFromRevents(m.pollFds[e.pollIndex].Revents)
		// Report only conditions still being watched. Hangup and error
		// are always reported, never requested.
		flags &= e.events | IOHangup | IOError
		if e.cb != nil && flags != IONull {
			e.cb(m.api, e, e.fd, flags, e.userdata)
			n++
		}
	}
	return n
}
