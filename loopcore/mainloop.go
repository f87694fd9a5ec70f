package loopcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ErrQuit is returned by Prepare and Iterate once Quit has been
// requested; Run treats it as normal termination. The quit return value
// is available from Retval.
var ErrQuit = errors.New("main loop quit requested")

// ErrPollAborted indicates the poll phase failed at the system level.
var ErrPollAborted = errors.New("poll failed")

// iteration phases; Prepare, Poll and Dispatch must be called in order.
type iterationState uint8

const (
	statePassive iterationState = iota
	statePrepared
	statePolled
)

// PollFunc is a replacement poll implementation. The threaded loop in
// the root package installs one that releases its lock around the
// actual system call.
type PollFunc func(fds []unix.PollFd, timeout int, userdata uintptr) (int, error)

// Mainloop is the engine behind both loop flavours: sets of deferred,
// timer and IO sources, iterated with a prepare/poll/dispatch cycle.
type Mainloop struct {
	api *API

	defers []*DeferSource
	timers []*TimeSource
	ios    []*IOSource

	// dispatchQ holds the sources due in the current dispatch phase.
	// Collecting them up front lets callbacks create or free sources
	// without invalidating iteration state.
	dispatchQ *queue.Queue

	// wakeup pipe, always part of the poll set.
	wakeupR int
	wakeupW int

	pollFn       PollFunc
	pollUserdata uintptr
	pollFds      []unix.PollFd
	pollTimeout  int // milliseconds, -1 blocks

	state  iterationState
	quit   bool
	retval int
	dead   bool
}

// New allocates a main loop engine with its wakeup pipe.
func New() (*Mainloop, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("create wakeup pipe: %w", err)
	}

	m := &Mainloop{
		dispatchQ: queue.New(),
		wakeupR:   p[0],
		wakeupW:   p[1],
	}
	m.api = m.buildAPI()

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"wakeup_r": m.wakeupR,
		"wakeup_w": m.wakeupW,
	}).Debug("Main loop engine created")

	return m, nil
}

// SupportsRtclock reports whether this loop accepts monotonic timer
// values without conversion. The native engine always does.
func (m *Mainloop) SupportsRtclock() bool {
	return true
}

// SetPollFunc replaces the poll implementation. userdata is forwarded to
// fn on every call.
func (m *Mainloop) SetPollFunc(fn PollFunc, userdata uintptr) {
	m.pollFn = fn
	m.pollUserdata = userdata
}

// Prepare begins an iteration: scavenges dead sources and computes the
// poll set and timeout. timeoutUsec caps the subsequent poll in
// microseconds; a negative value requests blocking behaviour. Returns
// ErrQuit if quit has been requested.
func (m *Mainloop) Prepare(timeoutUsec int) error {
	m.checkAlive()
	if m.quit {
		return ErrQuit
	}
	if m.state != statePassive {
		panic("loopcore: Prepare called out of sequence")
	}

	m.scavenge()

	// Timeout resolution: an enabled deferred source forces an
	// immediate dispatch; otherwise the nearest timer deadline applies,
	// capped by the caller's limit.
	timeout := -1
	if timeoutUsec >= 0 {
		timeout = (timeoutUsec + 999) / 1000
	}
	if m.anyDeferEnabled() {
		timeout = 0
	} else if next, ok := m.nextDeadline(); ok {
		ms := int(time.Until(next).Milliseconds())
		if ms < 0 {
			ms = 0
		}
		if timeout < 0 || ms < timeout {
			timeout = ms
		}
	}
	m.pollTimeout = timeout

	m.pollFds = m.pollFds[:0]
	m.pollFds = append(m.pollFds, unix.PollFd{Fd: int32(m.wakeupR), Events: unix.POLLIN})
	for _, e := range m.ios {
		if e.dead || e.events == IONull {
			e.pollIndex = -1
			continue
		}
		e.pollIndex = len(m.pollFds)
		m.pollFds = append(m.pollFds, unix.PollFd{Fd: int32(e.fd), Events: e.events.pollEvents()})
	}

	m.state = statePrepared
	return nil
}

// Poll executes the previously prepared poll, honouring any installed
// replacement poll function.
func (m *Mainloop) Poll() (int, error) {
	m.checkAlive()
	if m.state != statePrepared {
		panic("loopcore: Poll called without Prepare")
	}
	m.state = statePolled

	var (
		n   int
		err error
	)
	for {
		if m.pollFn != nil {
			n, err = m.pollFn(m.pollFds, m.pollTimeout, m.pollUserdata)
		} else {
			n, err = unix.Poll(m.pollFds, m.pollTimeout)
		}
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err != nil {
		m.state = statePassive
		return 0, fmt.Errorf("%w: %v", ErrPollAborted, err)
	}
	return n, nil
}

// Dispatch fires the callbacks of every source due after the poll:
// deferred sources first, then expired timers, then IO. Returns the
// number of sources dispatched.
func (m *Mainloop) Dispatch() (int, error) {
	m.checkAlive()
	if m.state != statePolled {
		panic("loopcore: Dispatch called without Poll")
	}
	m.state = statePassive

	m.drainWakeup()

	dispatched := 0
	dispatched += m.dispatchDefers()
	if !m.quit {
		dispatched += m.dispatchTimers()
	}
	if !m.quit {
		dispatched += m.dispatchIO()
	}
	return dispatched, nil
}

// Iterate runs one prepare/poll/dispatch cycle. If block is true the
// poll may sleep until a source is due; otherwise it returns
// immediately. Returns the number of sources dispatched, or ErrQuit.
func (m *Mainloop) Iterate(block bool) (int, error) {
	timeout := -1
	if !block {
		timeout = 0
	}
	if err := m.Prepare(timeout); err != nil {
		return 0, err
	}
	if _, err := m.Poll(); err != nil {
		return 0, err
	}
	return m.Dispatch()
}

// Run iterates until Quit is called, returning the quit value.
func (m *Mainloop) Run() (int, error) {
	for {
		if _, err := m.Iterate(true); err != nil {
			if errors.Is(err, ErrQuit) {
				return m.retval, nil
			}
			return m.retval, err
		}
	}
}

// Quit requests loop termination with the given return value and
// interrupts any in-progress poll.
func (m *Mainloop) Quit(retval int) {
	m.quit = true
	m.retval = retval
	m.Wakeup()
}

// Retval returns the value passed to Quit.
func (m *Mainloop) Retval() int {
	return m.retval
}

// Wakeup interrupts a blocking poll from another goroutine. It is the
// only Mainloop entry point safe to call without holding the loop.
func (m *Mainloop) Wakeup() {
	var b [1]byte
	// A full pipe already guarantees the poll will wake.
	_, _ = unix.Write(m.wakeupW, b[:])
}

// Free destroys the loop and every remaining source, firing destroy
// notifications. The loop and its API must not be used afterwards.
func (m *Mainloop) Free() {
	if m.dead {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Free",
		"defers":   len(m.defers),
		"timers":   len(m.timers),
		"ios":      len(m.ios),
	}).Debug("Freeing main loop engine")

	for _, e := range m.defers {
		if !e.dead {
			apiDeferFree(e)
		}
	}
	for _, e := range m.timers {
		if !e.dead {
			apiTimeFree(e)
		}
	}
	for _, e := range m.ios {
		if !e.dead {
			apiIOFree(e)
		}
	}
	m.defers, m.timers, m.ios = nil, nil, nil

	_ = unix.Close(m.wakeupR)
	_ = unix.Close(m.wakeupW)
	m.dead = true
}

func (m *Mainloop) checkAlive() {
	if m.dead {
		panic("loopcore: use of freed main loop")
	}
}

func (m *Mainloop) drainWakeup() {
	var buf [16]byte
	for {
		n, err := unix.Read(m.wakeupR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// scavenge removes sources freed during earlier dispatches. Destroy
// notifications have already fired at free time.
func (m *Mainloop) scavenge() {
	m.defers = scavengeDefers(m.defers)
	m.timers = scavengeTimers(m.timers)
	m.ios = scavengeIOs(m.ios)
}

func scavengeDefers(in []*DeferSource) []*DeferSource {
	out := in[:0]
	for _, e := range in {
		if !e.dead {
			out = append(out, e)
		}
	}
	return out
}

func scavengeTimers(in []*TimeSource) []*TimeSource {
	out := in[:0]
	for _, e := range in {
		if !e.dead {
			out = append(out, e)
		}
	}
	return out
}

func scavengeIOs(in []*IOSource) []*IOSource {
	out := in[:0]
	for _, e := range in {
		if !e.dead {
			out = append(out, e)
		}
	}
	return out
}
