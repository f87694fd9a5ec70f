package pulseloop

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/pulseloop/loopcore"
	"github.com/opd-ai/pulseloop/ptime"
)

// Mainloop is the standard, single-threaded main loop. Each iteration
// runs three steps (Prepare, Poll, Dispatch) either one at a time or
// through Iterate and Run. All event dispatch happens synchronously
// inside the calling goroutine, so no callback ever runs concurrently
// with anything else on this loop.
//
// The loop object is not safe for concurrent use; Wakeup is the only
// method that may be called from another goroutine.
type Mainloop struct {
	inner *inner
}

// New allocates a standard main loop.
func New() (*Mainloop, error) {
	in, err := newInner()
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
	}).Debug("Standard main loop created")

	return &Mainloop{inner: in}, nil
}

// Prepare begins an iteration, computing the poll set and timeout.
// timeout caps the subsequent poll; the invalid sentinel requests
// blocking behaviour. Returns ErrQuit once Quit has been requested, or
// ErrTimeoutTooLarge for a timeout beyond what the core accepts.
func (m *Mainloop) Prepare(timeout ptime.MicroSeconds) error {
	t := -1
	if timeout.IsValid() {
		if timeout > math.MaxInt32 {
			return ErrTimeoutTooLarge
		}
		t = int(timeout)
	}
	return m.inner.core.Prepare(t)
}

// Poll executes the previously prepared poll.
func (m *Mainloop) Poll() (uint32, error) {
	n, err := m.inner.core.Poll()
	return uint32(n), err
}

// Dispatch fires timer, deferred and IO callbacks due after the poll,
// returning the number of sources dispatched.
func (m *Mainloop) Dispatch() (uint32, error) {
	n, err := m.inner.core.Dispatch()
	return uint32(n), err
}

// Iterate runs one full iteration, blocking in poll if block is true
// and no source is due. Returns the number of sources dispatched, or
// ErrQuit.
func (m *Mainloop) Iterate(block bool) (uint32, error) {
	n, err := m.inner.core.Iterate(block)
	return uint32(n), err
}

// Run iterates until Quit is called, returning the quit value.
func (m *Mainloop) Run() (int, error) {
	return m.inner.core.Run()
}

// Quit requests loop termination with the given return value.
func (m *Mainloop) Quit(retval int) {
	m.inner.api.Quit(m.inner.api, retval)
}

// Retval returns the value passed to Quit.
func (m *Mainloop) Retval() int {
	return m.inner.core.Retval()
}

// Wakeup interrupts a blocking poll from another goroutine.
func (m *Mainloop) Wakeup() {
	m.inner.core.Wakeup()
}

// API returns the loop's abstract vtable, owned by the loop.
func (m *Mainloop) API() *loopcore.API {
	return m.inner.api
}

// Free destroys the loop. Event sources created from it must be freed
// first.
func (m *Mainloop) Free() {
	m.inner.core.Free()
}

// NewDeferEvent creates a deferred event source, initially enabled.
// The returned wrapper must stay alive for as long as the source should
// fire; Free it when done.
func (m *Mainloop) NewDeferEvent(callback DeferEventCallback) (*DeferEvent, error) {
	return newDeferEvent(m.inner, callback)
}

// NewTimerEvent creates a timer event source armed with a wall-clock
// time. The returned wrapper must stay alive for the timer to fire;
// Free it when done.
func (m *Mainloop) NewTimerEvent(t ptime.UnixTS, callback TimeEventCallback) (*TimeEvent, error) {
	return newTimerEvent(m.inner, ptime.TimevalFromUnix(t), callback)
}

// NewTimerEventRT creates a timer event source armed with a monotonic
// time, converting to wall-clock form if the loop lacks monotonic
// support. Panics on the invalid sentinel.
func (m *Mainloop) NewTimerEventRT(t ptime.MonotonicTS, callback TimeEventCallback) (*TimeEvent, error) {
	if !ptime.MicroSeconds(t).IsValid() {
		panic("pulseloop: timer event with invalid monotonic time")
	}
	var tv ptime.Timeval
	tv.SetRT(t, m.inner.supportsRtclock())
	return newTimerEvent(m.inner, tv, callback)
}

// NewIOEvent creates an IO event source watching fd for the given
// conditions.
func (m *Mainloop) NewIOEvent(fd int, events IOFlags, callback IOEventCallback) (*IOEvent, error) {
	return newIOEvent(m.inner, fd, events, callback)
}

// Once runs cb exactly once from the loop using an anonymous deferred
// event. On a threaded loop, hold the lock when calling this from
// outside the loop goroutine.
func (m *Mainloop) Once(cb func()) {
	once(m.inner, cb)
}

// InitSignals binds the process-wide signal subsystem to this loop.
// Call at most once per process lifetime per loop.
func (m *Mainloop) InitSignals() error {
	return loopcore.SignalInit(m.inner.api)
}

// SignalsDone tears the signal subsystem down.
func (m *Mainloop) SignalsDone() {
	loopcore.SignalDone()
}
