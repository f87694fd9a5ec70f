package pulseloop

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/opd-ai/pulseloop/loopcore"
	"github.com/opd-ai/pulseloop/ptime"
)

// ThreadedMainloop runs the standard dispatch cycle on a background
// goroutine, so synchronous code can use the asynchronous API without
// iterating a loop itself.
//
// Locking discipline: the loop goroutine holds the loop lock except
// while polling. Any other goroutine must hold the lock, via Lock and
// Unlock, around every call that touches an object attached to this
// loop: creating, enabling, disabling, restarting or freeing an event
// source, issuing or cancelling operations, and so on. Code running
// inside a callback is already on the loop goroutine with the lock
// implicitly held and must not lock again around those calls. The lock
// is recursive: balanced Lock/Unlock pairs from one goroutine nest
// safely.
//
// Wait, Signal and Accept turn callback-based completion into blocking
// waits: a caller holding the lock parks in Wait; a callback calls
// Signal to release it, optionally waiting for Accept before
// continuing.
type ThreadedMainloop struct {
	inner *inner
	lock  *recursiveMutex

	cond           *sync.Cond // signalled by Signal, waited on in Wait
	acceptCond     *sync.Cond // signalled by Accept
	pendingAccepts int

	running  bool
	threadID atomic.Uint64
	done     chan struct{}
	name     string
}

// NewThreaded allocates a threaded main loop. The background goroutine
// is not started until Start.
func NewThreaded() (*ThreadedMainloop, error) {
	in, err := newInner()
	if err != nil {
		return nil, err
	}

	m := &ThreadedMainloop{
		inner: in,
		lock:  newRecursiveMutex(),
	}
	m.cond = sync.NewCond(m.lock)
	m.acceptCond = sync.NewCond(m.lock)

	logrus.WithFields(logrus.Fields{
		"function": "NewThreaded",
	}).Debug("Threaded main loop created")

	return m, nil
}

// SetName labels the loop goroutine in log output.
func (m *ThreadedMainloop) SetName(name string) {
	m.name = name
}

// Start launches the background goroutine. It returns once the
// goroutine is running and holds the loop lock. A loop that has been
// stopped cannot be started again.
func (m *ThreadedMainloop) Start() error {
	if m.running {
		return ErrAlreadyRunning
	}

	// The loop goroutine owns the lock for the whole run, releasing it
	// only for the duration of each poll so other goroutines can get
	// work in between iterations.
	m.inner.core.SetPollFunc(func(fds []unix.PollFd, timeout int, _ uintptr) (int, error) {
		m.lock.Unlock()
		n, err := unix.Poll(fds, timeout)
		m.lock.Lock()
		return n, err
	}, 0)

	m.done = make(chan struct{})
	started := make(chan struct{})

	go func() {
		m.lock.Lock()
		m.threadID.Store(gid())
		close(started)

		retval, err := m.inner.core.Run()

		m.threadID.Store(0)
		m.lock.Unlock()
		close(m.done)

		logrus.WithFields(logrus.Fields{
			"function": "Start",
			"name":     m.name,
			"retval":   retval,
			"error":    err,
		}).Debug("Threaded main loop goroutine exited")
	}()

	<-started
	m.running = true

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"name":     m.name,
	}).Debug("Threaded main loop started")

	return nil
}

// Stop terminates the background goroutine and waits for it to exit.
// Call without the lock held, and never from within the loop goroutine.
func (m *ThreadedMainloop) Stop() {
	if !m.running {
		return
	}
	if m.InThread() {
		panic("pulseloop: Stop called from within the loop goroutine")
	}

	m.lock.Lock()
	m.inner.core.Quit(0)
	m.lock.Unlock()

	<-m.done
	m.running = false

	logrus.WithFields(logrus.Fields{
		"function": "Stop",
		"name":     m.name,
	}).Debug("Threaded main loop stopped")
}

// Lock acquires the loop lock. Do not call from within the loop
// goroutine: there the lock is already implicitly held.
func (m *ThreadedMainloop) Lock() {
	m.lock.Lock()
}

// Unlock releases the loop lock.
func (m *ThreadedMainloop) Unlock() {
	m.lock.Unlock()
}

// Wait parks the calling goroutine until a callback calls Signal. The
// loop lock must be held exactly once; it is released while parked and
// reacquired before returning. Callers loop over their own predicate,
// as wakeups may be spurious or shared.
func (m *ThreadedMainloop) Wait() {
	if !m.lock.held() {
		panic("pulseloop: Wait called without the loop lock")
	}
	m.cond.Wait()
}

// Signal wakes goroutines parked in Wait. With waitForAccept set, the
// caller additionally parks until one of them calls Accept, providing
// a rendezvous for handing data out of a callback. Call with the lock
// held (implicitly so inside callbacks).
func (m *ThreadedMainloop) Signal(waitForAccept bool) {
	m.cond.Broadcast()
	if waitForAccept {
		m.pendingAccepts++
		for m.pendingAccepts > 0 {
			m.acceptCond.Wait()
		}
	}
}

// Accept releases a Signal caller parked with waitForAccept. Call with
// the lock held.
func (m *ThreadedMainloop) Accept() {
	if !m.lock.held() {
		panic("pulseloop: Accept called without the loop lock")
	}
	if m.pendingAccepts > 0 {
		m.pendingAccepts--
	}
	m.acceptCond.Signal()
}

// InThread reports whether the calling goroutine is the loop goroutine.
func (m *ThreadedMainloop) InThread() bool {
	id := m.threadID.Load()
	return id != 0 && id == gid()
}

// Retval returns the value passed to the loop's quit call.
func (m *ThreadedMainloop) Retval() int {
	return m.inner.core.Retval()
}

// API returns the loop's abstract vtable, owned by the loop. Hold the
// lock around any call through it from outside the loop goroutine.
func (m *ThreadedMainloop) API() *loopcore.API {
	return m.inner.api
}

// Free destroys the loop. Stop it first; event sources created from it
// must already be freed.
func (m *ThreadedMainloop) Free() {
	if m.running {
		m.Stop()
	}
	m.inner.core.Free()
}

// NewDeferEvent creates a deferred event source, initially enabled.
// Hold the lock when calling from outside the loop goroutine.
func (m *ThreadedMainloop) NewDeferEvent(callback DeferEventCallback) (*DeferEvent, error) {
	return newDeferEvent(m.inner, callback)
}

// NewTimerEvent creates a timer event source armed with a wall-clock
// time. Hold the lock when calling from outside the loop goroutine.
func (m *ThreadedMainloop) NewTimerEvent(t ptime.UnixTS, callback TimeEventCallback) (*TimeEvent, error) {
	return newTimerEvent(m.inner, ptime.TimevalFromUnix(t), callback)
}

// NewTimerEventRT creates a timer event source armed with a monotonic
// time. Hold the lock when calling from outside the loop goroutine.
func (m *ThreadedMainloop) NewTimerEventRT(t ptime.MonotonicTS, callback TimeEventCallback) (*TimeEvent, error) {
	if !ptime.MicroSeconds(t).IsValid() {
		panic("pulseloop: timer event with invalid monotonic time")
	}
	var tv ptime.Timeval
	tv.SetRT(t, m.inner.supportsRtclock())
	return newTimerEvent(m.inner, tv, callback)
}

// NewIOEvent creates an IO event source watching fd. Hold the lock when
// calling from outside the loop goroutine.
func (m *ThreadedMainloop) NewIOEvent(fd int, events IOFlags, callback IOEventCallback) (*IOEvent, error) {
	return newIOEvent(m.inner, fd, events, callback)
}

// Once runs cb exactly once from the loop. Hold the lock when calling
// from outside the loop goroutine.
func (m *ThreadedMainloop) Once(cb func()) {
	once(m.inner, cb)
}

// InitSignals binds the process-wide signal subsystem to this loop.
// Hold the lock when calling from outside the loop goroutine.
func (m *ThreadedMainloop) InitSignals() error {
	return loopcore.SignalInit(m.inner.api)
}

// SignalsDone tears the signal subsystem down.
func (m *ThreadedMainloop) SignalsDone() {
	loopcore.SignalDone()
}
