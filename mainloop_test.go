package pulseloop

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/opd-ai/pulseloop/callbacks"
	"github.com/opd-ai/pulseloop/ptime"
)

func newLoop(t *testing.T) *Mainloop {
	t.Helper()
	m, err := New()
	if err != nil {
		t.Fatalf("Failed to create main loop: %v", err)
	}
	t.Cleanup(m.Free)
	return m
}

func TestDeferEventFiresOncePerIteration(t *testing.T) {
	m := newLoop(t)
	base := callbacks.Live()

	fired := 0
	e, err := m.NewDeferEvent(func(_ *DeferEventRef) { fired++ })
	if err != nil {
		t.Fatalf("NewDeferEvent: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if _, err := m.Iterate(false); err != nil {
			t.Fatalf("Iterate %d: %v", i, err)
		}
		if fired != i {
			t.Fatalf("after iteration %d fired = %d, want %d", i, fired, i)
		}
	}

	e.Free()
	if _, err := m.Iterate(false); err != nil {
		t.Fatalf("Iterate after free: %v", err)
	}
	if fired != 3 {
		t.Errorf("freed defer fired: count %d, want 3", fired)
	}
	if got := callbacks.Live(); got != base {
		t.Errorf("live closures after free = %d, want %d", got, base)
	}
}

func TestDeferEventDisableFromCallback(t *testing.T) {
	m := newLoop(t)

	fired := 0
	e, err := m.NewDeferEvent(func(ref *DeferEventRef) {
		fired++
		ref.Disable()
	})
	if err != nil {
		t.Fatalf("NewDeferEvent: %v", err)
	}
	defer e.Free()

	for i := 0; i < 3; i++ {
		if _, err := m.Iterate(false); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
	}
	if fired != 1 {
		t.Errorf("self-disabling defer fired %d times, want 1", fired)
	}

	e.Enable()
	if _, err := m.Iterate(false); err != nil {
		t.Fatalf("Iterate after enable: %v", err)
	}
	if fired != 2 {
		t.Errorf("after re-enable fired = %d, want 2", fired)
	}
}

func TestDeferEventFreeIdempotent(t *testing.T) {
	m := newLoop(t)
	base := callbacks.Live()

	e, err := m.NewDeferEvent(func(_ *DeferEventRef) {})
	if err != nil {
		t.Fatalf("NewDeferEvent: %v", err)
	}

	e.Free()
	e.Free()
	if got := callbacks.Live(); got != base {
		t.Errorf("live closures after double free = %d, want %d", got, base)
	}
}

func TestTimerEventFiresOncePerArm(t *testing.T) {
	m := newLoop(t)

	fired := 0
	e, err := m.NewTimerEvent(ptime.UnixNow(), func(_ *TimeEventRef) { fired++ })
	if err != nil {
		t.Fatalf("NewTimerEvent: %v", err)
	}
	defer e.Free()

	deadline := time.Now().Add(2 * time.Second)
	for fired == 0 && time.Now().Before(deadline) {
		if _, err := m.Iterate(false); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if fired != 1 {
		t.Fatalf("expired timer fired %d times, want 1", fired)
	}

	// Expired timers stay quiet until re-armed.
	for i := 0; i < 3; i++ {
		if _, err := m.Iterate(false); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
	}
	if fired != 1 {
		t.Errorf("timer fired %d times without restart, want 1", fired)
	}

	e.Restart(ptime.UnixNow())
	deadline = time.Now().Add(2 * time.Second)
	for fired == 1 && time.Now().Before(deadline) {
		if _, err := m.Iterate(false); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if fired != 2 {
		t.Errorf("restarted timer fired %d times total, want 2", fired)
	}
}

func TestTimerEventRestartFromCallback(t *testing.T) {
	m := newLoop(t)

	fired := 0
	e, err := m.NewTimerEventRT(ptime.MonotonicNow(), func(ref *TimeEventRef) {
		fired++
		if fired < 3 {
			ref.RestartRT(ptime.MonotonicNow())
		}
	})
	if err != nil {
		t.Fatalf("NewTimerEventRT: %v", err)
	}
	defer e.Free()

	deadline := time.Now().Add(2 * time.Second)
	for fired < 3 && time.Now().Before(deadline) {
		if _, err := m.Iterate(false); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if fired != 3 {
		t.Errorf("self-restarting timer fired %d times, want 3", fired)
	}
}

func TestNewTimerEventRTPanicsOnInvalidTime(t *testing.T) {
	m := newLoop(t)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid monotonic time")
		}
	}()
	m.NewTimerEventRT(ptime.MonotonicTS(ptime.MicroSecondsInvalid), func(_ *TimeEventRef) {})
}

func TestIOEventReportsReadable(t *testing.T) {
	m := newLoop(t)

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var gotFd int
	var gotFlags IOFlags
	fired := 0
	e, err := m.NewIOEvent(fds[0], IOInput, func(ref *IOEventRef, fd int, events IOFlags) {
		fired++
		gotFd = fd
		gotFlags = events
		ref.Disable()
	})
	if err != nil {
		t.Fatalf("NewIOEvent: %v", err)
	}
	defer e.Free()

	if _, err := m.Iterate(false); err != nil {
		t.Fatalf("Iterate before write: %v", err)
	}
	if fired != 0 {
		t.Fatalf("IO event fired %d times on an empty pipe", fired)
	}

	if _, err := unix.Write(fds[1], []byte{1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := m.Iterate(true); err != nil {
		t.Fatalf("Iterate after write: %v", err)
	}

	if fired != 1 {
		t.Fatalf("IO event fired %d times, want 1", fired)
	}
	if gotFd != fds[0] {
		t.Errorf("callback fd = %d, want %d", gotFd, fds[0])
	}
	if gotFlags&IOInput == 0 {
		t.Errorf("callback events = %v, want input set", gotFlags)
	}
}

func TestOnceRunsExactlyOnce(t *testing.T) {
	m := newLoop(t)
	base := callbacks.Live()

	fired := 0
	m.Once(func() { fired++ })

	for i := 0; i < 3; i++ {
		if _, err := m.Iterate(false); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
	}
	if fired != 1 {
		t.Errorf("Once callback fired %d times, want 1", fired)
	}
	if got := callbacks.Live(); got != base {
		t.Errorf("live closures after Once = %d, want %d", got, base)
	}
}

func TestOnceUnfiredReclaimedOnFree(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	base := callbacks.Live()

	fired := 0
	m.Once(func() { fired++ })

	// Freeing the loop without iterating tears the anonymous source
	// down undispatched; the boxed closure must still come back.
	m.Free()

	if fired != 0 {
		t.Errorf("undispatched Once callback fired %d times", fired)
	}
	if got := callbacks.Live(); got != base {
		t.Errorf("live closures after Free = %d, want %d", got, base)
	}
}

func TestRunReturnsQuitValue(t *testing.T) {
	m := newLoop(t)

	e, err := m.NewDeferEvent(func(_ *DeferEventRef) { m.Quit(7) })
	if err != nil {
		t.Fatalf("NewDeferEvent: %v", err)
	}
	defer e.Free()

	retval, err := m.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if retval != 7 {
		t.Errorf("Run retval = %d, want 7", retval)
	}
	if m.Retval() != 7 {
		t.Errorf("Retval() = %d, want 7", m.Retval())
	}

	if _, err := m.Iterate(false); !errors.Is(err, ErrQuit) {
		t.Errorf("Iterate after quit: err = %v, want ErrQuit", err)
	}
}

func TestPrepareRejectsOversizedTimeout(t *testing.T) {
	m := newLoop(t)

	if err := m.Prepare(ptime.MicroSeconds(1) << 40); !errors.Is(err, ErrTimeoutTooLarge) {
		t.Errorf("Prepare error = %v, want ErrTimeoutTooLarge", err)
	}

	// With a defer source pending the blocking sentinel still yields an
	// immediate poll.
	e, err := m.NewDeferEvent(func(_ *DeferEventRef) {})
	if err != nil {
		t.Fatalf("NewDeferEvent: %v", err)
	}
	defer e.Free()

	if err := m.Prepare(ptime.MicroSecondsInvalid); err != nil {
		t.Errorf("Prepare with blocking sentinel: %v", err)
	}
	if _, err := m.Poll(); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if _, err := m.Dispatch(); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}
