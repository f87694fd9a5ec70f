package pulseloop

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/opd-ai/pulseloop/callbacks"
	"github.com/opd-ai/pulseloop/loopcore"
)

func TestSignalEventDeliversSignalNumber(t *testing.T) {
	m := newLoop(t)
	base := callbacks.Live()

	if err := m.InitSignals(); err != nil {
		t.Fatalf("InitSignals: %v", err)
	}
	defer m.SignalsDone()

	received := 0
	e, err := NewSignalEvent(int(unix.SIGUSR1), func(sig int) { received = sig })
	if err != nil {
		t.Fatalf("NewSignalEvent: %v", err)
	}

	if e.Sig() != int(unix.SIGUSR1) {
		t.Errorf("Sig() = %d, want %d", e.Sig(), int(unix.SIGUSR1))
	}

	if err := unix.Kill(unix.Getpid(), unix.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}

	// Delivery crosses a forwarding goroutine, so give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for received == 0 && time.Now().Before(deadline) {
		if _, err := m.Iterate(false); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if received != int(unix.SIGUSR1) {
		t.Fatalf("received signal %d, want %d", received, int(unix.SIGUSR1))
	}

	// One handler per signal number at a time.
	if _, err := NewSignalEvent(int(unix.SIGUSR1), func(int) {}); !errors.Is(err, loopcore.ErrSignalTaken) {
		t.Errorf("duplicate registration error = %v, want ErrSignalTaken", err)
	}

	e.Free()
	if got := callbacks.Live(); got != base {
		t.Errorf("live closures after Free = %d, want %d", got, base)
	}

	// The number is registerable again once the handler is gone.
	e2, err := NewSignalEvent(int(unix.SIGUSR1), func(int) {})
	if err != nil {
		t.Fatalf("re-registration after free: %v", err)
	}
	e2.Free()
}

func TestNewSignalEventWithoutInit(t *testing.T) {
	if _, err := NewSignalEvent(int(unix.SIGUSR2), func(int) {}); !errors.Is(err, loopcore.ErrSignalsNotInit) {
		t.Errorf("error = %v, want ErrSignalsNotInit", err)
	}
}
