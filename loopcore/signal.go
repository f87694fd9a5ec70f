package loopcore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// UNIX signal delivery is a process-wide resource, so unlike the other
// event sources the signal subsystem is explicit global state, bound to
// exactly one loop's API at a time via SignalInit/SignalDone.

// ErrSignalsAlreadyInit indicates SignalInit was called while the
// subsystem is already bound to a loop.
var ErrSignalsAlreadyInit = errors.New("signal subsystem already initialized")

// ErrSignalsNotInit indicates a signal call before SignalInit.
var ErrSignalsNotInit = errors.New("signal subsystem not initialized")

// ErrSignalTaken indicates a handler is already registered for the
// requested signal number.
var ErrSignalTaken = errors.New("signal already has a handler")

// SignalCB is invoked on the loop goroutine when a watched signal is
// delivered. sig is the signal number.
type SignalCB func(a *API, e *SignalSource, sig int, userdata uintptr)

// SignalSource is a registration for one UNIX signal number.
type SignalSource struct {
	sig      int
	cb       SignalCB
	userdata uintptr
	dead     bool
}

// Sig returns the signal number this source watches.
func (e *SignalSource) Sig() int {
	return e.sig
}

type signalState struct {
	api     *API
	pipeR   int
	pipeW   int
	io      *IOSource
	events  map[int]*SignalSource
	ch      chan os.Signal
	stopped chan struct{}
}

var (
	sigMu    sync.Mutex
	sigState *signalState
)

// SignalInit binds the signal subsystem to the given loop API. Delivered
// signals are forwarded through a pipe watched by an IO source on that
// loop, so handlers always run as part of the loop's dispatch phase.
// Call at most once per process lifetime per loop; a second call without
// an intervening SignalDone fails.
func SignalInit(a *API) error {
	sigMu.Lock()
	defer sigMu.Unlock()

	if sigState != nil {
		return ErrSignalsAlreadyInit
	}

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return fmt.Errorf("create signal pipe: %w", err)
	}

	st := &signalState{
		api:     a,
		pipeR:   p[0],
		pipeW:   p[1],
		events:  make(map[int]*SignalSource),
		ch:      make(chan os.Signal, 16),
		stopped: make(chan struct{}),
	}
	st.io = a.IONew(a, st.pipeR, IOInput, signalPipeCB, 0)

	go st.forward()
	sigState = st

	logrus.WithFields(logrus.Fields{
		"function": "SignalInit",
		"pipe_r":   st.pipeR,
		"pipe_w":   st.pipeW,
	}).Debug("Signal subsystem bound to main loop")

	return nil
}

// SignalDone tears the subsystem down: remaining signal sources are
// freed, OS delivery is restored to defaults, and the pipe and its IO
// source are released.
func SignalDone() {
	sigMu.Lock()
	st := sigState
	sigState = nil
	sigMu.Unlock()

	if st == nil {
		return
	}

	signal.Stop(st.ch)
	close(st.stopped)

	for _, e := range st.events {
		e.dead = true
	}
	st.api.IOFree(st.io)
	_ = unix.Close(st.pipeR)
	_ = unix.Close(st.pipeW)

	logrus.WithFields(logrus.Fields{
		"function": "SignalDone",
	}).Debug("Signal subsystem torn down")
}

// SignalNew registers a handler for one signal number. At most one
// handler may exist per number.
func SignalNew(sig int, cb SignalCB, userdata uintptr) (*SignalSource, error) {
	sigMu.Lock()
	defer sigMu.Unlock()

	if sigState == nil {
		return nil, ErrSignalsNotInit
	}
	if _, taken := sigState.events[sig]; taken {
		return nil, ErrSignalTaken
	}

	e := &SignalSource{sig: sig, cb: cb, userdata: userdata}
	sigState.events[sig] = e
	signal.Notify(sigState.ch, unix.Signal(sig))
	return e, nil
}

// SignalFree removes a handler and restores default OS disposition for
// its signal number.
func SignalFree(e *SignalSource) {
	if e.dead {
		panic("loopcore: double free of signal source")
	}
	e.dead = true

	sigMu.Lock()
	defer sigMu.Unlock()
	if sigState == nil {
		return
	}
	delete(sigState.events, e.sig)
	signal.Reset(unix.Signal(e.sig))
}

// forward moves signal numbers from the OS notification channel into the
// loop's pipe. A 4-byte write per signal keeps pipe writes atomic.
func (st *signalState) forward() {
	var buf [4]byte
	for {
		select {
		case s := <-st.ch:
			sig, ok := s.(unix.Signal)
			if !ok {
				continue
			}
			binary.LittleEndian.PutUint32(buf[:], uint32(sig))
			_, _ = unix.Write(st.pipeW, buf[:])
		case <-st.stopped:
			return
		}
	}
}

// signalPipeCB runs on the loop goroutine, draining the pipe and
// dispatching each delivered signal to its registered source.
func signalPipeCB(a *API, _ *IOSource, fd int, _ IOFlags, _ uintptr) {
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
		for off := 0; off+4 <= n; off += 4 {
			sig := int(binary.LittleEndian.Uint32(buf[off : off+4]))
			dispatchSignal(a, sig)
		}
	}
}

func dispatchSignal(a *API, sig int) {
	sigMu.Lock()
	var e *SignalSource
	if sigState != nil {
		e = sigState.events[sig]
	}
	sigMu.Unlock()

	if e == nil || e.dead || e.cb == nil {
		return
	}
	e.cb(a, e, sig, e.userdata)
}
