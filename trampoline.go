package pulseloop

import (
	"github.com/opd-ai/pulseloop/callbacks"
	"github.com/opd-ai/pulseloop/loopcore"
	"github.com/opd-ai/pulseloop/ptime"
)

// Trampolines are the only code that turns opaque userdata back into a
// typed closure. Each matches the exact callback prototype the loop
// core invokes for its event kind, borrows the closure with
// callbacks.Get, and never frees it; the owning wrapper does that when
// it is itself freed. Once closures have no owning wrapper, so their
// reclamation rides the anonymous source's destroy notification
// instead, which the core fires exactly once whether or not the
// callback ever ran.

func deferEventTrampoline(_ *loopcore.API, e *loopcore.DeferSource, userdata uintptr) {
	cb := callbacks.Get[func(*loopcore.DeferSource)](userdata)
	cb(e)
}

func timeEventTrampoline(_ *loopcore.API, e *loopcore.TimeSource, _ ptime.Timeval, userdata uintptr) {
	cb := callbacks.Get[func(*loopcore.TimeSource)](userdata)
	cb(e)
}

func ioEventTrampoline(_ *loopcore.API, e *loopcore.IOSource, fd int, events IOFlags, userdata uintptr) {
	cb := callbacks.Get[func(*loopcore.IOSource, int, IOFlags)](userdata)
	cb(e, fd, events)
}

func signalTrampoline(_ *loopcore.API, _ *loopcore.SignalSource, sig int, userdata uintptr) {
	cb := callbacks.Get[func(int)](userdata)
	cb(sig)
}

func operationNotifyTrampoline(_ *loopcore.Operation, userdata uintptr) {
	cb := callbacks.Get[func()](userdata)
	cb()
}

func onceTrampoline(_ *loopcore.API, userdata uintptr) {
	cb := callbacks.Get[func()](userdata)
	cb()
}

func onceDestroyTrampoline(_ *loopcore.API, _ *loopcore.DeferSource, userdata uintptr) {
	callbacks.Handle(userdata).Destroy()
}
