package pulseloop

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/pulseloop/callbacks"
	"github.com/opd-ai/pulseloop/loopcore"
)

// SignalEvent is an owning wrapper over a UNIX signal event source. The
// callback fires on the loop's dispatch goroutine each time the watched
// signal is delivered, receiving the signal number. Keep the wrapper
// alive for as long as the handler should exist, and call Free when
// done.
//
// Signal delivery is a process-wide resource: a loop must have the
// signal subsystem bound to it with InitSignals before signal events
// can be created, and at most one handler may exist per signal number.
type SignalEvent struct {
	core    *loopcore.SignalSource
	savedCB signalCb
	freed   bool
}

// NewSignalEvent registers a handler for one signal number with the
// loop the signal subsystem is bound to. On registration failure the
// boxed closure is released before the error is returned.
func NewSignalEvent(sig int, callback SignalEventCallback) (*SignalEvent, error) {
	saved := callbacks.NewMultiUse[func(int), loopcore.SignalCB](func(s int) { callback(s) })
	cbFn, cbData := saved.CapiParams(signalTrampoline)

	core, err := loopcore.SignalNew(sig, cbFn, cbData)
	if err != nil {
		saved.Drop()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewSignalEvent",
		"signal":   sig,
	}).Debug("Signal event registered")

	return &SignalEvent{core: core, savedCB: saved}, nil
}

// Sig returns the signal number this event watches.
func (e *SignalEvent) Sig() int {
	return e.core.Sig()
}

// Free deregisters the handler, then releases the saved closure.
func (e *SignalEvent) Free() {
	if e.freed {
		return
	}
	e.freed = true
	loopcore.SignalFree(e.core)
	e.savedCB.Drop()
}
