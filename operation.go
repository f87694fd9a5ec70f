package pulseloop

import (
	"github.com/opd-ai/pulseloop/callbacks"
	"github.com/opd-ai/pulseloop/loopcore"
)

// OperationState re-exports the loop core's operation lifecycle state.
type OperationState = loopcore.OperationState

// Operation lifecycle states.
const (
	OperationRunning   = loopcore.OperationRunning
	OperationDone      = loopcore.OperationDone
	OperationCancelled = loopcore.OperationCancelled
)

// Operation wraps an asynchronous operation object issued by a
// request-making call.
//
// The two constructors differ only in drop behaviour. A strong wrapper
// owns one core reference and releases it on Free, exactly once. A weak
// wrapper is built around a handle the issuing side still owns,
// typically for the duration of a callback invocation, and never
// releases it. The distinction is fixed at construction so misuse is a
// choice of constructor, not a flag to get wrong later.
type Operation struct {
	core    *loopcore.Operation
	weak    bool
	stateCB stateNotifyCb
	freed   bool
}

// OperationFromCore wraps an operation handle, assuming ownership of
// the reference the issuing call returned. Free releases it.
// Panics on a nil handle: creation calls never legitimately return one.
func OperationFromCore(core *loopcore.Operation) *Operation {
	if core == nil {
		panic("pulseloop: operation constructed from nil handle")
	}
	return &Operation{core: core}
}

// OperationFromCoreWeak wraps an operation handle without taking a
// reference, for use inside callbacks where the issuing side still owns
// the handle. Free never releases the core reference.
// Panics on a nil handle.
func OperationFromCoreWeak(core *loopcore.Operation) *Operation {
	if core == nil {
		panic("pulseloop: operation constructed from nil handle")
	}
	return &Operation{core: core, weak: true}
}

// Cancel asks that the operation's completion callback never fire
// again. The issuing side's work may still run to completion. Never
// call this from within the execution of that same operation's
// callback.
func (o *Operation) Cancel() {
	o.core.Cancel()
}

// State returns the operation's current state. Valid at any time.
func (o *Operation) State() OperationState {
	return o.core.State()
}

// SetStateCallback registers a notification invoked on every state
// change, including cancellation; a nil cb clears it. Replacing an
// existing callback releases the previous closure.
func (o *Operation) SetStateCallback(cb func()) {
	var next stateNotifyCb
	if cb != nil {
		next = newStateNotifyCb(cb)
	}
	o.stateCB.Replace(next)
	cbFn, cbData := o.stateCB.CapiParams(operationNotifyTrampoline)
	o.core.SetStateCallback(cbFn, cbData)
}

// Free tears the wrapper down: any registered state callback is
// deregistered and its closure released, and (for strong wrappers
// only) the core reference is released, exactly once. Idempotent.
func (o *Operation) Free() {
	if o.freed {
		return
	}
	o.freed = true

	if o.stateCB.IsSet() {
		o.core.SetStateCallback(nil, 0)
		o.stateCB.Drop()
	}
	if !o.weak {
		o.core.Unref()
	}
}

func newStateNotifyCb(cb func()) stateNotifyCb {
	return callbacks.NewMultiUse[func(), loopcore.OperationNotifyCB](cb)
}
