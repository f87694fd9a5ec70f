package loopcore

import (
	"sync"
	"sync/atomic"
)

// OperationState is the lifecycle state of an asynchronous operation.
type OperationState uint8

const (
	// OperationRunning indicates the operation is still in progress.
	OperationRunning OperationState = iota
	// OperationDone indicates the operation completed.
	OperationDone
	// OperationCancelled indicates the operation was cancelled client-side.
	OperationCancelled
)

func (s OperationState) String() string {
	switch s {
	case OperationRunning:
		return "running"
	case OperationDone:
		return "done"
	case OperationCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// OperationNotifyCB is invoked whenever an operation's state changes.
type OperationNotifyCB func(o *Operation, userdata uintptr)

// Operation is the refcounted object returned by request-issuing calls.
// The issuing side holds a reference and resolves the operation with
// Done; callers wrap further references around it through the root
// package's Operation type.
type Operation struct {
	refs int32

	mu            sync.Mutex
	state         OperationState
	stateCB       OperationNotifyCB
	stateUserdata uintptr
}

// NewOperation allocates an operation in the Running state with a
// single reference, owned by the issuing side.
func NewOperation() *Operation {
	return &Operation{refs: 1}
}

// Ref takes an additional reference.
func (o *Operation) Ref() {
	atomic.AddInt32(&o.refs, 1)
}

// Unref releases one reference. Releasing more references than were
// taken is a programming error and panics.
func (o *Operation) Unref() {
	if atomic.AddInt32(&o.refs, -1) < 0 {
		panic("loopcore: operation reference count underflow")
	}
}

// Refs returns the current reference count.
func (o *Operation) Refs() int {
	return int(atomic.LoadInt32(&o.refs))
}

// State returns the operation's current state. Valid at any time.
func (o *Operation) State() OperationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Cancel moves a running operation to Cancelled. The issuing side's
// work may still complete; cancellation only guarantees the completion
// callback will not be invoked again.
func (o *Operation) Cancel() {
	o.setState(OperationCancelled)
}

// Done moves a running operation to Done. Called by the issuing side on
// completion.
func (o *Operation) Done() {
	o.setState(OperationDone)
}

// SetStateCallback registers (or, with a nil cb, clears) a notification
// invoked on every state change, including cancellation.
func (o *Operation) SetStateCallback(cb OperationNotifyCB, userdata uintptr) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stateCB = cb
	o.stateUserdata = userdata
}

// Cancelled reports whether the completion callback has been suppressed.
// Issuing sides consult this before firing their completion path.
func (o *Operation) Cancelled() bool {
	return o.State() == OperationCancelled
}

func (o *Operation) setState(s OperationState) {
	o.mu.Lock()
	if o.state != OperationRunning {
		o.mu.Unlock()
		return
	}
	o.state = s
	cb := o.stateCB
	userdata := o.stateUserdata
	o.mu.Unlock()

	if cb != nil {
		cb(o, userdata)
	}
}
