package pulseloop

import (
	"errors"

	"github.com/opd-ai/pulseloop/loopcore"
)

// ErrQuit is returned by Prepare and Iterate once Quit has been
// requested; Run treats it as normal termination.
var ErrQuit = loopcore.ErrQuit

// ErrCreateFailed indicates the loop core refused to create an event
// source.
var ErrCreateFailed = errors.New("event source creation failed")

// ErrTimeoutTooLarge indicates a prepare timeout beyond what the loop
// core accepts.
var ErrTimeoutTooLarge = errors.New("timeout value too large")

// ErrAlreadyRunning indicates Start on a threaded loop that is already
// running.
var ErrAlreadyRunning = errors.New("threaded main loop already running")
