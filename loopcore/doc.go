// Package loopcore implements the main loop engine underneath the safe
// wrapper types in the root package.
//
// It provides what PulseAudio's C mainloop provides its bindings: an
// abstract main loop API (a vtable of plain functions), deferred, timer
// and IO event sources, a poll(2) based iteration cycle, a process-wide
// signal subsystem, and refcounted asynchronous operation objects.
//
// The boundary discipline matters more than the implementation: every
// callback slot in this package takes a bare function value plus an
// opaque uintptr userdata, never a closure owned by this package. The
// wrapper layer is responsible for the lifetime of whatever its
// userdata refers to; loopcore only stores and forwards it.
//
// Objects in this package are not safe for concurrent use. The standard
// loop confines everything to one goroutine; the threaded loop in the
// root package serializes access with its lock.
package loopcore
