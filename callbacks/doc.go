// Package callbacks manages ownership of user closures that cross the
// loop core boundary.
//
// The loop core only understands a plain callback function plus an
// opaque pointer-sized userdata value; it cannot hold a Go closure with
// captured state. This package boxes a closure behind such an opaque
// handle, hands the handle out as userdata, and frees the closure
// exactly once when its owning wrapper is replaced or torn down.
//
// Two kinds of registration exist:
//
//   - Multi-use callbacks (timers, deferred events, signals, operation
//     state notifications) may fire any number of times before
//     deregistration. MultiUse owns the boxed closure for the lifetime
//     of the registration; trampolines borrow it with Get and never
//     free it.
//   - Single-use callbacks (anonymous once events) fire at most once
//     and have no owning wrapper. Their closure is destroyed from the
//     source's destroy notification, the one teardown point the loop
//     core guarantees whether or not the callback ever ran.
//
// Misuse of a handle (destroying it twice, resolving it after destroy)
// is a programming error and panics.
package callbacks
