// Package pulseloop provides a PulseAudio-style main loop with safe,
// garbage-collection-friendly event source and operation wrappers.
//
// The loop core only understands plain callback functions paired with an
// opaque userdata value. This package layers ownership-managed wrapper
// types over that boundary: user closures are boxed behind opaque
// handles, invoked through fixed trampoline functions, and freed exactly
// once when their owning wrapper is replaced or freed.
//
// Example:
//
//	ml, err := pulseloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ml.Free()
//
//	count := 0
//	ev, err := ml.NewDeferEvent(func(e *pulseloop.DeferEventRef) {
//	    count++
//	    if count == 3 {
//	        e.Disable()
//	        ml.Quit(0)
//	    }
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ev.Free()
//
//	if _, err := ml.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// For use from multiple goroutines, ThreadedMainloop runs the same loop
// on a background goroutine behind an explicit lock.
package pulseloop
