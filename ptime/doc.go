// Package ptime provides the microsecond-resolution time values used by
// main loop timer events.
//
// Timer events may be armed with either wall-clock (Unix) or monotonic
// timestamps. Monotonic values are preferred where the owning loop
// supports them; otherwise they are translated to wall-clock time at
// the point of use. Timeval is the single representation that crosses
// the loop core boundary, carrying a flag recording which clock it was
// derived from.
package ptime
