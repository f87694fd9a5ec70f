package ptime

import "time"

// Timeval is the timer-arming value passed across the loop core
// boundary. RT records which clock the value was derived from, so the
// core can resolve it against the right reference without guessing.
type Timeval struct {
	USec MicroSeconds
	RT   bool
}

// TimevalFromUnix builds a wall-clock Timeval.
func TimevalFromUnix(t UnixTS) Timeval {
	return Timeval{USec: MicroSeconds(t)}
}

// SetRT fills the Timeval from a monotonic timestamp. When the owning
// loop does not support monotonic timer values, the timestamp is
// translated to wall-clock time so the timer still resolves.
func (tv *Timeval) SetRT(t MonotonicTS, rtclockSupported bool) {
	if rtclockSupported {
		tv.USec = MicroSeconds(t)
		tv.RT = true
		return
	}
	tv.USec = MicroSeconds(t.ToWall())
	tv.RT = false
}

// Deadline resolves the Timeval to an absolute time.Time.
func (tv Timeval) Deadline() time.Time {
	if tv.RT {
		return monotonicBase.Add(MicroSeconds(tv.USec).Duration())
	}
	return time.UnixMicro(int64(tv.USec))
}
