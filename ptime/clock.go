package ptime

import "time"

// monotonicBase anchors monotonic timestamps. All MonotonicTS values are
// microseconds elapsed since this process-local origin.
var monotonicBase = time.Now()

// UnixTS is a wall-clock timestamp in microseconds since the Unix epoch.
type UnixTS MicroSeconds

// MonotonicTS is a monotonic timestamp in microseconds since a fixed
// process-local origin. It is unaffected by wall-clock adjustments.
type MonotonicTS MicroSeconds

// UnixNow returns the current wall-clock time.
func UnixNow() UnixTS {
	return UnixTS(time.Now().UnixMicro())
}

// MonotonicNow returns the current monotonic time.
func MonotonicNow() MonotonicTS {
	return MonotonicTS(FromDuration(time.Since(monotonicBase)))
}

// Add returns the timestamp offset forward by d.
func (t UnixTS) Add(d time.Duration) UnixTS {
	return t + UnixTS(FromDuration(d))
}

// Add returns the timestamp offset forward by d.
func (t MonotonicTS) Add(d time.Duration) MonotonicTS {
	return t + MonotonicTS(FromDuration(d))
}

// Time converts the wall-clock timestamp to a time.Time.
func (t UnixTS) Time() time.Time {
	return time.UnixMicro(int64(t))
}

// ToWall translates a monotonic timestamp to its wall-clock equivalent,
// for loops that only understand wall-clock timer values.
func (t MonotonicTS) ToWall() UnixTS {
	now := MonotonicNow()
	wall := UnixNow()
	if t >= now {
		return wall + UnixTS(t-now)
	}
	return wall - UnixTS(now-t)
}
