package ptime

import (
	"fmt"
	"math"
	"time"
)

// MicroSeconds is a timestamp or duration expressed in microseconds.
type MicroSeconds uint64

// MicroSecondsInvalid represents "no value". Timer sources armed with an
// invalid time are disarmed.
const MicroSecondsInvalid MicroSeconds = math.MaxUint64

// MicroSeconds per unit, for arithmetic without reaching for time.Duration.
const (
	USecPerSec  MicroSeconds = 1000000
	USecPerMSec MicroSeconds = 1000
)

// IsValid reports whether the value is not the invalid sentinel.
func (u MicroSeconds) IsValid() bool {
	return u != MicroSecondsInvalid
}

// FromDuration converts a non-negative duration to MicroSeconds.
// Negative durations clamp to zero.
func FromDuration(d time.Duration) MicroSeconds {
	if d < 0 {
		return 0
	}
	return MicroSeconds(d / time.Microsecond)
}

// Duration converts the value to a time.Duration. The invalid sentinel
// converts to zero.
func (u MicroSeconds) Duration() time.Duration {
	if !u.IsValid() {
		return 0
	}
	return time.Duration(u) * time.Microsecond
}

func (u MicroSeconds) String() string {
	if !u.IsValid() {
		return "(invalid)"
	}
	return fmt.Sprintf("%dus", uint64(u))
}
