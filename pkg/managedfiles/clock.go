package managedfiles

import "time"

// Clock supplies the current time in Unix milliseconds.
type Clock interface {
	NowMillis() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) NowMillis() int64 { return time.Now().UnixMilli() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() int64

func (f ClockFunc) NowMillis() int64 { return f() }
