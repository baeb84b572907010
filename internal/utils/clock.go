package utils

import (
	"fmt"
	"time"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c *FixedClock) Now() time.Time {
	return c.At
}

func (c *FixedClock) Set(at time.Time) {
	c.At = at
}

// DatedFileName builds "<prefix>_<yyyy-mm-dd>.<ext>" for the clock's current day.
func DatedFileName(clock Clock, prefix, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, clock.Now().Format(time.DateOnly), ext)
}
