package main

import (
	"fmt"
	"strconv"
	"time"
)

// secondsValue is a duration flag that also takes a plain number of
// seconds, so both --timeout 600 and --timeout 10m work. Its type is
// "duration" and it can be read back with GetDuration.
type secondsValue time.Duration

func newSecondsValue(val time.Duration) *secondsValue {
	v := secondsValue(val)
	return &v
}

func (v *secondsValue) Set(s string) error {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return fmt.Errorf("negative time %s", s)
		}
		*v = secondsValue(time.Duration(secs * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("expected seconds or a duration such as 90s, got %q", s)
	}
	*v = secondsValue(d)
	return nil
}

func (v *secondsValue) Type() string {
	return "duration"
}

func (v *secondsValue) String() string {
	return time.Duration(*v).String()
}
