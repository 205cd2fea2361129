package clock

import "time"

// Clock abstracts wall-clock access so billing periods can be tested
// deterministically.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
