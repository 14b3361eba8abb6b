package clock

import "time"

// Clock abstracts time so overdue and due-date logic can be driven in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
