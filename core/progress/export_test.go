package progress

import "time"

// SetNow makes the service see now as the current time, until reset is called.
func SetNow(now time.Time) (reset func()) {
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = time.Now }
}
