package report

import "time"

// Clock is a wall-clock time of day as the duration since midnight.
type Clock time.Duration

func At(h, m, s int) Clock {
	return Clock(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// ClockOf keeps sub-second precision: 11:59:00.5 is past 11:59:00.
func ClockOf(t time.Time) Clock {
	return At(t.Hour(), t.Minute(), t.Second()) + Clock(t.Nanosecond())
}

// Window is an inclusive time-of-day range.
type Window struct {
	From      Clock
	To        Clock
	Threshold int
}

type Thresholds []Window

// DefaultLeadsPerHourThresholds are the pulled-lead targets over the working day.
var DefaultLeadsPerHourThresholds = Thresholds{
	{From: At(8, 0, 0), To: At(11, 59, 0), Threshold: 50},
	{From: At(12, 0, 0), To: At(13, 59, 0), Threshold: 100},
	{From: At(14, 0, 0), To: At(16, 59, 0), Threshold: 150},
	{From: At(17, 0, 0), To: At(20, 30, 0), Threshold: 200},
}

// At returns the threshold of the first window containing now's time of day.
func (t Thresholds) At(now time.Time) (int, bool) {
	c := ClockOf(now)
	for _, w := range t {
		if c >= w.From && c <= w.To {
			return w.Threshold, true
		}
	}
	return 0, false
}
