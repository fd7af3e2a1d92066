package model

import (
	"time"
)

const overrideDateLayout = "2006-01-02"

// DayWindow is a single day's availability window. Start and End are local
// clock times in "15:04" form; Closed marks the whole day unavailable.
type DayWindow struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Closed bool   `json:"closed"`
}

// WeeklySchedule is an appraiser's preferred availability: a per-weekday
// window plus date-specific overrides keyed by "2006-01-02".
type WeeklySchedule struct {
	ByDay     map[time.Weekday]DayWindow `json:"byDay,omitempty"`
	Overrides map[string]DayWindow       `json:"overrides,omitempty"`
}

// DefaultDayWindow returns the business-hours fallback used when a schedule
// has no entry for the day: 08:00-18:00, closed on Sundays.
func DefaultDayWindow(day time.Weekday) DayWindow {
	if day == time.Sunday {
		return DayWindow{Closed: true}
	}
	return DayWindow{Start: "08:00", End: "18:00"}
}

// WindowAt resolves the window governing the given instant: a date-specific
// override wins over the weekday entry, which wins over the default.
func (s WeeklySchedule) WindowAt(t time.Time) DayWindow {
	if w, ok := s.Overrides[t.Format(overrideDateLayout)]; ok {
		return w
	}
	if w, ok := s.ByDay[t.Weekday()]; ok {
		return w
	}
	return DefaultDayWindow(t.Weekday())
}

// Contains reports whether the instant falls inside the window. Malformed
// windows are treated as closed.
func (w DayWindow) Contains(t time.Time) bool {
	if w.Closed {
		return false
	}
	start, end, ok := w.bounds(t)
	if !ok {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

// MinutesUntilClose returns the minutes left before the window closes,
// 0 when the instant is outside the window.
func (w DayWindow) MinutesUntilClose(t time.Time) float64 {
	if !w.Contains(t) {
		return 0
	}
	_, end, _ := w.bounds(t)
	return end.Sub(t).Minutes()
}

func (w DayWindow) bounds(t time.Time) (time.Time, time.Time, bool) {
	start, err := time.Parse("15:04", w.Start)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse("15:04", w.End)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}

	year, month, day := t.Date()
	lo := time.Date(year, month, day, start.Hour(), start.Minute(), 0, 0, t.Location())
	hi := time.Date(year, month, day, end.Hour(), end.Minute(), 0, 0, t.Location())
	return lo, hi, hi.After(lo)
}
