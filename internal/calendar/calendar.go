// Package calendar computes SLA due dates under full-day or business-day
// counting.
package calendar

import (
	"fmt"
	"time"
)

// Mode selects how minutes are counted.
type Mode string

const (
	// ModeFullDay counts continuous calendar time.
	ModeFullDay Mode = "full_day"
	// ModeWeekday counts only business days. Sundays and holidays are never
	// business days; Saturdays are when IncludeSaturday is set.
	ModeWeekday Mode = "weekday"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFullDay, ModeWeekday:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown calendar mode %q", s)
}

// Holiday is a non-business date. Recurring holidays repeat every year.
type Holiday struct {
	Name        string
	Date        time.Time
	IsRecurring bool
}

// Calendar is a due-date policy.
type Calendar struct {
	Mode            Mode
	IncludeSaturday bool
	Holidays        []Holiday
	Location        *time.Location
}

// maxScanDays bounds the search for the next business day.
const maxScanDays = 366

// Due returns start advanced by the given number of minutes.
func (c Calendar) Due(start time.Time, minutes int) time.Time {
	if c.Location != nil {
		start = start.In(c.Location)
	}
	if minutes <= 0 {
		return start
	}
	budget := time.Duration(minutes) * time.Minute
	if c.Mode != ModeWeekday {
		return start.Add(budget)
	}

	cursor := start
	if !c.IsBusinessDay(cursor) {
		cursor = c.nextBusinessDayStart(cursor)
	}
	for {
		dayEnd := startOfDay(cursor).AddDate(0, 0, 1)
		available := dayEnd.Sub(cursor)
		if budget <= available {
			return cursor.Add(budget)
		}
		budget -= available
		cursor = c.nextBusinessDayStart(cursor)
	}
}

// IsBusinessDay reports whether t falls on a day that counts toward the budget.
func (c Calendar) IsBusinessDay(t time.Time) bool {
	if c.Mode != ModeWeekday {
		return true
	}
	switch t.Weekday() {
	case time.Sunday:
		return false
	case time.Saturday:
		if !c.IncludeSaturday {
			return false
		}
	}
	return !c.isHoliday(t)
}

func (c Calendar) isHoliday(t time.Time) bool {
	y, m, d := t.Date()
	for _, h := range c.Holidays {
		hy, hm, hd := h.Date.Date()
		if hm != m || hd != d {
			continue
		}
		if h.IsRecurring || hy == y {
			return true
		}
	}
	return false
}

// nextBusinessDayStart returns midnight of the first business day after t's day.
func (c Calendar) nextBusinessDayStart(t time.Time) time.Time {
	day := startOfDay(t).AddDate(0, 0, 1)
	for i := 0; i < maxScanDays && !c.IsBusinessDay(day); i++ {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
