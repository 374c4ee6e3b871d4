/*
Package dates provides day-granular date helpers for the lease engine.

PURPOSE:
  Leases and payments live on calendar days, not instants. Everything in
  this package normalizes to midnight UTC so that "the same day" compares
  equal regardless of where a time.Time came from (parsed JSON, SQLite
  text column, time.Now()).

KEY CONCEPTS:
  - Date(y, m, d): canonical day constructor
  - MonthTag: the "YYYY-MM" label stamped on rent payments
  - Month walking: StartOfMonth / NextMonth drive schedule generation

SEE ALSO:
  - payment/schedule.go: walks months with these helpers
  - lifecycle/sweep.go: compares due/end dates against Today()
*/
package dates

import "time"

// MonthTagLayout is the storage format for rent month labels.
const MonthTagLayout = "2006-01"

// DayLayout is the storage format for date columns and API date fields.
const DayLayout = "2006-01-02"

// Date returns midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// Today returns the current day at midnight UTC.
func Today() time.Time {
	return Day(time.Now().UTC())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Before reports whether day a is strictly before day b.
func Before(a, b time.Time) bool {
	return Day(a).Before(Day(b))
}

// After reports whether day a is strictly after day b.
func After(a, b time.Time) bool {
	return Day(a).After(Day(b))
}

// DaysBetween returns the whole days from a to b. Negative if b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// StartOfMonth returns the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), 1)
}

// DaysInMonth returns the length of t's month in days.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextMonth advances t by one calendar month, day of month clamped.
func NextMonth(t time.Time) time.Time {
	return AddMonths(t, 1)
}

// AddDays returns t shifted by n days, day-normalized.
func AddDays(t time.Time, n int) time.Time {
	return Day(t.AddDate(0, 0, n))
}

// AddMonths returns t shifted by n calendar months. The day of month is
// clamped to the target month's length, so Jan 31 plus one month is
// Feb 28, never an AddDate spill into March. A lease starting on the
// 29th-31st would otherwise skip February when the schedule walks months.
func AddMonths(t time.Time, n int) time.Time {
	anchor := StartOfMonth(t).AddDate(0, n, 0)
	day := t.Day()
	if last := DaysInMonth(anchor); day > last {
		day = last
	}
	return Date(anchor.Year(), anchor.Month(), day)
}

// MonthTag formats t as "YYYY-MM".
func MonthTag(t time.Time) string {
	return t.Format(MonthTagLayout)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// Format renders a day as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(DayLayout)
}

// Parse parses a YYYY-MM-DD day string.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}
