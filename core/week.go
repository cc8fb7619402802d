package core

import (
	"fmt"
	"math"
	"regexp"
	"time"
)

// DateLayout is the calendar date format used by the eat-api and by all tool arguments.
const DateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// WeekDate identifies an ISO-8601 week.
type WeekDate struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

// String formats the week as "YYYY-WW". Only the week is zero padded.
func (w WeekDate) String() string {
	return fmt.Sprintf("%d-%02d", w.Year, w.Week)
}

// normalize re-anchors the calendar date of t (read in t's own location) at midnight UTC,
// so that day arithmetic never crosses a DST transition.
func normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// isoWeekday returns Monday=0 ... Sunday=6.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// thursdayOf returns the Thursday of the ISO week containing the normalized date.
func thursdayOf(t time.Time) time.Time {
	return t.AddDate(0, 0, 3-isoWeekday(t))
}

// WeekYear returns the ISO week-year of t: the calendar year of its week's Thursday.
func WeekYear(t time.Time) int {
	return thursdayOf(normalize(t)).Year()
}

// WeekNumber returns the ISO week number (1-53) of t.
// Week 1 is the week containing January 4th, weeks start on Monday.
func WeekNumber(t time.Time) int {
	thursday := thursdayOf(normalize(t))
	firstThursday := thursdayOf(time.Date(thursday.Year(), time.January, 4, 0, 0, 0, 0, time.UTC))

	days := thursday.Sub(firstThursday).Hours() / 24
	return 1 + int(math.Round(days/7))
}

// ToWeekDate maps t to its ISO week-year and week number.
func ToWeekDate(t time.Time) WeekDate {
	return WeekDate{
		Year: WeekYear(t),
		Week: WeekNumber(t),
	}
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC of that calendar date.
func ParseDate(date string) (time.Time, error) {
	if !datePattern.MatchString(date) {
		return time.Time{}, fmt.Errorf("invalid date format %q: expected YYYY-MM-DD", date)
	}
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// HasDateShape reports whether date lexically looks like YYYY-MM-DD.
func HasDateShape(date string) bool {
	return datePattern.MatchString(date)
}

// IsValidDate checks the YYYY-MM-DD shape and that the string survives a parse/format
// round trip, which rejects dates such as 2025-02-30.
func IsValidDate(date string) bool {
	t, err := ParseDate(date)
	if err != nil {
		return false
	}
	return t.Format(DateLayout) == date
}

// DateToWeekDate converts a YYYY-MM-DD string to its ISO week.
func DateToWeekDate(date string) (WeekDate, error) {
	t, err := ParseDate(date)
	if err != nil {
		return WeekDate{}, err
	}
	return ToWeekDate(t), nil
}

// DateToWeekFormat converts a YYYY-MM-DD string to "YYYY-WW".
func DateToWeekFormat(date string) (string, error) {
	wd, err := DateToWeekDate(date)
	if err != nil {
		return "", err
	}
	return wd.String(), nil
}

// WeekPath builds the eat-api path of a weekly menu. The week is not zero padded.
func WeekPath(apiName string, wd WeekDate) string {
	return fmt.Sprintf("%s/%d/%d.json", apiName, wd.Year, wd.Week)
}

// CurrentDate returns the calendar date of now, in now's location, as YYYY-MM-DD.
func CurrentDate(now time.Time) string {
	return now.Format(DateLayout)
}

// CurrentWeek returns the "YYYY-WW" week of now's calendar date.
func CurrentWeek(now time.Time) string {
	return ToWeekDate(now).String()
}

// IsCurrentWeek reports whether date falls into the same formatted week as now.
func IsCurrentWeek(date string, now time.Time) (bool, error) {
	week, err := DateToWeekFormat(date)
	if err != nil {
		return false, err
	}
	return week == CurrentWeek(now), nil
}
