package rtc

import (
	"strconv"
	"time"
)

// TextLen is the length of a formatted DateTime.
const TextLen = len("2006-01-02 15:04:05")

// Sentinel is shown in place of a reading the clock could not provide. No
// DS3231 can hold a year before 2000, so it never looks like a real time.
var Sentinel = DateTime{Year: 1900, Month: time.January, Day: 1}

// DateTime is a calendar date and time of day with one-second resolution
// and no time zone.
type DateTime struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// FromTime returns the wall-clock fields of t in its own location.
func FromTime(t time.Time) DateTime {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return DateTime{Year: y, Month: mo, Day: d, Hour: h, Minute: mi, Second: s}
}

// Time returns dt as a time.Time in UTC.
func (dt DateTime) Time() time.Time {
	return time.Date(dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second, 0, time.UTC)
}

// RangeError reports a DateTime field outside its calendar range.
type RangeError struct {
	Field string
	Value int
}

func (e *RangeError) Error() string {
	return "rtc: " + e.Field + " " + strconv.Itoa(e.Value) + " out of range"
}

// Validate reports the first field that is not a valid calendar value.
// Years are limited to 0..9999 so that every valid DateTime formats to
// exactly TextLen bytes.
func (dt DateTime) Validate() error {
	switch {
	case dt.Year < 0 || dt.Year > 9999:
		return &RangeError{"year", dt.Year}
	case dt.Month < time.January || dt.Month > time.December:
		return &RangeError{"month", int(dt.Month)}
	case dt.Day < 1 || dt.Day > daysIn(dt.Month, dt.Year):
		return &RangeError{"day", dt.Day}
	case dt.Hour < 0 || dt.Hour > 23:
		return &RangeError{"hour", dt.Hour}
	case dt.Minute < 0 || dt.Minute > 59:
		return &RangeError{"minute", dt.Minute}
	case dt.Second < 0 || dt.Second > 59:
		return &RangeError{"second", dt.Second}
	}
	return nil
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	}
	return 31
}

// AppendText appends dt as "YYYY-MM-DD HH:MM:SS". Fields are zero padded
// and not range checked; call Validate first for untrusted values.
func (dt DateTime) AppendText(dst []byte) []byte {
	dst = appendDigits(dst, dt.Year, 4)
	dst = append(dst, '-')
	dst = appendDigits(dst, int(dt.Month), 2)
	dst = append(dst, '-')
	dst = appendDigits(dst, dt.Day, 2)
	dst = append(dst, ' ')
	dst = appendDigits(dst, dt.Hour, 2)
	dst = append(dst, ':')
	dst = appendDigits(dst, dt.Minute, 2)
	dst = append(dst, ':')
	return appendDigits(dst, dt.Second, 2)
}

func (dt DateTime) String() string {
	var buf [TextLen]byte
	return string(dt.AppendText(buf[:0]))
}

// appendDigits appends the low width decimal digits of v.
func appendDigits(dst []byte, v, width int) []byte {
	if v < 0 {
		v = -v
	}
	var b [4]byte
	for i := width - 1; i >= 0; i-- {
		b[i] = byte('0' + v%10)
		v /= 10
	}
	return append(dst, b[:width]...)
}
