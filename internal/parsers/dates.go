package parsers

import (
	"regexp"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// timeOfDay is the only text allowed after a date: hours and minutes with
// optional seconds, fraction and zone offset.
const timeOfDay = `(?:[ T]\d{1,2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?$`

var (
	dayFirstLong  = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{4})` + timeOfDay)
	dayFirstShort = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})[./](\d{2})` + timeOfDay)
	yearFirst     = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})` + timeOfDay)
)

// twoDigitYearPivot splits two-digit years: below it is 20xx, at or above 19xx.
const twoDigitYearPivot = 50

// DisplayDateLayout is how parsed dates are shown back to users.
const DisplayDateLayout = "02.01.2006"

// ParseTurkishDate parses the date spellings found in Turkish bank exports:
// DD/MM/YYYY, DD.MM.YYYY, DD-MM-YYYY, DD/MM/YY, DD.MM.YY, YYYY-MM-DD and
// YYYY/MM/DD, each optionally followed by a time of day which is ignored.
// Impossible dates such as 31/02/2024 are rejected.
func ParseTurkishDate(raw string) (time.Time, bool) {
	s := trimCell(raw)
	if s == "" {
		return time.Time{}, false
	}

	var day, month, year int
	switch {
	case dayFirstLong.MatchString(s):
		m := dayFirstLong.FindStringSubmatch(s)
		day, month, year = atoi(m[1]), atoi(m[2]), atoi(m[3])
	case dayFirstShort.MatchString(s):
		m := dayFirstShort.FindStringSubmatch(s)
		day, month, year = atoi(m[1]), atoi(m[2]), atoi(m[3])
		if year < twoDigitYearPivot {
			year += 2000
		} else {
			year += 1900
		}
	case yearFirst.MatchString(s):
		m := yearFirst.FindStringSubmatch(s)
		year, month, day = atoi(m[1]), atoi(m[2]), atoi(m[3])
	default:
		return time.Time{}, false
	}

	return calendarDate(year, month, day)
}

func calendarDate(year, month, day int) (time.Time, bool) {
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// ParseExcelSerial converts a spreadsheet date serial into a calendar date.
func ParseExcelSerial(raw string, date1904 bool) (time.Time, bool) {
	serial, err := strconv.ParseFloat(trimCell(raw), 64)
	if err != nil || serial <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return time.Time{}, false
	}
	return calendarDate(t.Year(), int(t.Month()), t.Day())
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
